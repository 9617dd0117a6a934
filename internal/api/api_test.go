package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mbell/centsible/internal/api/handlers"
	"github.com/mbell/centsible/internal/database"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/provider"
	"github.com/mbell/centsible/internal/service"
)

const testSecret = "test-secret"

// scriptedProvider serves a fixed sync page and account list.
type scriptedProvider struct {
	page     provider.SyncPage
	accounts []provider.Account
}

func (p *scriptedProvider) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	return "link-token-123", nil
}

func (p *scriptedProvider) ExchangePublicToken(ctx context.Context, publicToken string) (provider.ExchangeResult, error) {
	return provider.ExchangeResult{AccessToken: "access-1", ItemID: "item-1"}, nil
}

func (p *scriptedProvider) ListAccounts(ctx context.Context, accessToken string) ([]provider.Account, error) {
	return p.accounts, nil
}

func (p *scriptedProvider) GetInstitution(ctx context.Context, institutionID string) (provider.Institution, error) {
	return provider.Institution{ID: institutionID, Name: "Test Bank"}, nil
}

func (p *scriptedProvider) SyncTransactions(ctx context.Context, accessToken, cursor string) (provider.SyncPage, error) {
	if cursor != "" {
		return provider.SyncPage{NextCursor: cursor}, nil
	}
	return p.page, nil
}

func newTestServer(t *testing.T, fake provider.Client) *httptest.Server {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	credentials := repository.NewCredentialRepo(db)
	transactions := repository.NewTransactionRepo(db)
	categories := repository.NewCategoryRepo(db)
	budgets := repository.NewBudgetRepo(db)
	accounts := repository.NewAccountRepo(db)

	locks := service.NewUserLocks()
	categorizer := &service.CategorizerService{Categories: categories, Transactions: transactions}
	h := &handlers.Handler{
		Link: &service.LinkService{Credentials: credentials, Provider: fake},
		Sync: &service.SyncService{
			DB: db, Credentials: credentials, Transactions: transactions,
			Categorizer: categorizer, Provider: fake, Locks: locks,
		},
		Accounts: &service.AccountService{
			DB: db, Credentials: credentials, Accounts: accounts,
			Transactions: transactions, Provider: fake, Log: zerolog.Nop(),
		},
		Budgets: &service.BudgetService{
			DB: db, Budgets: budgets, Categories: categories,
			Categorizer: categorizer, Locks: locks,
		},
		Categorizer:  categorizer,
		Transactions: transactions,
		Log:          zerolog.Nop(),
	}

	srv := httptest.NewServer(Routes(h, zerolog.Nop(), testSecret))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, payload
}

func errorKind(t *testing.T, payload []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(payload, &envelope))
	require.NotEmpty(t, envelope.Error.Message)
	return envelope.Error.Kind
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, &scriptedProvider{})

	resp, payload := do(t, srv, http.MethodGet, "/transactions", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHENTICATED", errorKind(t, payload))

	// garbage token
	resp, payload = do(t, srv, http.MethodGet, "/transactions", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "UNAUTHENTICATED", errorKind(t, payload))

	// health stays open
	resp, _ = do(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLinkSyncAndListFlow(t *testing.T) {
	t.Parallel()

	fake := &scriptedProvider{
		page: provider.SyncPage{
			Added: []provider.Transaction{
				{ID: "t1", AccountID: "a1", Date: "2026-08-02", Name: "WHOLE FOODS MARKET", Amount: 55.20, Currency: "USD", Category: "FOOD_AND_DRINK"},
				{ID: "t2", AccountID: "a1", Date: "2026-08-01", Name: "ACME WIDGETS", Amount: 19.99, Currency: "USD"},
			},
			NextCursor: "c1",
		},
		accounts: []provider.Account{
			{ID: "a1", Name: "Everyday", InstitutionID: "ins_1"},
		},
	}
	srv := newTestServer(t, fake)
	token := signToken(t, "u1")

	// sync before linking is a precondition failure
	resp, payload := do(t, srv, http.MethodPost, "/sync-transactions", token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "PRECONDITION_FAILED", errorKind(t, payload))

	resp, payload = do(t, srv, http.MethodPost, "/create-link-token", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var linkResp map[string]string
	require.NoError(t, json.Unmarshal(payload, &linkResp))
	require.Equal(t, "link-token-123", linkResp["link_token"])

	resp, _ = do(t, srv, http.MethodPost, "/exchange-public-token", token, map[string]string{"public_token": "public-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// defaults give the sync something to categorize into
	resp, payload = do(t, srv, http.MethodPost, "/initialize-account", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var budget struct {
		ID          string `json:"id"`
		TotalBudget int64  `json:"totalBudget"`
		Categories  []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(payload, &budget))
	require.NotEmpty(t, budget.Categories)
	require.Positive(t, budget.TotalBudget)

	resp, payload = do(t, srv, http.MethodPost, "/sync-transactions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var syncResp struct {
		Added         int `json:"added"`
		Recategorized int `json:"recategorized"`
	}
	require.NoError(t, json.Unmarshal(payload, &syncResp))
	require.Equal(t, 2, syncResp.Added)
	require.Equal(t, 1, syncResp.Recategorized, "the market transaction lands in Groceries")

	resp, payload = do(t, srv, http.MethodGet, "/transactions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []struct {
		ID           string  `json:"id"`
		Amount       int64   `json:"amount"`
		CategoryName *string `json:"categoryName"`
	}
	require.NoError(t, json.Unmarshal(payload, &txs))
	require.Len(t, txs, 2)
	require.Equal(t, "t1", txs[0].ID, "newest date first")
	require.Equal(t, int64(5520), txs[0].Amount)
	require.NotNil(t, txs[0].CategoryName)
	require.Equal(t, "Groceries", *txs[0].CategoryName)
	require.Nil(t, txs[1].CategoryName)

	// manual assignment of the unmatched one
	var catID string
	for _, c := range budget.Categories {
		if c.Name == "Entertainment" {
			catID = c.ID
		}
	}
	require.NotEmpty(t, catID)
	resp, _ = do(t, srv, http.MethodPost, "/transactions/t2/categorize", token, map[string]interface{}{
		"categoryId": catID, "applyToSimilar": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = do(t, srv, http.MethodGet, "/transactions/search?query=acme", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hits []struct {
		ID                string   `json:"id"`
		SuggestedKeywords []string `json:"suggestedKeywords"`
	}
	require.NoError(t, json.Unmarshal(payload, &hits))
	require.Len(t, hits, 1)
	require.Equal(t, []string{"acme widgets"}, hits[0].SuggestedKeywords)

	// users are isolated
	otherToken := signToken(t, "u2")
	resp, payload = do(t, srv, http.MethodGet, "/transactions", otherToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var otherTxs []json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &otherTxs))
	require.Empty(t, otherTxs)
}

func TestBudgetEndpointConflicts(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &scriptedProvider{})
	token := signToken(t, "u1")

	resp, _ := do(t, srv, http.MethodGet, "/budgets", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/budgets", token, map[string]string{"name": "Household"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, payload := do(t, srv, http.MethodPost, "/budgets", token, map[string]string{"name": "Second"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "CONFLICT", errorKind(t, payload))

	resp, payload = do(t, srv, http.MethodPost, "/budgets", token, map[string]string{"name": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "VALIDATION_ERROR", errorKind(t, payload))
}

func TestAccountDeleteCascadeOverHTTP(t *testing.T) {
	t.Parallel()

	fake := &scriptedProvider{
		page: provider.SyncPage{
			Added: []provider.Transaction{
				{ID: "t1", AccountID: "a1", Date: "2026-08-01", Name: "ONE", Amount: 1, Currency: "USD"},
				{ID: "t2", AccountID: "a2", Date: "2026-08-01", Name: "TWO", Amount: 2, Currency: "USD"},
			},
			NextCursor: "c1",
		},
		accounts: []provider.Account{
			{ID: "a1", Name: "Everyday", InstitutionID: "ins_1"},
			{ID: "a2", Name: "Savings", InstitutionID: "ins_1"},
		},
	}
	srv := newTestServer(t, fake)
	token := signToken(t, "u1")

	resp, _ := do(t, srv, http.MethodPost, "/exchange-public-token", token, map[string]string{"public_token": "p"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/get-accounts", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/sync-transactions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := do(t, srv, http.MethodDelete, "/accounts/a1", token, map[string]bool{"deleteTransactions": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var delResp struct {
		TransactionsDeleted int64 `json:"transactionsDeleted"`
	}
	require.NoError(t, json.Unmarshal(payload, &delResp))
	require.Equal(t, int64(1), delResp.TransactionsDeleted)

	resp, payload = do(t, srv, http.MethodGet, "/transactions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var txs []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(payload, &txs))
	require.Len(t, txs, 1)
	require.Equal(t, "t2", txs[0].ID)

	resp, payload = do(t, srv, http.MethodDelete, "/accounts/a1", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", errorKind(t, payload))
}
