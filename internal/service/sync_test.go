package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/provider"
)

// fakeProvider serves scripted sync pages. failAt >= 0 fails that page
// request (zero-indexed) to simulate a provider outage mid-loop.
type fakeProvider struct {
	pages  []provider.SyncPage
	failAt int
	calls  int

	cursors []string
}

func newFakeProvider(pages ...provider.SyncPage) *fakeProvider {
	return &fakeProvider{pages: pages, failAt: -1}
}

func (f *fakeProvider) SyncTransactions(ctx context.Context, accessToken, cursor string) (provider.SyncPage, error) {
	f.cursors = append(f.cursors, cursor)
	i := f.calls
	f.calls++
	if i == f.failAt {
		return provider.SyncPage{}, errors.New("provider unavailable")
	}
	if i >= len(f.pages) {
		return provider.SyncPage{NextCursor: cursor}, nil
	}
	return f.pages[i], nil
}

func (f *fakeProvider) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	return "link-token", nil
}

func (f *fakeProvider) ExchangePublicToken(ctx context.Context, publicToken string) (provider.ExchangeResult, error) {
	return provider.ExchangeResult{AccessToken: "access-" + publicToken, ItemID: "item-1"}, nil
}

func (f *fakeProvider) ListAccounts(ctx context.Context, accessToken string) ([]provider.Account, error) {
	return nil, nil
}

func (f *fakeProvider) GetInstitution(ctx context.Context, institutionID string) (provider.Institution, error) {
	return provider.Institution{}, nil
}

func newSyncService(t *testing.T, fake provider.Client) (*SyncService, *repository.TransactionRepo, *repository.CredentialRepo) {
	t.Helper()
	db := newTestDB(t)
	credRepo := repository.NewCredentialRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	catRepo := repository.NewCategoryRepo(db)
	svc := &SyncService{
		DB:           db,
		Credentials:  credRepo,
		Transactions: txRepo,
		Categorizer:  &CategorizerService{Categories: catRepo, Transactions: txRepo},
		Provider:     fake,
		Locks:        NewUserLocks(),
	}
	return svc, txRepo, credRepo
}

func linkUser(t *testing.T, ctx context.Context, creds *repository.CredentialRepo, userID string) {
	t.Helper()
	require.NoError(t, creds.Upsert(ctx, repository.Credential{
		UserID: userID, AccessToken: "access-1", ItemID: "item-1",
	}))
}

func TestSyncMultiPageConvertsToCents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fake := newFakeProvider(
		provider.SyncPage{
			Added: []provider.Transaction{
				{ID: "t1", AccountID: "a1", Date: "2026-08-01", Name: "COFFEE SHOP", Amount: 4.50, Currency: "USD"},
			},
			NextCursor: "c1",
			HasMore:    true,
		},
		provider.SyncPage{
			Added: []provider.Transaction{
				{ID: "t2", AccountID: "a1", Date: "2026-08-02", Name: "REFUND", Amount: -12.34, Currency: "USD"},
			},
			NextCursor: "c2",
		},
	)
	svc, txRepo, credRepo := newSyncService(t, fake)
	linkUser(t, ctx, credRepo, "u1")

	res, err := svc.Sync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, res.Added)
	require.Equal(t, 0, res.Modified)
	require.Equal(t, 0, res.Removed)

	// paging started empty, then carried the first page's cursor
	require.Equal(t, []string{"", "c1"}, fake.cursors)

	t1, err := txRepo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Equal(t, int64(450), t1.AmountCents)
	t2, err := txRepo.Get(ctx, "u1", "t2")
	require.NoError(t, err)
	require.Equal(t, int64(-1234), t2.AmountCents)

	cred, err := credRepo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cred.Cursor)
	require.Equal(t, "c2", *cred.Cursor)
	require.NotNil(t, cred.LastSyncAt)
}

func TestSyncIdempotentReapplyPreservesCategory(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	page := provider.SyncPage{
		Added: []provider.Transaction{
			{ID: "t1", AccountID: "a1", Date: "2026-08-01", Name: "WHOLE FOODS", Amount: 55.20, Currency: "USD"},
		},
		NextCursor: "c1",
	}
	fake := newFakeProvider(page, page)
	svc, txRepo, credRepo := newSyncService(t, fake)
	linkUser(t, ctx, credRepo, "u1")

	_, err := svc.Sync(ctx, "u1")
	require.NoError(t, err)

	// assignment between syncs, backed by a keyword so reconciliation keeps it
	catRepo := repository.NewCategoryRepo(svc.DB)
	require.NoError(t, catRepo.Insert(ctx, repository.Category{
		ID: "cat-1", UserID: "u1", Name: "Groceries", Keywords: []string{"whole foods"},
	}))
	require.NoError(t, txRepo.UpdateCategory(ctx, "u1", "t1", strPtr("cat-1"), strPtr("Groceries")))

	// same delta again (provider retry semantics)
	_, err = svc.Sync(ctx, "u1")
	require.NoError(t, err)

	var count int
	require.NoError(t, svc.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count))
	require.Equal(t, 1, count)

	t1, err := txRepo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.NotNil(t, t1.CategoryID)
	require.Equal(t, "cat-1", *t1.CategoryID)
}

func TestSyncMarksRemoved(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fake := newFakeProvider(
		provider.SyncPage{
			Added: []provider.Transaction{
				{ID: "t1", AccountID: "a1", Date: "2026-08-01", Name: "PENDING HOLD", Amount: 10, Currency: "USD"},
			},
			NextCursor: "c1",
		},
		provider.SyncPage{
			Removed:    []string{"t1"},
			NextCursor: "c2",
		},
	)
	svc, txRepo, credRepo := newSyncService(t, fake)
	linkUser(t, ctx, credRepo, "u1")

	_, err := svc.Sync(ctx, "u1")
	require.NoError(t, err)

	res, err := svc.Sync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, res.Removed)

	t1, err := txRepo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.True(t, t1.Removed)

	listed, err := txRepo.List(ctx, "u1", 50, 0)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestSyncWithoutCredential(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, _, _ := newSyncService(t, newFakeProvider())
	_, err := svc.Sync(ctx, "u1")
	require.Equal(t, KindPreconditionFailed, KindOf(err))
}

func TestSyncProviderFailureLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fake := newFakeProvider(
		provider.SyncPage{
			Added: []provider.Transaction{
				{ID: "t1", AccountID: "a1", Date: "2026-08-01", Name: "FIRST PAGE", Amount: 10, Currency: "USD"},
			},
			NextCursor: "c1",
			HasMore:    true,
		},
	)
	fake.failAt = 1
	svc, _, credRepo := newSyncService(t, fake)
	linkUser(t, ctx, credRepo, "u1")

	_, err := svc.Sync(ctx, "u1")
	require.Equal(t, KindUpstream, KindOf(err))

	var count int
	require.NoError(t, svc.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count))
	require.Equal(t, 0, count)

	cred, err := credRepo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, cred.Cursor)
}

func TestSyncRunsReconciliation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fake := newFakeProvider(provider.SyncPage{
		Added: []provider.Transaction{
			{ID: "t1", AccountID: "a1", Date: "2026-08-01", Name: "WHOLE FOODS MARKET", Amount: 42, Currency: "USD"},
		},
		NextCursor: "c1",
	})
	svc, txRepo, credRepo := newSyncService(t, fake)
	linkUser(t, ctx, credRepo, "u1")

	catRepo := repository.NewCategoryRepo(svc.DB)
	require.NoError(t, catRepo.Insert(ctx, repository.Category{
		ID: "cat-1", UserID: "u1", Name: "Groceries", Keywords: []string{"market"},
	}))

	res, err := svc.Sync(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, res.Recategorized)

	t1, err := txRepo.Get(ctx, "u1", "t1")
	require.NoError(t, err)
	require.Equal(t, "Groceries", *t1.CategoryName)
}
