package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPClient is the JSON-over-HTTP implementation of Client. Every call
// carries the client credentials in the body and runs under the configured
// timeout; the whole sync aborts rather than partially committing when a
// page request times out.
type HTTPClient struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
}

func NewHTTPClient(baseURL, clientID, secret string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	req := map[string]interface{}{
		"client_id": c.clientID,
		"secret":    c.secret,
		"user":      map[string]string{"client_user_id": userID},
		"products":  []string{"transactions"},
	}
	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, "/link/token/create", req, &resp); err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

func (c *HTTPClient) ExchangePublicToken(ctx context.Context, publicToken string) (ExchangeResult, error) {
	req := map[string]string{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"public_token": publicToken,
	}
	var resp ExchangeResult
	if err := c.post(ctx, "/item/public_token/exchange", req, &resp); err != nil {
		return ExchangeResult{}, err
	}
	return resp, nil
}

func (c *HTTPClient) ListAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	req := map[string]string{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}
	var resp struct {
		Accounts []Account `json:"accounts"`
		Item     struct {
			InstitutionID string `json:"institution_id"`
		} `json:"item"`
	}
	if err := c.post(ctx, "/accounts/get", req, &resp); err != nil {
		return nil, err
	}
	// account entries may omit the institution; fall back to the item's
	for i := range resp.Accounts {
		if resp.Accounts[i].InstitutionID == "" {
			resp.Accounts[i].InstitutionID = resp.Item.InstitutionID
		}
	}
	return resp.Accounts, nil
}

func (c *HTTPClient) GetInstitution(ctx context.Context, institutionID string) (Institution, error) {
	req := map[string]interface{}{
		"client_id":      c.clientID,
		"secret":         c.secret,
		"institution_id": institutionID,
		"options":        map[string]bool{"include_optional_metadata": true},
	}
	var resp struct {
		Institution Institution `json:"institution"`
	}
	if err := c.post(ctx, "/institutions/get_by_id", req, &resp); err != nil {
		return Institution{}, err
	}
	return resp.Institution, nil
}

func (c *HTTPClient) SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error) {
	req := map[string]string{
		"client_id":    c.clientID,
		"secret":       c.secret,
		"access_token": accessToken,
	}
	if cursor != "" {
		req["cursor"] = cursor
	}
	var page struct {
		SyncPage
		Removed []struct {
			TransactionID string `json:"transaction_id"`
		} `json:"removed"`
	}
	if err := c.post(ctx, "/transactions/sync", req, &page); err != nil {
		return SyncPage{}, err
	}
	out := page.SyncPage
	out.Removed = make([]string, 0, len(page.Removed))
	for _, r := range page.Removed {
		out.Removed = append(out.Removed, r.TransactionID)
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("provider %s: marshal: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("provider %s: request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("provider %s: decode: %w", path, err)
	}
	return nil
}
