package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/mbell/centsible/internal/database"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/provider"
)

// SyncService drives the incremental pull protocol against the transaction
// provider and merges deltas into local storage.
type SyncService struct {
	DB           *sql.DB
	Credentials  *repository.CredentialRepo
	Transactions *repository.TransactionRepo
	Categorizer  *CategorizerService
	Provider     provider.Client
	Locks        *UserLocks
}

// SyncResult reports one sync call.
type SyncResult struct {
	Added         int `json:"added"`
	Modified      int `json:"modified"`
	Removed       int `json:"removed"`
	Recategorized int `json:"recategorized"`
}

// Sync pulls every pending page of deltas from the provider and commits
// them together with the advanced cursor in a single transaction: either
// all upserts, removal markers, and the new cursor land, or none do. A
// provider failure mid-loop aborts with nothing written and the cursor
// untouched. Re-running after a retryable failure is safe because upserts
// key on the provider transaction id.
func (s *SyncService) Sync(ctx context.Context, userID string) (SyncResult, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	cred, err := s.Credentials.Get(ctx, userID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync: load credential: %w", err)
	}
	if cred == nil {
		return SyncResult{}, Errorf(KindPreconditionFailed, "bank not linked")
	}

	startCursor := cred.Cursor
	cursor := ""
	if startCursor != nil {
		cursor = *startCursor
	}

	// Sequential paging: each page's cursor depends on the prior response,
	// so exactly one request is in flight until the provider reports no
	// more pages.
	var added, modified []provider.Transaction
	var removed []string
	for {
		page, err := s.Provider.SyncTransactions(ctx, cred.AccessToken, cursor)
		if err != nil {
			return SyncResult{}, Errorf(KindUpstream, "provider sync failed: %v", err)
		}
		added = append(added, page.Added...)
		modified = append(modified, page.Modified...)
		removed = append(removed, page.Removed...)
		if page.NextCursor != "" {
			cursor = page.NextCursor
		}
		if !page.HasMore {
			break
		}
	}

	res := SyncResult{Added: len(added), Modified: len(modified), Removed: len(removed)}
	now := database.Now()

	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, pt := range added {
			if err := s.Transactions.UpsertFromSyncTx(ctx, tx, mapProviderTransaction(userID, pt, now)); err != nil {
				return fmt.Errorf("upsert added %s: %w", pt.ID, err)
			}
		}
		for _, pt := range modified {
			if err := s.Transactions.UpsertFromSyncTx(ctx, tx, mapProviderTransaction(userID, pt, now)); err != nil {
				return fmt.Errorf("upsert modified %s: %w", pt.ID, err)
			}
		}
		for _, id := range removed {
			if err := s.Transactions.MarkRemovedTx(ctx, tx, userID, id, now); err != nil {
				return fmt.Errorf("mark removed %s: %w", id, err)
			}
		}
		n, err := s.Credentials.AdvanceCursorTx(ctx, tx, userID, startCursor, cursor, now)
		if err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
		if n == 0 {
			return Errorf(KindConflict, "sync cursor moved concurrently; retry")
		}
		return nil
	})
	if err != nil {
		if KindOf(err) != "" {
			return SyncResult{}, err
		}
		return SyncResult{}, fmt.Errorf("sync: commit: %w", err)
	}

	rec, err := s.Categorizer.ReconcileAll(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	res.Recategorized = rec.Updated
	return res, nil
}

// mapProviderTransaction converts a provider delta to a local row. This is
// the only place provider amounts are converted: major units become integer
// cents, keeping the provider's native sign (positive = outflow).
func mapProviderTransaction(userID string, pt provider.Transaction, now time.Time) repository.Transaction {
	t := repository.Transaction{
		ID:          pt.ID,
		UserID:      userID,
		AccountID:   pt.AccountID,
		Date:        pt.Date,
		Name:        pt.Name,
		AmountCents: int64(math.Round(pt.Amount * 100)),
		Currency:    pt.Currency,
		Pending:     pt.Pending,
		UpdatedAt:   now,
	}
	if t.Currency == "" {
		t.Currency = "USD"
	}
	if pt.MerchantName != "" {
		merchant := pt.MerchantName
		t.MerchantName = &merchant
	}
	if pt.Category != "" {
		cat := pt.Category
		t.ProviderCategory = &cat
	}
	return t
}
