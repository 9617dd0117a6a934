package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mbell/centsible/internal/database"
	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/provider"
)

// AccountService mirrors the provider's account list locally and owns
// account deletion.
type AccountService struct {
	DB           *sql.DB
	Credentials  *repository.CredentialRepo
	Accounts     *repository.AccountRepo
	Transactions *repository.TransactionRepo
	Provider     provider.Client
	Log          zerolog.Logger
}

// RefreshResult reports one refresh call.
type RefreshResult struct {
	Count   int `json:"count"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Refresh pulls the current account list from the provider and upserts each
// account with its institution metadata. Institution lookups are cached per
// call, and a failed lookup degrades to the bare institution id rather than
// failing the refresh.
func (s *AccountService) Refresh(ctx context.Context, userID string) (RefreshResult, error) {
	cred, err := s.Credentials.Get(ctx, userID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh accounts: load credential: %w", err)
	}
	if cred == nil {
		return RefreshResult{}, Errorf(KindPreconditionFailed, "bank not linked")
	}

	accounts, err := s.Provider.ListAccounts(ctx, cred.AccessToken)
	if err != nil {
		return RefreshResult{}, Errorf(KindUpstream, "provider account list failed: %v", err)
	}

	existing, err := s.Accounts.List(ctx, userID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh accounts: list existing: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, a := range existing {
		known[a.ID] = true
	}

	institutions := make(map[string]provider.Institution)
	res := RefreshResult{Count: len(accounts)}
	for _, pa := range accounts {
		inst, ok := institutions[pa.InstitutionID]
		if !ok && pa.InstitutionID != "" {
			inst, err = s.Provider.GetInstitution(ctx, pa.InstitutionID)
			if err != nil {
				s.Log.Warn().Err(err).Str("institution_id", pa.InstitutionID).
					Msg("institution lookup failed, keeping stored metadata")
				inst = provider.Institution{ID: pa.InstitutionID, Name: pa.InstitutionID}
			}
			institutions[pa.InstitutionID] = inst
		}
		if err := s.Accounts.Upsert(ctx, mapProviderAccount(userID, pa, inst)); err != nil {
			return RefreshResult{}, fmt.Errorf("refresh accounts: upsert %s: %w", pa.ID, err)
		}
		if known[pa.ID] {
			res.Updated++
		} else {
			res.Added++
		}
	}
	return res, nil
}

// Delete removes an account. With cascade, the account's transactions go in
// the same transaction; without it they stay as orphans referencing the old
// account id. Returns the number of transactions deleted.
func (s *AccountService) Delete(ctx context.Context, userID, accountID string, cascade bool) (int64, error) {
	var deleted int64
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		ok, err := s.Accounts.DeleteTx(ctx, tx, userID, accountID)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if !ok {
			return Errorf(KindNotFound, "account %s not found", accountID)
		}
		if !cascade {
			return nil
		}
		deleted, err = s.Transactions.DeleteByAccountTx(ctx, tx, userID, accountID)
		if err != nil {
			return fmt.Errorf("delete account transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// InstitutionGroup is a set of accounts under one institution.
type InstitutionGroup struct {
	InstitutionID   string               `json:"institutionId"`
	InstitutionName string               `json:"institutionName"`
	InstitutionLogo *string              `json:"institutionLogo,omitempty"`
	Accounts        []repository.Account `json:"accounts"`
}

// ListGrouped returns the user's accounts grouped by institution, in the
// stored (institution name, account name) order.
func (s *AccountService) ListGrouped(ctx context.Context, userID string) ([]InstitutionGroup, error) {
	accounts, err := s.Accounts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var groups []InstitutionGroup
	for _, a := range accounts {
		if n := len(groups); n > 0 && groups[n-1].InstitutionID == a.InstitutionID {
			groups[n-1].Accounts = append(groups[n-1].Accounts, a)
			continue
		}
		groups = append(groups, InstitutionGroup{
			InstitutionID:   a.InstitutionID,
			InstitutionName: a.InstitutionName,
			InstitutionLogo: a.InstitutionLogo,
			Accounts:        []repository.Account{a},
		})
	}
	return groups, nil
}

func mapProviderAccount(userID string, pa provider.Account, inst provider.Institution) repository.Account {
	a := repository.Account{
		ID:              pa.ID,
		UserID:          userID,
		Name:            pa.Name,
		InstitutionID:   pa.InstitutionID,
		InstitutionName: inst.Name,
	}
	if a.InstitutionName == "" {
		a.InstitutionName = pa.InstitutionID
	}
	if pa.OfficialName != "" {
		v := pa.OfficialName
		a.OfficialName = &v
	}
	if pa.Mask != "" {
		v := pa.Mask
		a.Mask = &v
	}
	if pa.Subtype != "" {
		v := pa.Subtype
		a.Subtype = &v
	}
	if pa.Type != "" {
		v := pa.Type
		a.Type = &v
	}
	if inst.Logo != "" {
		v := inst.Logo
		a.InstitutionLogo = &v
	}
	return a
}
