package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbell/centsible/internal/database/repository"
	"github.com/mbell/centsible/internal/provider"
)

// LinkService runs the provider link handshake and stores the resulting
// credential.
type LinkService struct {
	Credentials *repository.CredentialRepo
	Provider    provider.Client
}

// CreateLinkToken asks the provider for a short-lived link token the client
// hands to the provider's link widget.
func (s *LinkService) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	token, err := s.Provider.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", Errorf(KindUpstream, "link token creation failed: %v", err)
	}
	return token, nil
}

// ExchangePublicToken trades the widget's public token for a durable access
// token and stores it. The stored credential starts with a NULL cursor so the
// next sync pulls from the beginning; re-linking keeps an existing cursor.
func (s *LinkService) ExchangePublicToken(ctx context.Context, userID, publicToken string) error {
	if strings.TrimSpace(publicToken) == "" {
		return Errorf(KindValidation, "public_token must not be empty")
	}
	res, err := s.Provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return Errorf(KindUpstream, "public token exchange failed: %v", err)
	}
	cred := repository.Credential{
		UserID:      userID,
		AccessToken: res.AccessToken,
		ItemID:      res.ItemID,
	}
	if err := s.Credentials.Upsert(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}
