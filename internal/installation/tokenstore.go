package installation

import (
	"context"
	"fmt"
	"time"

	smartthings "github.com/tj-smith47/smartthings-go"
)

// TokenStore persists OAuth tokens for a single installed app through the
// installation repository. It satisfies the smartthings.TokenStore
// interface so the client library can transparently reload rotated
// refresh tokens across restarts.
type TokenStore struct {
	repo           Repository
	installedAppID string
}

// NewTokenStore creates a token store bound to one installed app.
func NewTokenStore(repo Repository, installedAppID string) *TokenStore {
	return &TokenStore{repo: repo, installedAppID: installedAppID}
}

// SaveTokens persists a freshly issued token pair.
func (s *TokenStore) SaveTokens(ctx context.Context, tokens *smartthings.TokenResponse) error {
	if tokens == nil {
		return fmt.Errorf("installation: nil token response")
	}
	expiresAt := tokens.ExpiresAt
	if expiresAt.IsZero() && tokens.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	err := s.repo.UpdateTokens(ctx, s.installedAppID, tokens.AccessToken, tokens.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}
	return nil
}

// LoadTokens returns the stored token pair, or ErrNoTokens when the
// installation has never completed an OAuth exchange.
func (s *TokenStore) LoadTokens(ctx context.Context) (*smartthings.TokenResponse, error) {
	inst, err := s.repo.GetByInstalledAppID(ctx, s.installedAppID)
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}
	if inst.RefreshToken == "" {
		return nil, ErrNoTokens
	}
	return &smartthings.TokenResponse{
		AccessToken:    inst.AccessToken,
		RefreshToken:   inst.RefreshToken,
		TokenType:      "bearer",
		InstalledAppID: inst.InstalledAppID,
		ExpiresAt:      inst.TokenExpiresAt,
	}, nil
}
