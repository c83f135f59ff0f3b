package service

import (
	"context"
	"errors"
	"time"

	"github.com/fram/tokenauth/internal/config"
	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/repository"
	"github.com/fram/tokenauth/internal/token"
	"github.com/google/uuid"
)

const (
	GrantTypePassword = "password"
	GrantTypeRefresh  = "refresh_token"
)

// GrantService runs the OAuth2-style grant flows: password exchanges
// credentials for a token, refresh rotates an existing one. Each call
// completes or fails within the request; nothing is persisted between
// calls.
type GrantService struct {
	auth      *AuthService
	tokenRepo repository.TokenRepository
	codec     *token.Codec
	cfg       *config.Config
}

func NewGrantService(auth *AuthService, tokenRepo repository.TokenRepository, codec *token.Codec, cfg *config.Config) *GrantService {
	return &GrantService{
		auth:      auth,
		tokenRepo: tokenRepo,
		codec:     codec,
		cfg:       cfg,
	}
}

// GrantResult is a minted (or reused) token plus its serialized form.
type GrantResult struct {
	Token       *domain.Token
	AccessToken string
	// Reused is true when a still-valid token was returned as is
	// instead of minting a new one.
	Reused bool
}

// PasswordGrant is idempotent while a valid token exists: repeated
// grants return the same token unchanged.
func (s *GrantService) PasswordGrant(ctx context.Context, username, password string) (*GrantResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}

	user, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, domain.ErrInvalidGrant
		}
		return nil, err
	}

	existing, err := s.tokenRepo.GetActiveByUserID(ctx, user.ID)
	if err == nil {
		return s.result(existing, true)
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, err
	}

	issued, err := s.tokenRepo.Issue(ctx, user.ID, s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return s.result(issued, false)
}

// RefreshGrant always rotates: the matched token is destroyed and a new
// one minted, so the presented refresh value is single-use.
func (s *GrantService) RefreshGrant(ctx context.Context, refresh string) (*GrantResult, error) {
	if refresh == "" {
		return nil, domain.ErrMissingCredentials
	}

	current, err := s.tokenRepo.GetByRefresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrInvalidGrant
		}
		return nil, err
	}

	if !s.refreshable(current) {
		return nil, domain.ErrInvalidGrant
	}

	issued, err := s.tokenRepo.Issue(ctx, current.UserID, s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return s.result(issued, false)
}

func (s *GrantService) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.tokenRepo.DeleteByUserID(ctx, userID)
}

// refreshable applies the configured grace period: negative means an
// expired token may always refresh, zero means only valid tokens may,
// positive bounds how long past expiry a refresh is still honored.
func (s *GrantService) refreshable(t *domain.Token) bool {
	if s.cfg.RefreshGracePeriod < 0 || t.ExpiresAt == nil {
		return true
	}
	return time.Now().Before(t.ExpiresAt.Add(s.cfg.RefreshGracePeriod))
}

func (s *GrantService) result(t *domain.Token, reused bool) (*GrantResult, error) {
	access, err := s.codec.Encode(t)
	if err != nil {
		return nil, err
	}
	return &GrantResult{Token: t, AccessToken: access, Reused: reused}, nil
}
