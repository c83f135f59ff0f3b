package repository

import (
	"context"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// TokenRepository owns the token lifecycle. GetActiveByUserID filters out
// expired rows; GetByRefresh does not — expiry policy for refresh grants
// belongs to the caller.
type TokenRepository interface {
	GetByID(ctx context.Context, id []byte) (*domain.Token, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Token, error)
	GetByRefresh(ctx context.Context, refresh string) (*domain.Token, error)
	Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*domain.Token, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// ClientRepository has no update method: clients are immutable once
// registered.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	GetByCredentials(ctx context.Context, id, secret string) (*domain.Client, error)
}

type Repositories struct {
	User   UserRepository
	Token  TokenRepository
	Client ClientRepository
}
