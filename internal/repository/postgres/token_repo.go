package postgres

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *tokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) GetByID(ctx context.Context, id []byte) (*domain.Token, error) {
	var token domain.Token
	err := r.db.WithContext(ctx).First(&token, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Token, error) {
	var token domain.Token
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) GetByRefresh(ctx context.Context, refresh string) (*domain.Token, error) {
	var token domain.Token
	err := r.db.WithContext(ctx).First(&token, "refresh = ?", refresh).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// Issue replaces whatever token the user holds with a freshly generated
// one. The delete and insert run in one transaction under a row lock on
// the user, so two concurrent issuances for the same user serialize and
// exactly one token survives. A uniqueness collision on the random
// id/secret/refresh gets one retry with fresh values.
func (r *tokenRepository) Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (*domain.Token, error) {
	var issued *domain.Token

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}

		if err := tx.Delete(&domain.Token{}, "user_id = ?", userID).Error; err != nil {
			return err
		}

		for attempt := 0; attempt < 2; attempt++ {
			token, err := domain.NewToken(userID, ttl)
			if err != nil {
				return err
			}
			err = tx.Create(token).Error
			if err == nil {
				issued = token
				return nil
			}
			if !isUniqueViolation(err) {
				return err
			}
		}
		return domain.ErrIssuanceFailed
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrIssuanceFailed) {
			return nil, err
		}
		log.Printf("ERROR [tokenRepository.Issue] issuance failed for user %s: %v", userID, err)
		return nil, domain.ErrIssuanceFailed
	}
	return issued, nil
}

func (r *tokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Token{}, "user_id = ?", userID).Error
}
