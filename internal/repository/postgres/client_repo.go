package postgres

import (
	"context"
	"errors"

	"github.com/fram/tokenauth/internal/domain"
	"gorm.io/gorm"
)

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *clientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientUnauthorized
		}
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) GetByCredentials(ctx context.Context, id, secret string) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).First(&client, "id = ? AND secret = ?", id, secret).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrClientUnauthorized
		}
		return nil, err
	}
	return &client, nil
}
