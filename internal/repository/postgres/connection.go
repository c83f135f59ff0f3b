package postgres

import (
	"errors"
	"strings"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate tables
	err = db.AutoMigrate(
		&domain.User{},
		&domain.Token{},
		&domain.Client{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// isUniqueViolation matches both gorm's translated error and the raw
// Postgres 23505 message, since TranslateError is not enabled here.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value")
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:   NewUserRepository(db),
		Token:  NewTokenRepository(db),
		Client: NewClientRepository(db),
	}
}
