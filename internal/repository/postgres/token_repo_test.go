package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/repository/postgres"
	"github.com/fram/tokenauth/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository_Issue(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTokenRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	t.Run("issues a fresh token", func(t *testing.T) {
		token, err := repo.Issue(ctx, user.ID, time.Hour)
		require.NoError(t, err)

		assert.Len(t, token.ID, 16)
		assert.Equal(t, user.ID, token.UserID)
		assert.NotEmpty(t, token.Secret)
		assert.NotEmpty(t, token.Refresh)
		require.NotNil(t, token.ExpiresAt)
		assert.True(t, token.ExpiresAt.After(token.CreatedAt))
		assert.True(t, token.IsValid())
	})

	t.Run("replaces the previous token", func(t *testing.T) {
		first, err := repo.Issue(ctx, user.ID, time.Hour)
		require.NoError(t, err)

		second, err := repo.Issue(ctx, user.ID, time.Hour)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
		assert.NotEqual(t, first.Secret, second.Secret)
		assert.NotEqual(t, first.Refresh, second.Refresh)

		// The old token is gone in every retrievable form
		_, err = repo.GetByID(ctx, first.ID)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
		_, err = repo.GetByRefresh(ctx, first.Refresh)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)

		var count int64
		testDB.DB.Model(&domain.Token{}).Where("user_id = ?", user.ID).Count(&count)
		assert.EqualValues(t, 1, count)
	})

	t.Run("zero ttl issues a non-expiring token", func(t *testing.T) {
		token, err := repo.Issue(ctx, user.ID, 0)
		require.NoError(t, err)
		assert.Nil(t, token.ExpiresAt)
		assert.True(t, token.IsValid())
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.Issue(ctx, uuid.New(), time.Hour)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestTokenRepository_Issue_Concurrent(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTokenRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	// Two concurrent issuances for one user must serialize on the user
	// row lock: both succeed, exactly one token survives.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Issue(ctx, user.ID, time.Hour)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var count int64
	testDB.DB.Model(&domain.Token{}).Where("user_id = ?", user.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	survivor, err := repo.GetActiveByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, survivor.IsValid())
}

func TestTokenRepository_GetActiveByUserID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTokenRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	t.Run("no token", func(t *testing.T) {
		_, err := repo.GetActiveByUserID(ctx, user.ID)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	})

	t.Run("valid token", func(t *testing.T) {
		issued, err := repo.Issue(ctx, user.ID, time.Hour)
		require.NoError(t, err)

		found, err := repo.GetActiveByUserID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, issued.ID, found.ID)
	})

	t.Run("expired token stays in storage but is not returned", func(t *testing.T) {
		require.NoError(t, testDB.DB.Delete(&domain.Token{}, "user_id = ?", user.ID).Error)

		expired := expiredToken(t, user.ID)
		require.NoError(t, testDB.DB.Create(expired).Error)

		_, err := repo.GetActiveByUserID(ctx, user.ID)
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)

		// still present, still reachable by id
		found, err := repo.GetByID(ctx, expired.ID)
		require.NoError(t, err)
		assert.False(t, found.IsValid())
	})
}

func TestTokenRepository_GetByRefresh(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTokenRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	t.Run("unknown refresh value", func(t *testing.T) {
		_, err := repo.GetByRefresh(ctx, "no-such-refresh")
		assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	})

	t.Run("returns expired tokens too", func(t *testing.T) {
		expired := expiredToken(t, user.ID)
		require.NoError(t, testDB.DB.Create(expired).Error)

		found, err := repo.GetByRefresh(ctx, expired.Refresh)
		require.NoError(t, err)
		assert.Equal(t, expired.ID, found.ID)
		assert.False(t, found.IsValid())
	})
}

func TestTokenRepository_DeleteByUserID(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewTokenRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	_, err := repo.Issue(ctx, user.ID, time.Hour)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByUserID(ctx, user.ID))
	_, err = repo.GetActiveByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	// idempotent when nothing is left
	require.NoError(t, repo.DeleteByUserID(ctx, user.ID))
}

func expiredToken(t *testing.T, userID uuid.UUID) *domain.Token {
	t.Helper()

	token, err := domain.NewToken(userID, time.Hour)
	require.NoError(t, err)

	expiry := time.Now().Add(-time.Minute)
	token.CreatedAt = expiry.Add(-time.Hour)
	token.ExpiresAt = &expiry
	return token
}
