package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Token is one issued bearer credential. The ID is the binary form of a
// UUID; the Secret signs this token's bearer string and nothing else.
// The unique index on UserID keeps at most one row per user.
type Token struct {
	ID        []byte     `json:"-" gorm:"type:bytea;primary_key"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;uniqueIndex;not null"`
	Secret    string     `json:"-" gorm:"uniqueIndex;not null"`
	Refresh   string     `json:"-" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// NewToken builds an unsaved token with fresh random id, secret and
// refresh value. ttl <= 0 means the token never expires.
func NewToken(userID uuid.UUID, ttl time.Duration) (*Token, error) {
	id := uuid.New()

	secret, err := randomString(32)
	if err != nil {
		return nil, err
	}
	refresh, err := randomString(32)
	if err != nil {
		return nil, err
	}

	now := time.Now().Truncate(time.Second)
	t := &Token{
		ID:        id[:],
		UserID:    userID,
		Secret:    secret,
		Refresh:   refresh,
		CreatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		t.ExpiresAt = &exp
	}
	return t, nil
}

// IsValid reports whether the token has not expired. A nil expiry never
// expires.
func (t *Token) IsValid() bool {
	return t.ExpiresAt == nil || t.ExpiresAt.After(time.Now())
}

// JTI renders the binary id as its canonical UUID string, the form the
// bearer string carries.
func (t *Token) JTI() string {
	id, err := uuid.FromBytes(t.ID)
	if err != nil {
		return ""
	}
	return id.String()
}

// ExpiresIn is the token lifetime in seconds, 0 for non-expiring tokens.
func (t *Token) ExpiresIn() int64 {
	if t.ExpiresAt == nil {
		return 0
	}
	return int64(t.ExpiresAt.Sub(t.CreatedAt).Seconds())
}

// TokenIDFromJTI converts a jti claim back into the binary primary key.
func TokenIDFromJTI(jti string) ([]byte, error) {
	id, err := uuid.Parse(jti)
	if err != nil {
		return nil, err
	}
	return id[:], nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
