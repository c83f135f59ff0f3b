// Package token converts between stored token records and their signed
// bearer-string form. Unlike a stateless JWT setup there is no
// server-wide signing key: each token row carries its own secret, so
// verification always starts with a lookup of the claimed jti. The row
// is the root of trust.
package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

type Codec struct {
	issuer string
	tokens repository.TokenRepository
}

func NewCodec(issuer string, tokens repository.TokenRepository) *Codec {
	return &Codec{issuer: issuer, tokens: tokens}
}

// Encode signs the token's claims with its own secret and returns the
// three-part bearer string. No side effects.
func (c *Codec) Encode(t *domain.Token) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c.claims(t)).
		SignedString([]byte(t.Secret))
}

// Decode resolves a bearer string back to its stored token. The jti
// claim identifies the row, the row's secret verifies the signature,
// and the presented claims must match the re-derived ones byte for
// byte. Failures are logged here; callers only see the sentinel.
func (c *Codec) Decode(ctx context.Context, bearer string) (*domain.Token, error) {
	parts := strings.Split(bearer, ".")
	if len(parts) != 3 {
		return nil, domain.ErrMalformedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		log.Printf("ERROR [token.Codec.Decode] undecodable payload: %v", err)
		return nil, domain.ErrMalformedToken
	}

	var claims struct {
		JTI string `json:"jti"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		log.Printf("ERROR [token.Codec.Decode] payload is not valid JSON: %v", err)
		return nil, domain.ErrMalformedToken
	}
	if claims.JTI == "" {
		return nil, domain.ErrMissingClaim
	}

	id, err := domain.TokenIDFromJTI(claims.JTI)
	if err != nil {
		log.Printf("ERROR [token.Codec.Decode] jti is not a UUID: %v", err)
		return nil, domain.ErrMalformedToken
	}

	stored, err := c.tokens.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Verify the signature with the stored secret, then require the
	// presented string to equal the re-derived encoding exactly. Claims
	// marshal deterministically, so any altered bit in payload or
	// signature fails one of the two checks.
	_, err = jwt.Parse(bearer, func(*jwt.Token) (interface{}, error) {
		return []byte(stored.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		log.Printf("ERROR [token.Codec.Decode] verification failed for jti %s: %v", claims.JTI, err)
		return nil, domain.ErrSignatureMismatch
	}

	derived, err := c.Encode(stored)
	if err != nil {
		log.Printf("ERROR [token.Codec.Decode] re-encoding failed for jti %s: %v", claims.JTI, err)
		return nil, domain.ErrSignatureMismatch
	}
	if derived != bearer {
		return nil, domain.ErrSignatureMismatch
	}

	return stored, nil
}

func (c *Codec) claims(t *domain.Token) jwt.MapClaims {
	claims := jwt.MapClaims{
		"jti": t.JTI(),
		"iss": c.issuer,
		"sub": t.UserID.String(),
		"iat": t.CreatedAt.Unix(),
	}
	if t.ExpiresAt != nil {
		claims["exp"] = t.ExpiresAt.Unix()
	}
	return claims
}
