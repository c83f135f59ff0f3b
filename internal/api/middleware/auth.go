package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	TokenKey  contextKey = "token"
	ClientKey contextKey = "client"
)

// TokenDecoder is the slice of the codec this middleware needs.
type TokenDecoder interface {
	Decode(ctx context.Context, bearer string) (*domain.Token, error)
}

// BearerAuth authenticates requests by resolving the presented bearer
// string back to its stored token. Every decode failure collapses to
// one 401; detail stays in the logs.
func BearerAuth(codec TokenDecoder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			token, err := codec.Decode(r.Context(), parts[1])
			if err != nil {
				log.Printf("ERROR [middleware.BearerAuth] token rejected: %v", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if !token.IsValid() {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, token.UserID)
			ctx = context.WithValue(ctx, TokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}
