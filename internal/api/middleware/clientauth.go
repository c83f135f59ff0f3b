package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/service"
)

// ClientAuth gates an endpoint behind HTTP Basic credentials of a
// registered client application. Failure answers with the standard
// challenge; the end-user grant is never evaluated.
func ClientAuth(clients *service.ClientService, realm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, secret, ok := r.BasicAuth()
			if !ok {
				challenge(w, realm)
				return
			}

			client, err := clients.Authenticate(r.Context(), id, secret)
			if err != nil {
				log.Printf("ERROR [middleware.ClientAuth] client %q rejected: %v", id, err)
				challenge(w, realm)
				return
			}

			applyClientOrigin(w, r, client)

			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// applyClientOrigin narrows the wildcard set by the CORS middleware to
// the authenticated client's registered origins. Clients without a
// registered origin list keep the wildcard.
func applyClientOrigin(w http.ResponseWriter, r *http.Request, client *domain.Client) {
	if len(client.Origins()) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && client.OriginAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
		return
	}
	w.Header().Del("Access-Control-Allow-Origin")
}

func challenge(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func GetClient(ctx context.Context) (*domain.Client, bool) {
	client, ok := ctx.Value(ClientKey).(*domain.Client)
	return client, ok
}
