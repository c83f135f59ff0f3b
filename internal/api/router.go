package api

import (
	"net/http"

	"github.com/fram/tokenauth/internal/api/handlers"
	"github.com/fram/tokenauth/internal/api/middleware"
	"github.com/fram/tokenauth/internal/config"
	"github.com/fram/tokenauth/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(services *service.Services, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Initialize handlers
	tokenHandler := handlers.NewTokenHandler(services.Grant)
	userHandler := handlers.NewUserHandler(services.Auth)

	clientGate := func(r chi.Router) chi.Router {
		if cfg.ClientAuthEnabled {
			return r.With(middleware.ClientAuth(services.Client, cfg.Realm))
		}
		return r
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Grant endpoint, gated by client credentials when enabled
		clientGate(r).Post("/token", tokenHandler.Create)

		// Registration and reset flow share the client gate
		clientGate(r).Post("/users", userHandler.Register)
		clientGate(r).Post("/users/reset-password", userHandler.RequestReset)
		clientGate(r).Put("/users/password", userHandler.ResetPassword)

		// Bearer-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(services.Codec))
			r.Delete("/token", tokenHandler.Delete)
			r.Get("/users/me", userHandler.Me)
			r.Put("/users/me/password", userHandler.ChangePassword)
		})
	})

	return r
}
