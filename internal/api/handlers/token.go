package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/fram/tokenauth/internal/api/middleware"
	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/service"
)

type TokenHandler struct {
	grantService *service.GrantService
}

func NewTokenHandler(grantService *service.GrantService) *TokenHandler {
	return &TokenHandler{grantService: grantService}
}

type grantRequest struct {
	GrantType    string `json:"grant_type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type oauthError struct {
	Error string `json:"error"`
}

const (
	errInvalidRequest       = "invalid_request"
	errInvalidGrant         = "invalid_grant"
	errUnsupportedGrantType = "unsupported_grant_type"
	errServerError          = "server_error"
)

// Create handles POST /token. The body may be JSON or a form; only
// grant_type decides the transition taken.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := parseGrantRequest(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}

	var result *service.GrantResult
	switch req.GrantType {
	case service.GrantTypePassword:
		result, err = h.grantService.PasswordGrant(r.Context(), req.Username, req.Password)
	case service.GrantTypeRefresh:
		result, err = h.grantService.RefreshGrant(r.Context(), req.RefreshToken)
	default:
		err = domain.ErrUnsupportedGrantType
	}

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnsupportedGrantType):
			writeOAuthError(w, http.StatusBadRequest, errUnsupportedGrantType)
		case errors.Is(err, domain.ErrMissingCredentials):
			writeOAuthError(w, http.StatusBadRequest, errInvalidRequest)
		case errors.Is(err, domain.ErrInvalidGrant):
			writeOAuthError(w, http.StatusBadRequest, errInvalidGrant)
		default:
			log.Printf("ERROR [TokenHandler.Create] grant failed: %v", err)
			writeOAuthError(w, http.StatusInternalServerError, errServerError)
		}
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}

	// Token responses must never be cached.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(tokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    result.Token.ExpiresIn(),
		RefreshToken: result.Token.Refresh,
	})
}

// Delete handles DELETE /token: bearer-authenticated revocation.
func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.grantService.Revoke(r.Context(), userID); err != nil {
		log.Printf("ERROR [TokenHandler.Delete] revocation failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseGrantRequest(r *http.Request) (*grantRequest, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var req grantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &grantRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		RefreshToken: r.PostFormValue("refresh_token"),
	}, nil
}

func writeOAuthError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(oauthError{Error: code})
}
