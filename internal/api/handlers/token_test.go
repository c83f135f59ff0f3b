package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenHandler_PasswordGrant(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)

	user, password := testutil.NewUserBuilder().
		WithUsername("grantuser").
		Build(t, ts.DB.DB)

	t.Run("first grant issues a fresh token", func(t *testing.T) {
		resp := testutil.PasswordGrant(t, ts, client, user.Username, password)
		defer resp.Body.Close()

		testutil.AssertStatusCode(t, resp, http.StatusCreated)
		testutil.AssertNoStore(t, resp)

		var result testutil.TokenResponse
		testutil.AssertJSONResponse(t, resp, &result)
		assert.Equal(t, "bearer", result.TokenType)
		assert.EqualValues(t, 3600, result.ExpiresIn)
		assert.Len(t, strings.Split(result.AccessToken, "."), 3)
		assert.NotEmpty(t, result.RefreshToken)
	})

	t.Run("repeat grant returns the same token with 200", func(t *testing.T) {
		first := testutil.PasswordGrant(t, ts, client, user.Username, password)
		defer first.Body.Close()
		var firstResult testutil.TokenResponse
		testutil.AssertJSONResponse(t, first, &firstResult)

		second := testutil.PasswordGrant(t, ts, client, user.Username, password)
		defer second.Body.Close()

		testutil.AssertStatusCode(t, second, http.StatusOK)
		testutil.AssertNoStore(t, second)

		var secondResult testutil.TokenResponse
		testutil.AssertJSONResponse(t, second, &secondResult)
		assert.Equal(t, firstResult.AccessToken, secondResult.AccessToken)
		assert.Equal(t, firstResult.RefreshToken, secondResult.RefreshToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := testutil.PasswordGrant(t, ts, client, user.Username, "nope")
		defer resp.Body.Close()
		testutil.AssertOAuthError(t, resp, http.StatusBadRequest, "invalid_grant")
	})

	t.Run("missing username", func(t *testing.T) {
		resp := testutil.PasswordGrant(t, ts, client, "", password)
		defer resp.Body.Close()
		testutil.AssertOAuthError(t, resp, http.StatusBadRequest, "invalid_request")
	})
}

func TestTokenHandler_RefreshGrant(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)

	_, granted := testutil.NewUserBuilder().Authenticate(t, ts, client)

	t.Run("refresh rotates the token", func(t *testing.T) {
		resp := testutil.RefreshGrant(t, ts, client, granted.RefreshToken)
		defer resp.Body.Close()

		testutil.AssertStatusCode(t, resp, http.StatusCreated)
		testutil.AssertNoStore(t, resp)

		var result testutil.TokenResponse
		testutil.AssertJSONResponse(t, resp, &result)
		assert.NotEqual(t, granted.AccessToken, result.AccessToken)
		assert.NotEqual(t, granted.RefreshToken, result.RefreshToken)

		// the consumed refresh value no longer works
		retry := testutil.RefreshGrant(t, ts, client, granted.RefreshToken)
		defer retry.Body.Close()
		testutil.AssertOAuthError(t, retry, http.StatusBadRequest, "invalid_grant")
	})

	t.Run("unknown refresh value", func(t *testing.T) {
		resp := testutil.RefreshGrant(t, ts, client, "never-issued")
		defer resp.Body.Close()
		testutil.AssertOAuthError(t, resp, http.StatusBadRequest, "invalid_grant")
	})

	t.Run("missing refresh value", func(t *testing.T) {
		resp := testutil.RefreshGrant(t, ts, client, "")
		defer resp.Body.Close()
		testutil.AssertOAuthError(t, resp, http.StatusBadRequest, "invalid_request")
	})
}

func TestTokenHandler_GrantType(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)

	tests := []struct {
		name      string
		grantType string
	}{
		{name: "unsupported grant type", grantType: "client_credentials"},
		{name: "missing grant type", grantType: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"grant_type": tt.grantType})
			req, err := http.NewRequest(http.MethodPost, ts.APIURL("/token"), bytes.NewBuffer(body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			req.SetBasicAuth(client.ID, client.Secret)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			testutil.AssertOAuthError(t, resp, http.StatusBadRequest, "unsupported_grant_type")
		})
	}
}

func TestTokenHandler_FormBody(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)
	user, password := testutil.NewUserBuilder().Build(t, ts.DB.DB)

	form := "grant_type=password&username=" + user.Username + "&password=" + password
	req, err := http.NewRequest(http.MethodPost, ts.APIURL("/token"), strings.NewReader(form))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(client.ID, client.Secret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	testutil.AssertStatusCode(t, resp, http.StatusCreated)
}

func TestTokenHandler_ClientAuth(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)
	user, password := testutil.NewUserBuilder().Build(t, ts.DB.DB)

	tests := []struct {
		name   string
		client *domain.Client
	}{
		{name: "no client credentials", client: nil},
		{name: "wrong client secret", client: &domain.Client{ID: client.ID, Secret: "forged"}},
		{name: "unknown client", client: &domain.Client{ID: "ghost", Secret: client.Secret}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.PasswordGrant(t, ts, tt.client, user.Username, password)
			defer resp.Body.Close()

			testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
			assert.Equal(t, `Basic realm="api"`, resp.Header.Get("WWW-Authenticate"))
		})
	}
}

func TestTokenHandler_ClientOrigins(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, password := testutil.NewUserBuilder().Build(t, ts.DB.DB)

	restricted := testutil.NewClientBuilder().
		WithOrigins("https://app.example.com").
		Build(t, ts.DB.DB)
	open := testutil.NewClientBuilder().Build(t, ts.DB.DB)

	grantFrom := func(t *testing.T, client *domain.Client, origin string) *http.Response {
		t.Helper()

		body, _ := json.Marshal(map[string]string{
			"grant_type": "password",
			"username":   user.Username,
			"password":   password,
		})
		req, err := http.NewRequest(http.MethodPost, ts.APIURL("/token"), bytes.NewBuffer(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(client.ID, client.Secret)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("registered origin is echoed", func(t *testing.T) {
		resp := grantFrom(t, restricted, "https://app.example.com")
		defer resp.Body.Close()

		assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("unregistered origin gets no allow header", func(t *testing.T) {
		resp := grantFrom(t, restricted, "https://evil.example.com")
		defer resp.Body.Close()

		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("client without registered origins keeps the wildcard", func(t *testing.T) {
		resp := grantFrom(t, open, "https://anywhere.example.com")
		defer resp.Body.Close()

		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestTokenHandler_Delete(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)

	user, granted := testutil.NewUserBuilder().Authenticate(t, ts, client)

	req := testutil.CreateAuthenticatedRequest(t, http.MethodDelete, ts.APIURL("/token"), nil, granted.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusNoContent)

	// the bearer string is dead once its row is gone
	req = testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/users/me"), nil, granted.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)

	_, err = ts.Repos.Token.GetActiveByUserID(context.Background(), user.ID)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestTokenHandler_ExpiredBearer(t *testing.T) {
	ts := testutil.NewTestServer(t)
	client := testutil.NewClientBuilder().Build(t, ts.DB.DB)

	user, granted := testutil.NewUserBuilder().Authenticate(t, ts, client)

	expiry := time.Now().Add(-time.Minute)
	require.NoError(t, ts.DB.DB.Model(&domain.Token{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", expiry).Error)

	req := testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/users/me"), nil, granted.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
}
