package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	username string
	email    string
	password string
	active   bool
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		username: fmt.Sprintf("testuser_%s", suffix),
		email:    fmt.Sprintf("testuser_%s@example.com", suffix),
		password: "testpassword123",
		active:   true,
	}
}

// WithUsername sets the username
func (b *UserBuilder) WithUsername(username string) *UserBuilder {
	b.username = username
	return b
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Inactive marks the user as deactivated
func (b *UserBuilder) Inactive() *UserBuilder {
	b.active = false
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     b.username,
		Email:        b.email,
		PasswordHash: string(hashedPassword),
		Active:       b.active,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// ClientBuilder creates registered API clients
type ClientBuilder struct {
	id      string
	name    string
	secret  string
	origins []string
}

// NewClientBuilder creates a new ClientBuilder with default values
func NewClientBuilder() *ClientBuilder {
	suffix := uuid.New().String()[:8]
	return &ClientBuilder{
		id:     fmt.Sprintf("client_%s", suffix),
		name:   fmt.Sprintf("app_%s", suffix),
		secret: uuid.New().String(),
	}
}

// WithID sets the client id
func (b *ClientBuilder) WithID(id string) *ClientBuilder {
	b.id = id
	return b
}

// WithSecret sets the client secret
func (b *ClientBuilder) WithSecret(secret string) *ClientBuilder {
	b.secret = secret
	return b
}

// WithOrigins restricts the client to the given origins
func (b *ClientBuilder) WithOrigins(origins ...string) *ClientBuilder {
	b.origins = origins
	return b
}

// Build creates the client in the database
func (b *ClientBuilder) Build(t *testing.T, db *gorm.DB) *domain.Client {
	t.Helper()

	client := &domain.Client{
		ID:        b.id,
		Name:      b.name,
		Secret:    b.secret,
		CreatedAt: time.Now(),
	}
	if len(b.origins) > 0 {
		origins, err := json.Marshal(b.origins)
		if err != nil {
			t.Fatalf("failed to marshal origins: %v", err)
		}
		client.AllowedOrigins = datatypes.JSON(origins)
	}
	if err := db.Create(client).Error; err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}

// TokenResponse matches the grant endpoint response body
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// PasswordGrant posts a password grant with the client's Basic credentials
func PasswordGrant(t *testing.T, ts *TestServer, client *domain.Client, username, password string) *http.Response {
	t.Helper()

	return grantRequest(t, ts, client, map[string]string{
		"grant_type": "password",
		"username":   username,
		"password":   password,
	})
}

// RefreshGrant posts a refresh_token grant with the client's Basic credentials
func RefreshGrant(t *testing.T, ts *TestServer, client *domain.Client, refresh string) *http.Response {
	t.Helper()

	return grantRequest(t, ts, client, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refresh,
	})
}

func grantRequest(t *testing.T, ts *TestServer, client *domain.Client, body map[string]string) *http.Response {
	t.Helper()

	payload, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, ts.APIURL("/token"), bytes.NewBuffer(payload))
	if err != nil {
		t.Fatalf("failed to build grant request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if client != nil {
		req.SetBasicAuth(client.ID, client.Secret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("grant request failed: %v", err)
	}
	return resp
}

// Authenticate creates a user, runs a password grant and returns the
// user together with the issued bearer string and refresh value.
func (b *UserBuilder) Authenticate(t *testing.T, ts *TestServer, client *domain.Client) (*domain.User, *TokenResponse) {
	t.Helper()

	user, password := b.Build(t, ts.DB.DB)

	resp := PasswordGrant(t, ts, client, user.Username, password)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected grant status code: %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}

	return user, &tokenResp
}

// CreateAuthenticatedRequest builds a request carrying a bearer token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body []byte, token string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
