package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/repository"
	"gorm.io/datatypes"
)

// ClientService authenticates calling applications. It gates access to
// the grant endpoint itself, before any end-user grant is evaluated.
type ClientService struct {
	clientRepo repository.ClientRepository
}

func NewClientService(clientRepo repository.ClientRepository) *ClientService {
	return &ClientService{clientRepo: clientRepo}
}

func (s *ClientService) Authenticate(ctx context.Context, id, secret string) (*domain.Client, error) {
	if id == "" || secret == "" {
		return nil, domain.ErrClientUnauthorized
	}
	return s.clientRepo.GetByCredentials(ctx, id, secret)
}

type RegisterClientInput struct {
	ID             string
	Name           string
	Secret         string
	AllowedOrigins []string
}

// Register creates a client. There is no update path; a client is
// replaced by registering a new one and retiring the old id.
func (s *ClientService) Register(ctx context.Context, input RegisterClientInput) (*domain.Client, error) {
	origins, err := json.Marshal(input.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		ID:             input.ID,
		Name:           input.Name,
		Secret:         input.Secret,
		AllowedOrigins: datatypes.JSON(origins),
		CreatedAt:      time.Now(),
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *ClientService) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}
