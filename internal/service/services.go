package service

import (
	"github.com/fram/tokenauth/internal/config"
	"github.com/fram/tokenauth/internal/repository"
	"github.com/fram/tokenauth/internal/token"
)

type Services struct {
	Auth   *AuthService
	Grant  *GrantService
	Client *ClientService
	Codec  *token.Codec
}

func NewServices(repos *repository.Repositories, cfg *config.Config) *Services {
	codec := token.NewCodec(cfg.Issuer, repos.Token)
	auth := NewAuthService(repos.User, repos.Token)

	return &Services{
		Auth:   auth,
		Grant:  NewGrantService(auth, repos.Token, codec, cfg),
		Client: NewClientService(repos.Client),
		Codec:  codec,
	}
}
