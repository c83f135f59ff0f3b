package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fram/tokenauth/internal/domain"
	"github.com/fram/tokenauth/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService verifies end-user credentials and manages the user
// lifecycle around them.
type AuthService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
}

func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Authenticate resolves username (email as fallback) and checks the
// password. Absent user, inactive user and wrong password all collapse
// to ErrInvalidCredentials so callers cannot enumerate usernames.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		user, err = s.userRepo.GetByEmail(ctx, username)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active || !user.CheckPassword(password) {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	user := &domain.User{
		ID:        uuid.New(),
		Username:  input.Username,
		Email:     input.Email,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := user.SetPassword(input.Password); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ChangePassword rehashes after verifying the current password.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(current) {
		return domain.ErrInvalidCredentials
	}
	if err := user.SetPassword(next); err != nil {
		return err
	}
	return s.userRepo.Update(ctx, user)
}

// RequestPasswordReset stores a hash of a fresh reset code and returns
// the plaintext code once. Unknown emails report success to the caller;
// the distinction is only logged.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			log.Printf("ERROR [AuthService.RequestPasswordReset] unknown email %q", email)
			return "", nil
		}
		return "", err
	}

	code := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	h := string(hash)
	user.ResetCodeHash = &h
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", err
	}

	return code, nil
}

// ResetPassword consumes a reset code. Any issued tokens are revoked so
// a stolen session does not outlive the reset.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, password string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidCredentials
		}
		return err
	}
	if !user.CheckResetCode(code) {
		return domain.ErrInvalidCredentials
	}

	if err := user.SetPassword(password); err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	return s.tokenRepo.DeleteByUserID(ctx, user.ID)
}

// Deactivate marks the user inactive and revokes any token. Users are
// deactivated rather than deleted when access must be withdrawn.
func (s *AuthService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.Deactivate(ctx, userID); err != nil {
		return err
	}
	return s.tokenRepo.DeleteByUserID(ctx, userID)
}
