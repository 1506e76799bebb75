package service

import (
	"errors"

	"ledgerpay/config"
	"ledgerpay/internal/auth"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCreds = errors.New("invalid email or password")
	ErrNotOperator  = errors.New("account is not an operator")
)

type AuthService struct {
	cfg      *config.JWTConfig
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.JWTConfig, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

// OperatorLogin checks an admin's password and issues an ADMIN access token.
func (s *AuthService) OperatorLogin(email, password string) (*models.User, string, error) {
	u, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if u.PasswordHash == "" {
		return nil, "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	if !u.IsAdmin() {
		return nil, "", ErrNotOperator
	}
	token, err := auth.GenerateAccessToken(s.cfg, u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// IssueToken mints a token for an existing user. Used by the CLI for
// bot-side integrations that act on a user's behalf.
func (s *AuthService) IssueToken(userID uint) (string, error) {
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return "", err
	}
	return auth.GenerateAccessToken(s.cfg, u.ID, u.Role)
}
