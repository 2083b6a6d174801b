package services

import (
	goerrors "errors"
	"fmt"
	"strings"

	"campus-connect/auth"
	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, displayName, password string) (Token, error)
}

type Token string

// AuthService issues session tokens for accounts inside the allowed
// organizational email domain.
type AuthService struct {
	users         repositories.IUserRepository
	tokens        *auth.TokenManager
	allowedDomain string
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager, allowedDomain string) IAuthService {
	return &AuthService{users: users, tokens: tokens, allowedDomain: allowedDomain}
}

func (s *AuthService) Register(email, displayName, password string) (Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// 1. Organizational-domain precondition, then structural rules.
	// Checked before any expensive cryptographic operation.
	if err := auth.CheckDomain(email, s.allowedDomain); err != nil {
		return "", err
	}
	req := auth.RegisterRequest{Email: email, DisplayName: displayName, Password: password}
	if err := auth.ValidateRegister(req); err != nil {
		if goerrors.Is(err, errors.ErrInvalidPassword) {
			return "", err
		}
		// Structural failures (email shape, display name bounds) are the
		// client's malformed input, not a password problem.
		return "", fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}

	// 2. Hash the password with Argon2id. Done here so the repository never
	// sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the account. Propagates ErrUserAlreadyExists on collision.
	if _, err := s.users.CreateUser(email, displayName, hashedPassword); err != nil {
		return "", err
	}

	// 4. Issue the initial session token.
	token, err := s.tokens.Generate(domain.Identity{Email: email, DisplayName: displayName})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := auth.CheckDomain(email, s.allowedDomain); err != nil {
		return "", err
	}

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(domain.Identity{Email: user.Email, DisplayName: user.DisplayName})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
