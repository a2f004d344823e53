//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	stderrors "errors"
	"fmt"
	"support-flow/auth"
	"support-flow/domain"
	"support-flow/errors"
	"support-flow/repositories"
	"time"
)

type IAuthService interface {
	Login(credential Credential) (domain.Session, error)
	Register(credential Credential) (domain.Session, error)
	Verify(token string) (domain.Session, error)
}

// Credential is what a person types to sign in.
type Credential struct {
	Email    string
	Password string
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
	desk           domain.Desk
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenIssuer, desk domain.Desk) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens, desk: desk}
}

func (s *AuthService) Register(credential Credential) (domain.Session, error) {
	valReq := auth.RegisterRequest{
		Email:    credential.Email,
		Password: credential.Password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id
	hashedPassword, err := auth.HashPassword(credential.Password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	userID, err := s.userRepository.CreateUser(credential.Email, hashedPassword)
	if err != nil {
		return domain.Session{}, fromStore(err) // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Open the first session
	return s.open(domain.UserID(userID), credential.Email)
}

func (s *AuthService) Login(credential Credential) (domain.Session, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: credential.Email, Password: credential.Password}); err != nil {
		return domain.Session{}, errors.ErrInvalidCredentials
	}

	// 1. Retrieve user by email from storage
	user, err := s.userRepository.GetUserByEmail(credential.Email)
	if stderrors.Is(err, errors.ErrNotFound) {
		// Generic error to prevent user enumeration attacks
		return domain.Session{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, fromStore(err)
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(credential.Password, user.PasswordHash)
	if err != nil || !match {
		return domain.Session{}, errors.ErrInvalidCredentials
	}

	return s.open(domain.UserID(user.ID), user.Email)
}

// Verify turns a token issued earlier back into its session.
func (s *AuthService) Verify(token string) (domain.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrNoSession, err)
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return domain.Session{
		UserID:    domain.UserID(claims.UserID),
		Handle:    claims.Handle,
		Role:      s.desk.RoleFor(claims.Handle),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// open derives the role from the handle and issues the JWT.
// The agent account acts as the sentinel identity.
func (s *AuthService) open(accountID domain.UserID, handle string) (domain.Session, error) {
	role := s.desk.RoleFor(handle)
	userID := s.desk.IdentityFor(accountID, handle)

	token, expiresAt, err := s.tokens.Issue(userID, handle, role)
	if err != nil {
		return domain.Session{}, errors.ErrTokenGeneration
	}
	return domain.Session{
		UserID:    userID,
		Handle:    handle,
		Role:      role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
