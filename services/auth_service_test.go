package services_test

import (
	"support-flow/auth"
	"support-flow/domain"
	"support-flow/errors"
	"support-flow/mocks"
	"support-flow/repositories"
	"support-flow/services"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newAuthService(repo repositories.IUserRepository) (services.IAuthService, *auth.TokenIssuer) {
	tokens := auth.NewTokenIssuer("test-secret", 24*time.Hour)
	return services.NewAuthService(repo, tokens, domain.NewDesk(string(agentID), agentHandle)), tokens
}

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc, _ := newAuthService(mockRepo)

	t.Run("should register a customer when input is valid", func(t *testing.T) {
		req := require.New(t)
		email := "test@example.com"
		password := "ComplexPass123!"

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(email, gomock.Not(password)).
			Return("user-uuid", nil).
			Times(1)

		session, err := svc.Register(services.Credential{Email: email, Password: password})

		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal(domain.UserID("user-uuid"), session.UserID)
		req.Equal(domain.RoleCustomer, session.Role)
	})

	t.Run("should register the agent under the sentinel identity", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser(agentHandle, gomock.Any()).
			Return("account-uuid", nil).
			Times(1)

		session, err := svc.Register(services.Credential{Email: agentHandle, Password: "ComplexPass123!"})

		req.NoError(err)
		req.Equal(agentID, session.UserID)
		req.True(session.IsAgent())
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		session, err := svc.Register(services.Credential{Email: "test@example.com", Password: "simple"})

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(session.Token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)
		email := "duplicate@example.com"

		mockRepo.EXPECT().
			CreateUser(email, gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register(services.Credential{Email: email, Password: "ComplexPass123!"})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc, tokens := newAuthService(mockRepo)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := repositories.User{
			ID:           "uuid-123",
			Email:        email,
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		session, err := svc.Login(services.Credential{Email: email, Password: password})

		req.NoError(err)
		req.NotEmpty(session.Token)

		claims, err := tokens.Validate(session.Token)
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
		req.Equal(string(domain.RoleCustomer), claims.Role)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("CorrectPassword123!")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(repositories.User{Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login(services.Credential{Email: email, Password: "WrongPassword123!"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(repositories.User{}, errors.ErrNotFound).
			Times(1)

		_, err := svc.Login(services.Credential{Email: "unknown@example.com", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should reject malformed email before reading storage", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().GetUserByEmail(gomock.Any()).Times(0)

		_, err := svc.Login(services.Credential{Email: "not-an-email", Password: "anyPassword"})

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func TestAuthService_Verify(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, tokens := newAuthService(mocks.NewMockIUserRepository(ctrl))

	token, _, err := tokens.Issue(agentID, agentHandle, domain.RoleAgent)
	req.NoError(err)

	session, err := svc.Verify(token)
	req.NoError(err)
	req.Equal(agentID, session.UserID)
	req.True(session.IsAgent())
	req.False(session.ExpiresAt.IsZero())

	_, err = svc.Verify("garbage")
	req.ErrorIs(err, errors.ErrNoSession)
}
