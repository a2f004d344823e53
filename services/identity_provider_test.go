package services_test

import (
	"log/slog"
	"support-flow/domain"
	"support-flow/errors"
	"support-flow/mocks"
	"support-flow/services"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestIdentityProvider_OnSessionChange(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	authMock := mocks.NewMockIAuthService(ctrl)
	provider := services.NewIdentityProvider(logs.GetLoggerFromLevel(slog.LevelDebug), authMock)
	credential := services.Credential{Email: "jane@example.com", Password: "Secret123456!"}
	session := domain.Session{UserID: "cust-42", Handle: credential.Email, Role: domain.RoleCustomer, Token: "token"}

	var seen []*domain.Session
	cancel := provider.OnSessionChange(func(s *domain.Session) { seen = append(seen, s) })

	// Then the listener is called at once with no session
	req.Len(seen, 1)
	req.Nil(seen[0])

	authMock.EXPECT().Login(credential).Return(session, nil).Times(1)
	got, err := provider.SignIn(credential)
	req.NoError(err)
	req.Equal(session, got)

	current, err := provider.Current()
	req.NoError(err)
	req.Equal(session, current)

	provider.SignOut()
	provider.SignOut()

	req.Len(seen, 3)
	req.Equal(session, *seen[1])
	req.Nil(seen[2])

	_, err = provider.Current()
	req.ErrorIs(err, errors.ErrNoSession)

	// After cancel the listener is left alone
	cancel()
	authMock.EXPECT().Register(credential).Return(session, nil).Times(1)
	_, err = provider.SignUp(credential)
	req.NoError(err)
	req.Len(seen, 3)
}

func TestIdentityProvider_Failed_Sign_In_Keeps_State(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	authMock := mocks.NewMockIAuthService(ctrl)
	provider := services.NewIdentityProvider(logs.GetLoggerFromLevel(slog.LevelDebug), authMock)

	calls := 0
	provider.OnSessionChange(func(*domain.Session) { calls++ })

	authMock.EXPECT().Login(gomock.Any()).Return(domain.Session{}, errors.ErrInvalidCredentials).Times(1)
	_, err := provider.SignIn(services.Credential{Email: "jane@example.com", Password: "wrong"})
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	req.Equal(1, calls)

	authMock.EXPECT().Verify("token").Return(domain.Session{UserID: agentID, Role: domain.RoleAgent}, nil).Times(1)
	session, err := provider.Restore("token")
	req.NoError(err)
	req.True(session.IsAgent())
	req.Equal(2, calls)
}
