package e2e

import (
	"context"
	"fmt"
	"path/filepath"
	"support-flow/client"
	"support-flow/clock"
	"support-flow/domain"
	"support-flow/internal"
	"support-flow/services"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

const password = "Correct-Horse-42"

// BaseDeskSuite runs a full desk, stores included, on the real clock.
type BaseDeskSuite struct {
	suite.Suite
	Config Config
	Desk   *internal.Desk

	dir     string
	db      *badger.DB
	writer  *bluge.Writer
	clients []*client.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseDeskSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseDeskSuite) SetupTest() {
	s.dir = s.T().TempDir()
	if s.Config.DataDir != "" {
		s.dir = filepath.Join(s.Config.DataDir, uuid.NewString())
	}
	s.open()
}

func (s *BaseDeskSuite) TearDownTest() {
	s.shutdown()
}

// Restart closes every client and the desk, then reopens the same stores.
func (s *BaseDeskSuite) Restart() {
	s.shutdown()
	s.open()
}

func (s *BaseDeskSuite) open() {
	config := internal.Config{
		LogLevel:          s.Config.LogLevel,
		BadgerFilepath:    filepath.Join(s.dir, "badger"),
		BlugeFilepath:     filepath.Join(s.dir, "bluge"),
		AgentHandle:       s.Config.AgentMail,
		AgentID:           s.Config.AgentID,
		TypingQuietPeriod: s.Config.TypingQuietPeriod,
		AuthSecret:        "e2e-secret",
		AuthTokenDuration: time.Hour,
		RestartInterval:   50 * time.Millisecond,
		RetryInitial:      10 * time.Millisecond,
		RetryMax:          200 * time.Millisecond,
		MetricInterval:    time.Minute,
	}
	var err error
	s.db, s.writer, err = internal.OpenStores(config)
	s.Require().NoError(err)
	s.Desk, err = internal.NewDesk(logs.GetLoggerFromString(config.LogLevel), config, s.db, s.writer, clock.Real())
	s.Require().NoError(err)
	s.Require().NoError(s.Desk.Reindex())
}

func (s *BaseDeskSuite) shutdown() {
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
	if s.Desk != nil {
		s.Desk.Close()
		s.Desk = nil
	}
	if s.writer != nil {
		_ = s.writer.Close()
		s.writer = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// Step prints a header for the step and runs it as a subtest.
func (s *BaseDeskSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
	s.Run(name, fn)
}

// SignUp registers the handle through its own identity provider.
func (s *BaseDeskSuite) SignUp(handle string) (*services.IdentityProvider, domain.Session) {
	identity := s.Desk.NewIdentityProvider()
	session, err := identity.SignUp(services.Credential{Email: handle, Password: password})
	s.Require().NoError(err, "sign up of "+handle)
	return identity, session
}

// Window starts a client for session and opens target.
func (s *BaseDeskSuite) Window(session domain.Session, target domain.UserID) *client.Client {
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	c, err := s.Desk.NewClient(ctx, session)
	s.Require().NoError(err)
	s.clients = append(s.clients, c)
	s.Require().NoError(c.Open(ctx, target))
	return c
}

func (s *BaseDeskSuite) Await(condition func() bool, msg string) {
	s.Require().Eventually(condition, s.Config.Timeout, 10*time.Millisecond, msg)
}
