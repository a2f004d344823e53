package services

import (
	"log/slog"
	"support-flow/domain"
	"support-flow/errors"
	"sync"
)

// SessionListener receives the current session, nil when signed out.
type SessionListener func(session *domain.Session)

// IdentityProvider holds the session of one client process.
type IdentityProvider struct {
	mu        sync.Mutex
	log       *slog.Logger
	auth      IAuthService
	session   *domain.Session
	listeners map[int]SessionListener
	nextID    int
}

func NewIdentityProvider(log *slog.Logger, auth IAuthService) *IdentityProvider {
	return &IdentityProvider{log: log, auth: auth, listeners: make(map[int]SessionListener)}
}

func (p *IdentityProvider) SignIn(credential Credential) (domain.Session, error) {
	session, err := p.auth.Login(credential)
	if err != nil {
		p.log.Debug("Sign in rejected", "handle", credential.Email, "error", err)
		return domain.Session{}, err
	}
	p.set(&session)
	return session, nil
}

func (p *IdentityProvider) SignUp(credential Credential) (domain.Session, error) {
	session, err := p.auth.Register(credential)
	if err != nil {
		p.log.Debug("Sign up rejected", "handle", credential.Email, "error", err)
		return domain.Session{}, err
	}
	p.set(&session)
	return session, nil
}

// Restore resumes a session from a token kept by the caller.
func (p *IdentityProvider) Restore(token string) (domain.Session, error) {
	session, err := p.auth.Verify(token)
	if err != nil {
		return domain.Session{}, err
	}
	p.set(&session)
	return session, nil
}

// SignOut drops the session. Signing out twice notifies only once.
func (p *IdentityProvider) SignOut() {
	p.mu.Lock()
	wasSignedIn := p.session != nil
	p.mu.Unlock()
	if wasSignedIn {
		p.set(nil)
	}
}

func (p *IdentityProvider) Current() (domain.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return domain.Session{}, errors.ErrNoSession
	}
	return *p.session, nil
}

// OnSessionChange calls listener now with the current session and then on
// every change, until the returned cancel is called.
func (p *IdentityProvider) OnSessionChange(listener SessionListener) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	current := copySession(p.session)
	p.mu.Unlock()

	listener(current)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *IdentityProvider) set(session *domain.Session) {
	p.mu.Lock()
	p.session = copySession(session)
	listeners := make([]SessionListener, 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if l, ok := p.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	p.mu.Unlock()

	if session != nil {
		p.log.Info("Signed in", "user_id", session.UserID, "role", session.Role)
	} else {
		p.log.Info("Signed out")
	}
	for _, l := range listeners {
		l(copySession(session))
	}
}

func copySession(session *domain.Session) *domain.Session {
	if session == nil {
		return nil
	}
	c := *session
	return &c
}
