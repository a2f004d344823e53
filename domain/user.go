// Package domain contains core concepts of the support desk.
// This file defines identities, roles and sessions.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"
	"strings"
	"support-flow/errors"
	"time"
)

// KeySeparator splits the segments of store keys. IDs cannot contain it,
// otherwise the key prefix of "a" would also match the keys of "a:b".
const KeySeparator = ":"

type UserID string

func (u UserID) Validate() error {
	if u == "" {
		return fmt.Errorf("%w: id is required", errors.ErrValidation)
	}
	if strings.Contains(string(u), KeySeparator) {
		return fmt.Errorf("%w: id %q contains %q", errors.ErrValidation, u, KeySeparator)
	}
	return nil
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Session is the authenticated identity of one client process.
type Session struct {
	UserID    UserID
	Handle    string
	Role      Role
	Token     string
	ExpiresAt time.Time
}

func (s Session) IsAgent() bool {
	return s.Role == RoleAgent
}

// Desk identifies the single support agent of the system.
// The agent identity is a fixed, well-known sentinel and never an ordinary user record.
type Desk struct {
	AgentID     UserID
	AgentHandle string
}

func NewDesk(agentID, agentHandle string) Desk {
	return Desk{AgentID: UserID(agentID), AgentHandle: agentHandle}
}

func (d Desk) IsAgent(id UserID) bool {
	return id == d.AgentID
}

// RoleFor maps an authenticated handle to its role.
// Only the configured sentinel handle is the agent.
func (d Desk) RoleFor(handle string) Role {
	if handle == d.AgentHandle {
		return RoleAgent
	}
	return RoleCustomer
}

// IdentityFor returns the identity a session acts as.
// Every agent session acts as the sentinel identity whatever its account ID.
func (d Desk) IdentityFor(accountID UserID, handle string) UserID {
	if d.RoleFor(handle) == RoleAgent {
		return d.AgentID
	}
	return accountID
}
