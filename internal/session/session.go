// Package session signs users in and out. A Session is an explicit value
// handed to callers; nothing in the engine reads an ambient current user.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/audit"
	"amalnama/internal/auth"
	"amalnama/internal/model"
)

var logger = loggo.GetLogger("amalnama.session")

// Authenticator checks credentials and resolves users.
type Authenticator interface {
	Authenticate(ctx context.Context, id, password string) (model.User, error)
	Get(ctx context.Context, id string) (model.User, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, actor model.User, action, details string) (model.AuditEntry, error)
}

// Session is a signed-in user.
type Session struct {
	User      model.User `json:"user"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Role returns the session user's role.
func (s *Session) Role() model.Role { return s.User.Role }

// Manager issues and resumes sessions.
type Manager struct {
	users  Authenticator
	audit  Auditor
	signer auth.Signer
}

// NewManager creates a session manager.
func NewManager(users Authenticator, audit Auditor, signer auth.Signer) *Manager {
	return &Manager{users: users, audit: audit, signer: signer}
}

// Login authenticates and issues a token pair.
func (m *Manager) Login(ctx context.Context, id, password string) (*Session, auth.TokenPair, error) {
	u, err := m.users.Authenticate(ctx, id, password)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	pair, err := m.signer.Issue(u.ID, string(u.Role))
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	m.record(ctx, u, audit.UserLogin, fmt.Sprintf("%s logged in", u.Role))
	return &Session{User: u.Public(), ExpiresAt: pair.AccessExp}, pair, nil
}

// Logout audits the end of s. Tokens are not revoked and expire on their own.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.NotValidf("nil session")
	}
	m.record(ctx, s.User, audit.UserLogout, fmt.Sprintf("%s logged out", s.User.Role))
	return nil
}

// Resume rebuilds the session described by verified claims.
func (m *Manager) Resume(ctx context.Context, claims auth.Claims) (*Session, error) {
	u, err := m.users.Get(ctx, claims.Subject)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Unauthorizedf("user %s no longer exists", claims.Subject)
	}
	if err != nil {
		return nil, err
	}
	if string(u.Role) != claims.Role {
		return nil, errors.Unauthorizedf("role of %s changed", u.ID)
	}
	s := &Session{User: u.Public()}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Refresh exchanges a refresh token for a new pair.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Session, auth.TokenPair, error) {
	claims, err := m.signer.Parse(refreshToken)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if claims.Kind != auth.KindRefresh {
		return nil, auth.TokenPair{}, errors.Unauthorizedf("not a refresh token")
	}
	s, err := m.Resume(ctx, claims)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	pair, err := m.signer.Issue(s.User.ID, string(s.User.Role))
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	s.ExpiresAt = pair.AccessExp
	return s, pair, nil
}

func (m *Manager) record(ctx context.Context, actor model.User, action, details string) {
	if m.audit == nil {
		return
	}
	if _, err := m.audit.Record(ctx, actor, action, details); err != nil {
		logger.Warningf("audit %s for %s: %v", action, actor.ID, err)
	}
}
