package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrLoginInProgress = errors.New("login already in progress")
)

// SessionContext holds the signed-in user of one client. It is created once
// and passed explicitly to whatever needs the current user or its token.
type SessionContext struct {
	auth domain.Authenticator

	mu      sync.RWMutex
	user    *domain.User
	loading bool
}

func NewSessionContext(auth domain.Authenticator) *SessionContext {
	return &SessionContext{auth: auth}
}

// User returns the signed-in user, if any.
func (s *SessionContext) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// Loading reports whether a login is in progress.
func (s *SessionContext) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Token returns the bearer token of the signed-in user or "".
func (s *SessionContext) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Token
}

// Login signs in with email, replacing any previous user on success.
func (s *SessionContext) Login(ctx context.Context, email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrLoginInProgress
	}
	s.loading = true
	s.mu.Unlock()

	user, err := s.auth.Login(ctx, addr.Address)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.user = &user

	log.WithCtx(log.ContextWithUser(ctx, user.ID)).Info("🔑 Signed in")
	return nil
}

// Logout forgets the signed-in user.
func (s *SessionContext) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}
