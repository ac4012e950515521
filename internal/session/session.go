package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/pkg/logger"
)

// Reason tells teardown listeners why the session ended.
type Reason string

const (
	ReasonLogout  Reason = "logout"
	ReasonExpired Reason = "expired"
)

// Claims are read from the token without verifying its signature. The
// remote service stays the authority; these only drive local decisions.
type Claims struct {
	Subject   string
	Email     string
	Role      model.Role
	ExpiresAt time.Time
}

// Session is the operator's authentication context. It is created once per
// process, initialized with Load and torn down with End or Expire.
type Session struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	claims    Claims
	profile   *model.Profile
	listeners []func(Reason)
}

func New(store Store, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{store: store, logger: log, now: time.Now}
}

// Load restores a persisted token. An expired token is discarded.
func (s *Session) Load(ctx context.Context) error {
	token, err := s.store.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session token: %w", err)
	}

	claims := parseClaims(token)
	if !claims.ExpiresAt.IsZero() && !s.now().Before(claims.ExpiresAt) {
		s.logger.Info("discarding expired session token", "email", claims.Email)
		if err := s.store.Delete(ctx, KeyToken); err != nil {
			return fmt.Errorf("discard expired token: %w", err)
		}
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Begin persists a freshly issued token.
func (s *Session) Begin(ctx context.Context, auth model.AuthResponse) error {
	if auth.Token == "" {
		return errors.New("login response carried no token")
	}
	if err := s.store.Set(ctx, KeyToken, auth.Token); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}

	claims := parseClaims(auth.Token)
	if claims.Email == "" {
		claims.Email = auth.Email
	}
	if auth.Role != "" {
		claims.Role = auth.Role
	}
	if claims.ExpiresAt.IsZero() && auth.ExpiresIn > 0 {
		claims.ExpiresAt = s.now().Add(time.Duration(auth.ExpiresIn) * time.Millisecond)
	}

	s.mu.Lock()
	s.token = auth.Token
	s.claims = claims
	s.profile = nil
	s.mu.Unlock()
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) Claims() Claims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims
}

// Role prefers the fetched profile over token claims.
func (s *Session) Role() model.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile != nil && s.profile.Role != "" {
		return s.profile.Role
	}
	return s.claims.Role
}

func (s *Session) SetProfile(p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.profile = nil
		return
	}
	cp := *p
	s.profile = &cp
}

// Profile returns a copy of the cached profile, or nil.
func (s *Session) Profile() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	cp := *s.profile
	return &cp
}

// OnTeardown registers fn to run after End or Expire clears the session.
func (s *Session) OnTeardown(fn func(Reason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// End is an explicit logout.
func (s *Session) End(ctx context.Context) error {
	return s.teardown(ctx, ReasonLogout)
}

// Expire handles a rejected token.
func (s *Session) Expire(ctx context.Context) error {
	return s.teardown(ctx, ReasonExpired)
}

func (s *Session) teardown(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	wasActive := s.token != ""
	s.token = ""
	s.claims = Claims{}
	s.profile = nil
	listeners := append([]func(Reason){}, s.listeners...)
	s.mu.Unlock()

	err := s.store.Delete(ctx, KeyToken)
	if err != nil {
		err = fmt.Errorf("clear session token: %w", err)
	}

	if wasActive {
		s.logger.Info("session ended", "reason", string(reason))
		for _, fn := range listeners {
			fn(reason)
		}
	}
	return err
}

// ActiveAdmission returns the persisted claimed-admission pointer.
func (s *Session) ActiveAdmission(ctx context.Context) (string, bool, error) {
	id, err := s.store.Get(ctx, KeyActiveAdmission)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read active admission: %w", err)
	}
	return id, id != "", nil
}

func (s *Session) SetActiveAdmission(ctx context.Context, id string) error {
	if err := s.store.Set(ctx, KeyActiveAdmission, id); err != nil {
		return fmt.Errorf("persist active admission: %w", err)
	}
	return nil
}

func (s *Session) ClearActiveAdmission(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyActiveAdmission); err != nil {
		return fmt.Errorf("clear active admission: %w", err)
	}
	return nil
}

func parseClaims(token string) Claims {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}
	}

	var c Claims
	c.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["autoridad"].(string); ok {
		c.Role = model.Role(v)
	}
	return c
}
