package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
	"github.com/jwalitptl/ed-intake/internal/session"
	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	"github.com/jwalitptl/ed-intake/pkg/validator"
)

type Remote interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) (*gateway.Response, error)
}

// Service signs operators in and out and keeps their profile cached on the
// session.
type Service struct {
	remote   Remote
	session  *session.Session
	validate validator.Validator
	logger   *logger.Logger
}

func NewService(remote Remote, sess *session.Session, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		remote:   remote,
		session:  sess,
		validate: validator.New(),
		logger:   log,
	}
}

func (s *Service) Session() *session.Session {
	return s.session
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.Profile, error) {
	req := model.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	var auth model.AuthResponse
	if _, err := s.remote.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      req,
		Anonymous: true,
	}, &auth); err != nil {
		return nil, err
	}

	if err := s.session.Begin(ctx, auth); err != nil {
		return nil, err
	}
	s.logger.Info("signed in", "email", auth.Email, "role", string(auth.Role))

	return s.FetchProfile(ctx)
}

// Restore picks up a persisted session at startup. It reports false when
// there is nothing to restore or the remote service rejected the token.
func (s *Service) Restore(ctx context.Context) (*model.Profile, bool, error) {
	if err := s.session.Load(ctx); err != nil {
		return nil, false, err
	}
	if !s.session.Authenticated() {
		return nil, false, nil
	}

	profile, err := s.FetchProfile(ctx)
	switch {
	case err == nil:
		return profile, true, nil
	case errors.IsAuthExpired(err):
		return nil, false, nil
	case errors.IsRemote(err):
		if endErr := s.session.End(ctx); endErr != nil {
			s.logger.Error(endErr, "failed to end rejected session")
		}
		return nil, false, err
	default:
		return nil, false, err
	}
}

// FetchProfile reloads the operator profile from the remote service.
func (s *Service) FetchProfile(ctx context.Context) (*model.Profile, error) {
	var profile model.Profile
	if _, err := s.remote.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/auth/perfil"}, &profile); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	s.session.SetProfile(&profile)
	return s.session.Profile(), nil
}

// OperatorCode returns the signed-in operator's identity code, fetching the
// profile when it is not cached. A profile without a code yields "".
func (s *Service) OperatorCode(ctx context.Context) (string, error) {
	if p := s.session.Profile(); p != nil && p.Code != "" {
		return p.Code, nil
	}
	p, err := s.FetchProfile(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(p.Code), nil
}

func (s *Service) Logout(ctx context.Context) error {
	return s.session.End(ctx)
}
