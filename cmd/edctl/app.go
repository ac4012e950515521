package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/ed-intake/internal/config"
	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/service/admission"
	"github.com/jwalitptl/ed-intake/internal/service/attention"
	"github.com/jwalitptl/ed-intake/internal/service/auth"
	"github.com/jwalitptl/ed-intake/internal/service/insurance"
	"github.com/jwalitptl/ed-intake/internal/service/patient"
	"github.com/jwalitptl/ed-intake/internal/service/views"
	"github.com/jwalitptl/ed-intake/internal/session"
	"github.com/jwalitptl/ed-intake/pkg/logger"
	"github.com/jwalitptl/ed-intake/pkg/messaging"
	redisbroker "github.com/jwalitptl/ed-intake/pkg/messaging/redis"
	"github.com/jwalitptl/ed-intake/pkg/metrics"
	"github.com/jwalitptl/ed-intake/pkg/security"
)

// app holds the client components for one edctl invocation.
type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	registry   *prometheus.Registry
	store      session.Store
	session    *session.Session
	gateway    *gateway.Client
	auth       *auth.Service
	catalog    *insurance.Catalog
	resolver   *patient.Resolver
	dispatcher *attention.Dispatcher
	views      *views.Service
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.Kitchen,
		Output:     os.Stderr,
		JSON:       cfg.Log.Format == "json",
	})

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "ed_intake", "client")

	a := &app{cfg: cfg, logger: lg, registry: reg}

	store, err := a.openStore(ctx, m)
	if err != nil {
		return nil, err
	}
	a.store = store

	a.session = session.New(store, lg.With("component", "session"))
	a.gateway = gateway.New(cfg.API.BaseURL, a.session,
		gateway.WithTimeout(cfg.API.Timeout),
		gateway.WithLogger(lg.With("component", "gateway")),
		gateway.WithMetrics(m),
	)
	a.auth = auth.NewService(a.gateway, a.session, lg.With("component", "auth"))
	a.catalog = insurance.NewCatalog(a.gateway, cfg.Admission.ProviderCacheTTL)
	a.resolver = patient.NewResolver(a.gateway, cfg.Admission.MinIdentityLength)
	a.dispatcher = attention.NewDispatcher(
		attention.NewHTTPRemote(a.gateway),
		a.session,
		lg.With("component", "dispatcher"),
		m,
	)
	a.views = views.NewService(a.gateway)

	// Session-scoped caches and the in-memory encounter go with the token.
	// The persisted pointer stays for recovery after the next login.
	a.session.OnTeardown(func(session.Reason) {
		a.dispatcher.Reset()
		a.catalog.Invalidate()
	})

	return a, nil
}

func (a *app) openStore(ctx context.Context, m *metrics.Metrics) (session.Store, error) {
	switch a.cfg.Session.Backend {
	case config.SessionBackendRedis:
		rs, err := session.NewRedisStore(ctx, session.RedisConfig{
			URL:       a.cfg.Session.RedisURL,
			Namespace: a.cfg.Session.Namespace,
		}, m)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	case config.SessionBackendMemory:
		return session.NewMemoryStore(), nil
	default:
		var opts []session.FileOption
		if a.cfg.Session.EncryptionKey != "" {
			key, err := security.ParseKey(a.cfg.Session.EncryptionKey)
			if err != nil {
				return nil, err
			}
			enc, err := security.NewAESEncryptor(key)
			if err != nil {
				return nil, err
			}
			opts = append(opts, session.WithEncryptor(enc))
		}
		return session.NewFileStore(a.cfg.Session.File, opts...)
	}
}

// restore loads the persisted session and, when the token is still good,
// the active encounter. It returns errNotSignedIn when there is no usable
// session.
func (a *app) restore(ctx context.Context) error {
	_, ok, err := a.auth.Restore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotSignedIn
	}
	return nil
}

// workflow builds a fresh admission form for the signed-in operator.
func (a *app) workflow() *admission.Workflow {
	return admission.NewWorkflow(a.gateway, a.resolver, a.catalog, a.auth, a.logger.With("component", "admission"))
}

// queueEvents subscribes to the backend's queue events. It returns a nil
// channel when no event source is configured; a nil channel never fires.
func (a *app) queueEvents(ctx context.Context) (<-chan []byte, error) {
	if a.cfg.Events.RedisURL == "" {
		return nil, nil
	}
	broker, err := redisbroker.NewRedisBroker(ctx, redisbroker.Config{URL: a.cfg.Events.RedisURL}, a.logger.With("component", "events"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, broker.Close)
	return broker.Subscribe(ctx, a.cfg.Events.Channel)
}

// describeEvent renders a queue event line, or "" when data is not one.
func describeEvent(data []byte) string {
	msg, err := messaging.Decode(data)
	if err != nil {
		return ""
	}
	var ev struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.ID == "" {
		return fmt.Sprintf("[%s]", msg.Type)
	}
	return fmt.Sprintf("[%s %s]", msg.Type, ev.ID)
}

// run executes fn while serving metrics on the configured address, if any.
func (a *app) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.cfg.Metrics.Addr == "" {
		return fn(ctx)
	}

	srv := &http.Server{
		Addr:    a.cfg.Metrics.Addr,
		Handler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return fn(gctx)
	})
	return g.Wait()
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error(err, "failed to close resource")
		}
	}
}
