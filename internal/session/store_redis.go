package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/ed-intake/pkg/circuitbreaker"
	"github.com/jwalitptl/ed-intake/pkg/metrics"
)

type RedisConfig struct {
	URL       string
	Namespace string
	PoolSize  int
}

// RedisStore keeps session keys in Redis under a namespace, so several
// workstations can share one operator session.
type RedisStore struct {
	client    *redis.Client
	cb        *circuitbreaker.CircuitBreaker
	namespace string
	metrics   *metrics.Metrics
}

func NewRedisStore(ctx context.Context, cfg RedisConfig, m *metrics.Metrics) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, cfg.Namespace, m), nil
}

func newRedisStore(client *redis.Client, namespace string, m *metrics.Metrics) *RedisStore {
	if m == nil {
		m = metrics.Nop()
	}
	return &RedisStore{
		client: client,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "session-redis",
			MaxFailures: 3,
			Interval:    30 * time.Second,
			Timeout:     5 * time.Second,
		}),
		namespace: namespace,
		metrics:   m,
	}
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

func (s *RedisStore) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	s.metrics.SessionStoreOperations.WithLabelValues("redis", op, status).Inc()
	s.metrics.SessionStoreLatency.WithLabelValues("redis", op).Observe(time.Since(start).Seconds())
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var value string
	err := s.cb.Execute(func() error {
		v, err := s.client.Get(ctx, s.key(key)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		value = v
		return err
	})
	if err == nil && value == "" {
		err = ErrNotFound
	}
	s.observe("get", start, err)
	return value, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.cb.Execute(func() error {
		return s.client.Set(ctx, s.key(key), value, 0).Err()
	})
	s.observe("set", start, err)
	return err
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.cb.Execute(func() error {
		return s.client.Del(ctx, s.key(key)).Err()
	})
	s.observe("delete", start, err)
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
