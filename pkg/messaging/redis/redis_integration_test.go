//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jwalitptl/ed-intake/pkg/messaging"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	broker, err := NewRedisBroker(ctx, Config{URL: url}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Close() })

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := broker.Subscribe(subCtx, "ed-intake:cola")
	require.NoError(t, err)

	msg, err := messaging.NewMessage("ingreso.en_proceso", map[string]string{"id": "a-9"})
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, "ed-intake:cola", msg))

	select {
	case raw := <-ch:
		got, err := messaging.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "ingreso.en_proceso", got.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}
