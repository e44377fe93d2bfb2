package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"go.uber.org/zap"
)

// Needs a live server: REDIS_TEST_ADDR=127.0.0.1:6379 go test ./...
func TestRelay_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	s, err := New(addr, "", 0, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	s.channel = "ide:events:test"

	broker := events.NewBroker(nil)
	defer broker.Close()
	ch, cancel := broker.Subscribe(42)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		sub.Relay(ctx, broker)
		close(done)
	}()

	want := events.Event{Type: events.FileUpdated, ProjectID: 42, FileID: 1, At: time.Now().UTC().Truncate(time.Second)}
	require.Eventually(t, func() bool {
		_ = s.Publish(context.Background(), want)
		select {
		case got := <-ch:
			assert.Equal(t, want, got)
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	stop()
	<-done
}

func TestNew_UnreachableServer(t *testing.T) {
	_, err := New("127.0.0.1:1", "", 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestSubscribe_UnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	s := NewWithClient(rdb, "", nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sub, err := s.Subscribe(ctx)
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.Contains(t, err.Error(), "redis subscribe "+DefaultChannel)
}
