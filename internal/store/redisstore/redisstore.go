// Package redisstore shares project change events between server instances
// over Redis pub/sub.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/codegen-ide/internal/events"
	"go.uber.org/zap"
)

const DefaultChannel = "ide:events"

type Store struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

var _ events.Publisher = (*Store)(nil)

func New(addr, password string, db int, log *zap.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewWithClient(rdb, DefaultChannel, log), nil
}

func NewWithClient(rdb *redis.Client, channel string, log *zap.Logger) *Store {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{rdb: rdb, channel: channel, log: log}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Publish(ctx context.Context, e events.Event) error {
	b, err := e.Marshal()
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, b).Err()
}

// Subscription is a confirmed subscription to the event channel.
type Subscription struct {
	ps      *redis.PubSub
	channel string
	log     *zap.Logger
}

// Subscribe returns once redis has confirmed the subscription.
func (s *Store) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := s.rdb.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}
	return &Subscription{ps: ps, channel: s.channel, log: s.log}, nil
}

// Relay forwards every event seen on the channel, including this
// instance's own, to dst until ctx is done. It closes the subscription.
func (sub *Subscription) Relay(ctx context.Context, dst events.Publisher) {
	defer sub.ps.Close()

	msgs := sub.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				sub.log.Warn("redis subscription closed", zap.String("channel", sub.channel))
				return
			}
			e, err := events.Unmarshal([]byte(m.Payload))
			if err != nil {
				sub.log.Warn("bad event on redis channel", zap.String("channel", sub.channel), zap.Error(err))
				continue
			}
			if err := dst.Publish(ctx, e); err != nil {
				sub.log.Warn("relay event failed", zap.Error(err))
			}
		}
	}
}
