package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 32

type subscriber struct {
	ch chan Event
}

// Broker fans events out to in-process subscribers of one project.
type Broker struct {
	log *zap.Logger

	mu     sync.Mutex
	subs   map[uint64]map[*subscriber]struct{}
	closed bool
}

func NewBroker(log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{log: log, subs: make(map[uint64]map[*subscriber]struct{})}
}

// Publish never blocks. A subscriber whose buffer is full misses the event.
func (b *Broker) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[e.ProjectID] {
		select {
		case s.ch <- e:
		default:
			b.log.Debug("subscriber lagging, event dropped",
				zap.String("type", string(e.Type)),
				zap.Uint64("project_id", e.ProjectID),
			)
		}
	}
	return nil
}

// Subscribe returns the project's event stream and a cancel func that must
// be called to release it. The channel is closed on cancel or Close.
func (b *Broker) Subscribe(projectID uint64) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[*subscriber]struct{})
	}
	b.subs[projectID][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			set, ok := b.subs[projectID]
			if !ok {
				return
			}
			if _, ok := set[s]; !ok {
				return
			}
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, projectID)
			}
			close(s.ch)
		})
	}
	return s.ch, cancel
}

func (b *Broker) Subscribers(projectID uint64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[projectID])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for s := range set {
			close(s.ch)
		}
	}
	b.subs = make(map[uint64]map[*subscriber]struct{})
}
