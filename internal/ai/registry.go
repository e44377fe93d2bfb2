package ai

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Settings configures one provider instance.
type Settings struct {
	BaseURL  string
	APIToken string
	Model    string
	Timeout  time.Duration
}

type ProviderFactory func(ctx context.Context, s Settings) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry knows every provider shipped with the server.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("replicate", func(ctx context.Context, s Settings) (Provider, error) {
		return NewReplicateProvider(s.BaseURL, s.APIToken, s.Model, s.Timeout), nil
	})
	r.Register("openrouter", func(ctx context.Context, s Settings) (Provider, error) {
		return NewOpenRouterProvider(s.BaseURL, s.APIToken, s.Model, s.Timeout), nil
	})
	return r
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, s Settings) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, s)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
