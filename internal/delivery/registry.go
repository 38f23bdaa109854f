// Package delivery routes sealed-case notices to their destinations.
package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/user/custodian/internal/gateway"
)

// Handler delivers a notice to target, e.g. "telegram:12345".
type Handler func(ctx context.Context, target string, n Notice) error

// Registry routes notices to the appropriate handler based on target
// prefix (e.g. "telegram:", "file:"). The longest matching prefix wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Prefixes returns the registered prefixes in sorted order.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Deliver finds the handler matching the target prefix and calls it.
// A target with no handler fails permanently.
func (r *Registry) Deliver(ctx context.Context, target string, n Notice) error {
	r.mu.RLock()
	var (
		best    string
		handler Handler
	)
	for prefix, h := range r.handlers {
		if strings.HasPrefix(target, prefix) && len(prefix) >= len(best) {
			best, handler = prefix, h
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return gateway.Permanent(fmt.Errorf("no delivery handler for target: %s", target))
	}
	return handler(ctx, target, n)
}
