// Package reconciler routes provider events into the session while it is
// connected. It is the only owner of the provider listener registrations.
package reconciler

import (
	"context"
	"sync"

	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/types"
)

// Subscriber registers provider event handlers
type Subscriber interface {
	Subscribe(kind types.EventKind, handler func(types.Event)) (unsubscribe func())
}

// Handler receives routed provider events
type Handler interface {
	HandleAccountsChanged(ctx context.Context, accounts []string)
	HandleChainChanged(ctx context.Context, chainID string)
	HandleDisconnect(ctx context.Context, err error)
}

// Reconciler subscribes to accountsChanged, chainChanged and disconnect while
// active and removes all three registrations when deactivated.
type Reconciler struct {
	source Subscriber
	logger logger.Logger

	mu     sync.Mutex
	active bool
	unsubs []func()
}

func New(source Subscriber, l logger.Logger) *Reconciler {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &Reconciler{source: source, logger: l}
}

// Activate subscribes and routes events to h. Calling it while already active
// does nothing.
func (r *Reconciler) Activate(ctx context.Context, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return
	}

	r.unsubs = []func(){
		r.source.Subscribe(types.EventAccountsChanged, func(ev types.Event) {
			h.HandleAccountsChanged(ctx, ev.Accounts)
		}),
		r.source.Subscribe(types.EventChainChanged, func(ev types.Event) {
			h.HandleChainChanged(ctx, ev.ChainID)
		}),
		r.source.Subscribe(types.EventDisconnect, func(ev types.Event) {
			h.HandleDisconnect(ctx, ev.Err)
		}),
	}
	r.active = true

	r.logger.Debug("provider events subscribed", nil)
}

// Deactivate removes every registration made by Activate. Safe to call when
// not active.
func (r *Reconciler) Deactivate() {
	r.mu.Lock()
	unsubs := r.unsubs
	wasActive := r.active
	r.unsubs = nil
	r.active = false
	r.mu.Unlock()

	if !wasActive {
		return
	}

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}

	r.logger.Debug("provider events unsubscribed", nil)
}

// Active reports whether provider events are currently routed
func (r *Reconciler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Close tears the reconciler down
func (r *Reconciler) Close() {
	r.Deactivate()
}
