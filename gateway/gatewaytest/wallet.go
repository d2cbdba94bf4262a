// Package gatewaytest provides a scripted wallet capability for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/vitwit/walletsession/types"
)

// Handler answers one wallet method
type Handler func(ctx context.Context, params []any) (any, error)

// Wallet is an in-memory capability. Methods without a handler fail with code
// 4200.
type Wallet struct {
	WalletName string

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []types.RequestArguments

	nextID    types.ListenerID
	listeners map[types.EventKind]map[types.ListenerID]types.Listener
}

func NewWallet(name string) *Wallet {
	return &Wallet{
		WalletName: name,
		handlers:   map[string]Handler{},
		listeners:  map[types.EventKind]map[types.ListenerID]types.Listener{},
	}
}

// Handle installs h for method, replacing any previous handler
func (w *Wallet) Handle(method string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[method] = h
}

// Return makes method always answer result
func (w *Wallet) Return(method string, result any) {
	w.Handle(method, func(context.Context, []any) (any, error) {
		return result, nil
	})
}

// Fail makes method always fail with err
func (w *Wallet) Fail(method string, err error) {
	w.Handle(method, func(context.Context, []any) (any, error) {
		return nil, err
	})
}

func (w *Wallet) Name() string {
	return w.WalletName
}

func (w *Wallet) Request(ctx context.Context, args types.RequestArguments) (json.RawMessage, error) {
	w.mu.Lock()
	w.calls = append(w.calls, args)
	h, ok := w.handlers[args.Method]
	w.mu.Unlock()

	if !ok {
		return nil, &types.ProviderError{Code: types.CodeUnsupportedMethod, Message: "unsupported method " + args.Method}
	}

	result, err := h(ctx, args.Params)
	if err != nil {
		return nil, err
	}
	if raw, ok := result.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(result)
}

func (w *Wallet) On(kind types.EventKind, listener types.Listener) types.ListenerID {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextID++
	if w.listeners[kind] == nil {
		w.listeners[kind] = map[types.ListenerID]types.Listener{}
	}
	w.listeners[kind][w.nextID] = listener
	return w.nextID
}

func (w *Wallet) RemoveListener(kind types.EventKind, id types.ListenerID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.listeners[kind], id)
}

// Emit delivers ev to the current listeners of ev.Kind in registration order
func (w *Wallet) Emit(ev types.Event) {
	w.mu.Lock()
	ids := make([]types.ListenerID, 0, len(w.listeners[ev.Kind]))
	for id := range w.listeners[ev.Kind] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]types.Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, w.listeners[ev.Kind][id])
	}
	w.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// ListenerCount returns the registrations for kind
func (w *Wallet) ListenerCount(kind types.EventKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners[kind])
}

// Calls returns how many times method was requested
func (w *Wallet) Calls(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, c := range w.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastParams returns the params of the most recent call to method
func (w *Wallet) LastParams(method string) []any {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.calls) - 1; i >= 0; i-- {
		if w.calls[i].Method == method {
			return w.calls[i].Params
		}
	}
	return nil
}
