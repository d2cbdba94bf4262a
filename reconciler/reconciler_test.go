package reconciler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitwit/walletsession/gateway"
	"github.com/vitwit/walletsession/gateway/gatewaytest"
	"github.com/vitwit/walletsession/types"
)

type recordingHandler struct {
	accounts    [][]string
	chains      []string
	disconnects []error
}

func (h *recordingHandler) HandleAccountsChanged(_ context.Context, accounts []string) {
	h.accounts = append(h.accounts, accounts)
}

func (h *recordingHandler) HandleChainChanged(_ context.Context, chainID string) {
	h.chains = append(h.chains, chainID)
}

func (h *recordingHandler) HandleDisconnect(_ context.Context, err error) {
	h.disconnects = append(h.disconnects, err)
}

var allKinds = []types.EventKind{types.EventAccountsChanged, types.EventChainChanged, types.EventDisconnect}

func listenerCounts(w *gatewaytest.Wallet) []int {
	counts := make([]int, 0, len(allKinds))
	for _, k := range allKinds {
		counts = append(counts, w.ListenerCount(k))
	}
	return counts
}

func TestActivateRoutesEvents(t *testing.T) {
	w := gatewaytest.NewWallet("metamask")
	r := New(gateway.New(w), nil)
	h := &recordingHandler{}

	r.Activate(context.Background(), h)
	assert.True(t, r.Active())
	assert.Equal(t, []int{1, 1, 1}, listenerCounts(w))

	w.Emit(types.Event{Kind: types.EventAccountsChanged, Accounts: []string{"0xAB"}})
	w.Emit(types.Event{Kind: types.EventChainChanged, ChainID: "0x89"})
	w.Emit(types.Event{Kind: types.EventDisconnect, Err: errors.New("gone")})

	assert.Equal(t, [][]string{{"0xab"}}, h.accounts)
	assert.Equal(t, []string{"0x89"}, h.chains)
	assert.Len(t, h.disconnects, 1)
}

func TestActivateIsIdempotent(t *testing.T) {
	w := gatewaytest.NewWallet("metamask")
	r := New(gateway.New(w), nil)
	h := &recordingHandler{}

	r.Activate(context.Background(), h)
	r.Activate(context.Background(), h)
	assert.Equal(t, []int{1, 1, 1}, listenerCounts(w))

	w.Emit(types.Event{Kind: types.EventChainChanged, ChainID: "0x1"})
	assert.Len(t, h.chains, 1)
}

func TestDeactivateRemovesAllListeners(t *testing.T) {
	w := gatewaytest.NewWallet("metamask")
	r := New(gateway.New(w), nil)
	h := &recordingHandler{}

	r.Activate(context.Background(), h)
	r.Deactivate()
	r.Deactivate()

	assert.False(t, r.Active())
	assert.Equal(t, []int{0, 0, 0}, listenerCounts(w))

	w.Emit(types.Event{Kind: types.EventChainChanged, ChainID: "0x1"})
	assert.Empty(t, h.chains)
}

func TestRepeatedCyclesDoNotLeak(t *testing.T) {
	w := gatewaytest.NewWallet("metamask")
	r := New(gateway.New(w), nil)
	h := &recordingHandler{}

	for i := 0; i < 5; i++ {
		r.Activate(context.Background(), h)
		r.Deactivate()
	}
	r.Activate(context.Background(), h)
	assert.Equal(t, []int{1, 1, 1}, listenerCounts(w))

	r.Close()
	assert.Equal(t, []int{0, 0, 0}, listenerCounts(w))
}

func TestDeactivateFromInsideHandler(t *testing.T) {
	w := gatewaytest.NewWallet("metamask")
	r := New(gateway.New(w), nil)

	h := &deactivatingHandler{r: r}
	r.Activate(context.Background(), h)

	w.Emit(types.Event{Kind: types.EventAccountsChanged, Accounts: []string{}})
	assert.False(t, r.Active())
	assert.Equal(t, []int{0, 0, 0}, listenerCounts(w))
}

// deactivatingHandler mimics a session resetting on an empty account list
type deactivatingHandler struct {
	recordingHandler
	r *Reconciler
}

func (h *deactivatingHandler) HandleAccountsChanged(ctx context.Context, accounts []string) {
	h.recordingHandler.HandleAccountsChanged(ctx, accounts)
	if len(accounts) == 0 {
		h.r.Deactivate()
	}
}
