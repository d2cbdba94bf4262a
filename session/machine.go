package session

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/vitwit/walletsession/classify"
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/metrics"
	"github.com/vitwit/walletsession/reconciler"
	"github.com/vitwit/walletsession/types"
)

// Gateway is the subset of wallet operations the session needs
type Gateway interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	CurrentAccounts(ctx context.Context) []string
	CurrentChainID(ctx context.Context) (string, error)
	GetBalance(ctx context.Context, address string) (string, error)
}

// EventSource turns provider event routing on and off
type EventSource interface {
	Activate(ctx context.Context, h reconciler.Handler)
	Deactivate()
}

var _ reconciler.Handler = (*Machine)(nil)
var _ EventSource = (*reconciler.Reconciler)(nil)

// Machine drives Transition against a gateway. The lock is never held while a
// wallet request is in flight.
type Machine struct {
	gateway  Gateway
	events   EventSource
	notifier types.Notifier
	logger   logger.Logger
	metrics  metrics.Recorder

	// Lifetime of event-driven work, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State

	feed event.Feed
}

type Option func(*Machine)

func WithLogger(l logger.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Machine) {
		m.metrics = r
	}
}

func WithNotifier(n types.Notifier) Option {
	return func(m *Machine) {
		m.notifier = n
	}
}

// WithEventSource enables provider event routing while connected
func WithEventSource(src EventSource) Option {
	return func(m *Machine) {
		m.events = src
	}
}

// New creates a disconnected session over gw.
func New(gw Gateway, opts ...Option) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		gateway:  gw,
		notifier: types.NoopNotifier{},
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		ctx:      ctx,
		cancel:   cancel,
		state:    Initial(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current session
func (m *Machine) Snapshot() types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Session
}

// Subscribe delivers every session change to ch. Receivers must keep draining
// ch; a full channel stalls the machine.
func (m *Machine) Subscribe(ch chan<- types.Session) event.Subscription {
	return m.feed.Subscribe(ch)
}

// Connect prompts the wallet for access and loads chain and balance. It does
// nothing unless the session is disconnected. The returned error is the
// classified failure of the attempt this call started, if any.
func (m *Machine) Connect(ctx context.Context) error {
	if started := m.dispatch(ctx, ConnectRequested{}); !started {
		return nil
	}

	s := m.Snapshot()
	if s.Status == types.SessionDisconnected && s.LastError != nil {
		return s.LastError
	}
	return nil
}

// Disconnect clears the session locally. The wallet keeps its authorization.
func (m *Machine) Disconnect() {
	m.dispatch(m.ctx, DisconnectRequested{})
}

// CheckExistingConnection restores a session the wallet already authorized,
// without prompting. It does nothing unless the session is disconnected.
func (m *Machine) CheckExistingConnection(ctx context.Context) {
	m.dispatch(ctx, ReconcileRequested{})
}

// RefreshBalance reloads the balance for address. A failure is logged and
// leaves the session untouched.
func (m *Machine) RefreshBalance(ctx context.Context, address string) {
	balance, err := m.gateway.GetBalance(ctx, address)
	if err != nil {
		m.metrics.IncCounter("balance_refresh", map[string]string{metrics.LabelKind: "failed"})
		m.logger.Warn("balance refresh failed", map[string]any{
			"address": address,
			"error":   classify.Classify(err).Message,
		})
		return
	}
	m.dispatch(ctx, BalanceFetched{Address: address, Balance: balance})
}

func (m *Machine) HandleAccountsChanged(ctx context.Context, accounts []string) {
	m.dispatch(ctx, AccountsChanged{Accounts: accounts})
}

func (m *Machine) HandleChainChanged(ctx context.Context, chainID string) {
	m.dispatch(ctx, ChainChanged{ChainID: chainID})
}

func (m *Machine) HandleDisconnect(ctx context.Context, err error) {
	m.dispatch(ctx, ProviderDisconnected{Err: classify.Classify(err)})
}

// Close stops event routing and cancels in-flight event-driven work. The
// session state is left as is.
func (m *Machine) Close() {
	if m.events != nil {
		m.events.Deactivate()
	}
	m.cancel()
}

// dispatch applies in and runs the resulting effects. It reports whether a
// connect attempt was started.
func (m *Machine) dispatch(ctx context.Context, in Input) bool {
	m.mu.Lock()
	prev := m.state.Session
	next, effects := Transition(m.state, in)
	m.state = next
	m.mu.Unlock()

	if next.Session != prev {
		if next.Session.Status != prev.Status {
			m.logger.Debug("session status changed", map[string]any{
				"from": prev.Status.String(),
				"to":   next.Session.Status.String(),
			})
		}
		m.feed.Send(next.Session)
	}

	started := false
	for _, eff := range effects {
		if _, ok := eff.(RunConnect); ok {
			started = true
		}
		m.run(ctx, eff)
	}
	return started
}

func (m *Machine) run(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case RunConnect:
		m.connect(ctx, eff.Attempt)
	case RunReconcile:
		m.reconcile(ctx)
	case FetchBalance:
		m.RefreshBalance(ctx, eff.Address)
	case ActivateEvents:
		if m.events != nil {
			m.events.Activate(m.ctx, m)
		}
	case DeactivateEvents:
		if m.events != nil {
			m.events.Deactivate()
		}
	case Notify:
		m.notifier.Notify(eff.Notification)
	}
}

func (m *Machine) connect(ctx context.Context, attempt uint64) {
	m.metrics.IncCounter("session_connect", map[string]string{metrics.LabelKind: "started"})

	result, err := m.loadConnection(ctx)
	if err != nil {
		classified := classify.Classify(err)
		m.metrics.IncCounter("session_connect", map[string]string{metrics.LabelKind: "failed"})
		m.logger.Warn("wallet connection failed", map[string]any{
			"attempt": attempt,
			"kind":    string(classified.Kind),
			"error":   err,
		})
		m.dispatch(ctx, ConnectFailed{Attempt: attempt, Err: classified})
		return
	}

	m.metrics.IncCounter("session_connect", map[string]string{metrics.LabelKind: "succeeded"})
	m.logger.Info("wallet connected", map[string]any{
		"address": result.Address,
		"chainId": result.ChainID,
	})
	result.Attempt = attempt
	m.dispatch(ctx, result)
}

func (m *Machine) loadConnection(ctx context.Context) (ConnectSucceeded, error) {
	accounts, err := m.gateway.RequestAccounts(ctx)
	if err != nil {
		return ConnectSucceeded{}, err
	}
	if len(accounts) == 0 {
		return ConnectSucceeded{}, &types.ProviderError{Code: types.CodeUnauthorized, Message: "no accounts returned"}
	}

	chainID, err := m.gateway.CurrentChainID(ctx)
	if err != nil {
		return ConnectSucceeded{}, err
	}

	balance, err := m.gateway.GetBalance(ctx, accounts[0])
	if err != nil {
		return ConnectSucceeded{}, err
	}

	return ConnectSucceeded{Address: accounts[0], ChainID: chainID, Balance: balance}, nil
}

func (m *Machine) reconcile(ctx context.Context) {
	accounts := m.gateway.CurrentAccounts(ctx)
	if len(accounts) == 0 {
		m.logger.Debug("no existing wallet authorization", nil)
		return
	}

	chainID, err := m.gateway.CurrentChainID(ctx)
	if err != nil {
		m.logger.Warn("existing connection check failed", map[string]any{"error": err})
		return
	}

	balance, err := m.gateway.GetBalance(ctx, accounts[0])
	if err != nil {
		m.logger.Warn("balance unavailable for existing connection", map[string]any{
			"address": accounts[0],
			"error":   err,
		})
		balance = ""
	}

	m.dispatch(ctx, ExistingConnectionFound{Address: accounts[0], ChainID: chainID, Balance: balance})
}
