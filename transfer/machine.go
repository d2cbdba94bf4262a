package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"
	"github.com/vitwit/walletsession/classify"
	"github.com/vitwit/walletsession/gateway"
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/metrics"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

var (
	ErrTransferInProgress = errors.New("a transfer is already in progress")
	ErrResetNotAllowed    = errors.New("transfer can only be reset after it settles or fails")
)

// Gateway checks transfers locally and submits them to the wallet
type Gateway interface {
	PrepareTransfer(ctx context.Context, recipient, amount string) (*gateway.TransferRequest, error)
	SubmitTransfer(ctx context.Context, req *gateway.TransferRequest) (*gateway.PendingTransfer, error)
}

var _ Gateway = (*gateway.Gateway)(nil)

// CompletionHandler is called once for every transfer that settles successfully.
type CompletionHandler func(t types.Transfer)

// Machine drives Transition. Settlement is awaited on a background goroutine
// bound to the machine's lifetime.
type Machine struct {
	gateway    Gateway
	notifier   types.Notifier
	logger     logger.Logger
	metrics    metrics.Recorder
	onComplete CompletionHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State

	// settling counts settlement goroutines; idle is signalled when it drops to zero
	settling int
	idle     *sync.Cond

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

func WithCompletionHandler(h CompletionHandler) Option {
	return func(m *Machine) {
		m.onComplete = h
	}
}

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
	m.idle = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Snapshot() types.Transfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Transfer
}

// Subscribe delivers every transfer change to ch. Receivers must keep draining
// ch.
func (m *Machine) Subscribe(ch chan<- types.Transfer) event.Subscription {
	return m.feed.Subscribe(ch)
}

// Submit validates the input and asks the wallet to sign and broadcast the
// transfer. It returns once the wallet accepts or refuses it; settlement
// continues in the background.
//
// Invalid input is returned as types.FormErrors without touching the wallet.
// A refusal by the wallet is returned as *types.ClassifiedError.
func (m *Machine) Submit(ctx context.Context, recipient, amount string) error {
	if errs := utils.ValidateForm(recipient, amount); !errs.Empty() {
		return errs
	}

	id := uuid.NewString()
	prev, _, effects := m.apply(SubmitRequested{ID: id, Recipient: recipient, Amount: amount})
	if len(effects) == 0 {
		m.logger.Debug("transfer submit ignored", map[string]any{"status": prev.Transfer.Status.String()})
		return ErrTransferInProgress
	}

	m.metrics.IncCounter("transfer", map[string]string{metrics.LabelKind: "submitted"})
	return m.run(ctx, effects)
}

// Reset returns a settled or failed transfer to idle.
func (m *Machine) Reset() error {
	prev, _, _ := m.apply(ResetRequested{})
	if !prev.Transfer.Status.IsTerminal() {
		return ErrResetNotAllowed
	}
	return nil
}

// InputChanged clears a finished attempt once the user edits the form.
func (m *Machine) InputChanged() {
	m.apply(InputChanged{})
}

// Wait blocks until no settlement is being awaited. It may be called while
// Submit runs.
func (m *Machine) Wait() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.settling > 0 {
		m.idle.Wait()
	}
}

// Close stops awaiting settlement. A broadcast transfer stays broadcast.
func (m *Machine) Close() {
	m.cancel()
	m.Wait()
}

func (m *Machine) apply(in Input) (prev, next State, effects []Effect) {
	m.mu.Lock()
	prev = m.state
	next, effects = Transition(m.state, in)
	m.state = next
	for _, eff := range effects {
		if _, ok := eff.(AwaitSettlement); ok {
			m.settling++
		}
	}
	m.mu.Unlock()

	if next.Transfer != prev.Transfer {
		if next.Transfer.Status != prev.Transfer.Status {
			m.logger.Debug("transfer status changed", map[string]any{
				"id":   next.Transfer.ID,
				"from": prev.Transfer.Status.String(),
				"to":   next.Transfer.Status.String(),
			})
		}
		m.feed.Send(next.Transfer)
	}
	return prev, next, effects
}

// run performs effects in order. Only a refusal while preparing or
// submitting is returned.
func (m *Machine) run(ctx context.Context, effects []Effect) error {
	var result error
	for _, eff := range effects {
		switch eff := eff.(type) {
		case Prepare:
			if err := m.prepare(ctx, eff); err != nil {
				result = err
			}
		case Submit:
			if err := m.submit(ctx, eff); err != nil {
				result = err
			}
		case AwaitSettlement:
			m.awaitSettlement(eff)
		case Complete:
			m.metrics.IncCounter("transfer", map[string]string{metrics.LabelKind: "settled"})
			if m.onComplete != nil {
				m.onComplete(eff.Transfer)
			}
		case Notify:
			m.notifier.Notify(eff.Notification)
		}
	}
	return result
}

func (m *Machine) prepare(ctx context.Context, eff Prepare) error {
	req, err := m.gateway.PrepareTransfer(ctx, eff.Recipient, eff.Amount)
	if err != nil {
		return m.refused(ctx, eff.ID, err)
	}

	_, _, effects := m.apply(Prepared{ID: eff.ID, Request: req})
	return m.run(ctx, effects)
}

func (m *Machine) submit(ctx context.Context, eff Submit) error {
	pending, err := m.gateway.SubmitTransfer(ctx, eff.Request)
	if err != nil {
		return m.refused(ctx, eff.ID, err)
	}

	m.metrics.IncCounter("transfer", map[string]string{metrics.LabelKind: "broadcast"})
	m.logger.Info("transfer broadcast", map[string]any{"id": eff.ID, "hash": pending.Hash})

	_, _, effects := m.apply(Accepted{ID: eff.ID, Pending: pending})
	return m.run(ctx, effects)
}

// refused ends attempt id after the gateway or wallet turned it down
func (m *Machine) refused(ctx context.Context, id string, err error) error {
	var invalid *types.ValidationError
	if errors.As(err, &invalid) {
		m.apply(SubmitInvalid{ID: id})
		return formErrors(invalid)
	}

	classified := classify.Classify(err)
	m.metrics.IncCounter("transfer", map[string]string{metrics.LabelKind: "rejected"})
	m.logger.Warn("transfer submission failed", map[string]any{
		"id":    id,
		"kind":  string(classified.Kind),
		"error": err,
	})
	_, _, effects := m.apply(SubmitFailed{ID: id, Err: classified})
	_ = m.run(ctx, effects)
	return classified
}

// awaitSettlement runs in the background. apply already counted it in
// settling.
func (m *Machine) awaitSettlement(eff AwaitSettlement) {
	go func() {
		defer m.settled()

		start := time.Now()
		settlement, err := eff.Pending.Settle(m.ctx)
		m.metrics.ObserveLatency("transfer_settlement", time.Since(start), nil)

		var in Input
		switch {
		case err != nil && m.ctx.Err() != nil:
			m.logger.Info("stopped awaiting settlement", map[string]any{"id": eff.ID, "hash": eff.Pending.Hash})
			return
		case err != nil:
			m.logger.Warn("settlement lookup failed", map[string]any{"id": eff.ID, "hash": eff.Pending.Hash, "error": err})
			in = SettleFailed{ID: eff.ID, Err: classify.Classify(err)}
		default:
			if !settlement.Success {
				m.metrics.IncCounter("transfer", map[string]string{metrics.LabelKind: "reverted"})
				m.logger.Warn("transfer reverted", map[string]any{"id": eff.ID, "hash": settlement.Hash, "block": settlement.BlockNumber})
			}
			in = Mined{ID: eff.ID, Settlement: *settlement}
		}

		_, _, effects := m.apply(in)
		_ = m.run(m.ctx, effects)
	}()
}

func (m *Machine) settled() {
	m.mu.Lock()
	m.settling--
	if m.settling == 0 {
		m.idle.Broadcast()
	}
	m.mu.Unlock()
}

func formErrors(err *types.ValidationError) types.FormErrors {
	if err.Field == "recipient" {
		return types.FormErrors{Recipient: err}
	}
	return types.FormErrors{Amount: err}
}
