// Package walletsession wires the wallet gateway, the session and transfer
// state machines and the provider event reconciler into a single core that a
// presentation layer can drive.
package walletsession

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/vitwit/walletsession/classify"
	"github.com/vitwit/walletsession/gateway"
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/metrics"
	"github.com/vitwit/walletsession/reconciler"
	"github.com/vitwit/walletsession/session"
	"github.com/vitwit/walletsession/transfer"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

// Core is the main struct that provides all wallet session functionality
type Core struct {
	config *types.Config

	gateway    *gateway.Gateway
	reconciler *reconciler.Reconciler
	session    *session.Machine
	transfer   *transfer.Machine

	logger   logger.Logger
	metrics  metrics.Recorder
	notifier types.Notifier

	ctx    context.Context
	cancel context.CancelFunc
}

// DefaultConfig targets Sepolia with the MetaMask wallet name
func DefaultConfig() *types.Config {
	return &types.Config{
		WalletName:   "metamask",
		PollInterval: 2 * time.Second,
		LogLevel:     "info",
		TargetNetwork: types.ChainConfig{
			ChainID:   "0xaa36a7",
			ChainName: "Sepolia",
			NativeCurrency: types.NativeCurrency{
				Name:     "Sepolia Ether",
				Symbol:   "ETH",
				Decimals: 18,
			},
			RPCURLs:           []string{"https://rpc.sepolia.org"},
			BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
		},
	}
}

// New creates a core over wallet, which may be nil when no wallet is
// installed. A nil config uses DefaultConfig.
func New(wallet gateway.Capability, config *types.Config, opts ...Option) (*Core, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := utils.ValidateConfig(config); err != nil {
		return nil, err
	}
	if err := utils.ValidateChainConfig(&config.TargetNetwork); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Core{
		config:  config,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = logger.Notifier{Log: c.logger}
	}

	gwOpts := []gateway.Option{
		gateway.WithLogger(c.logger),
		gateway.WithMetrics(c.metrics),
		gateway.WithWalletName(config.WalletName),
		gateway.WithDecimals(config.TargetNetwork.Decimals()),
	}
	if config.PollInterval > 0 {
		gwOpts = append(gwOpts, gateway.WithPollInterval(config.PollInterval))
	}
	c.gateway = gateway.New(wallet, gwOpts...)

	c.reconciler = reconciler.New(c.gateway, c.logger)

	c.session = session.New(c.gateway,
		session.WithEventSource(c.reconciler),
		session.WithLogger(c.logger),
		session.WithMetrics(c.metrics),
		session.WithNotifier(c.notifier),
	)

	c.transfer = transfer.New(c.gateway,
		transfer.WithLogger(c.logger),
		transfer.WithMetrics(c.metrics),
		transfer.WithNotifier(c.notifier),
		transfer.WithCompletionHandler(c.onTransferSettled),
	)

	return c, nil
}

// Detect reports whether the supported wallet is installed
func (c *Core) Detect() bool {
	return c.gateway.Detect()
}

// Connect prompts the wallet for account access
func (c *Core) Connect(ctx context.Context) error {
	if !c.gateway.Detect() {
		return &types.WalletError{
			Code:    types.ErrWalletNotFound,
			Message: fmt.Sprintf("%s is not installed", c.config.WalletName),
		}
	}
	return c.session.Connect(ctx)
}

// Disconnect clears the local session
func (c *Core) Disconnect() {
	c.session.Disconnect()
}

// CheckExistingConnection silently restores a session the wallet already
// authorized. Call it once at startup.
func (c *Core) CheckExistingConnection(ctx context.Context) {
	if !c.gateway.Detect() {
		c.logger.Debug("no wallet detected, skipping existing connection check", nil)
		return
	}
	c.session.CheckExistingConnection(ctx)
}

// RefreshBalance reloads the connected account's balance
func (c *Core) RefreshBalance(ctx context.Context) {
	s := c.session.Snapshot()
	if !s.IsConnected() {
		return
	}
	c.session.RefreshBalance(ctx, s.Address)
}

// TargetNetwork is the network the core expects the wallet to use
func (c *Core) TargetNetwork() types.ChainConfig {
	return c.config.TargetNetwork
}

// IsWrongNetwork reports whether a connected wallet is on another chain than
// the target network.
func (c *Core) IsWrongNetwork() bool {
	s := c.session.Snapshot()
	return s.IsConnected() && !utils.SameChain(s.ChainID, c.config.TargetNetwork.ChainID)
}

// SwitchNetwork moves the wallet to the target network, adding it to the
// wallet first when unknown. The session picks the new chain up from the
// wallet's chainChanged event.
func (c *Core) SwitchNetwork(ctx context.Context) error {
	target := c.config.TargetNetwork
	if err := c.gateway.SwitchChain(ctx, target); err != nil {
		classified := classify.Classify(err)
		c.metrics.IncCounter("network_switch", map[string]string{metrics.LabelKind: "failed"})
		c.logger.Warn("network switch failed", map[string]any{
			"chainId": target.ChainID,
			"kind":    string(classified.Kind),
			"error":   err,
		})
		c.notifier.Notify(types.Notification{
			Level:   types.LevelError,
			Title:   "Network switch failed",
			Message: classified.Message,
		})
		return classified
	}

	c.metrics.IncCounter("network_switch", map[string]string{metrics.LabelKind: "succeeded"})
	return nil
}

// Send submits a transfer from the connected account. It returns once the
// wallet accepted or refused it; use Transfer or SubscribeTransfer to follow
// settlement.
func (c *Core) Send(ctx context.Context, recipient, amount string) error {
	if !c.session.Snapshot().IsConnected() {
		return &types.WalletError{Code: types.ErrNotConnected, Message: "connect a wallet first"}
	}
	if c.IsWrongNetwork() {
		return &types.WalletError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("switch to %s first", c.config.TargetNetwork.ChainName),
		}
	}
	return c.transfer.Submit(ctx, recipient, amount)
}

// ResetTransfer returns a settled or failed transfer to idle
func (c *Core) ResetTransfer() error {
	return c.transfer.Reset()
}

// TransferInputChanged clears a finished transfer once the form is edited
func (c *Core) TransferInputChanged() {
	c.transfer.InputChanged()
}

// WaitForTransfer blocks until the current transfer, if any, settles
func (c *Core) WaitForTransfer() {
	c.transfer.Wait()
}

func (c *Core) Session() types.Session {
	return c.session.Snapshot()
}

func (c *Core) Transfer() types.Transfer {
	return c.transfer.Snapshot()
}

func (c *Core) SubscribeSession(ch chan<- types.Session) event.Subscription {
	return c.session.Subscribe(ch)
}

func (c *Core) SubscribeTransfer(ch chan<- types.Transfer) event.Subscription {
	return c.transfer.Subscribe(ch)
}

// ExplorerURL links a transaction hash on the target network's explorer
func (c *Core) ExplorerURL(hash string) string {
	return c.config.TargetNetwork.TxURL(hash)
}

// Close stops provider event routing and background settlement
func (c *Core) Close() {
	c.transfer.Close()
	c.session.Close()
	c.reconciler.Close()
	c.cancel()
}

func (c *Core) onTransferSettled(t types.Transfer) {
	s := c.session.Snapshot()
	if !s.IsConnected() {
		return
	}
	c.logger.Debug("refreshing balance after settlement", map[string]any{"id": t.ID, "hash": t.Handle})
	c.session.RefreshBalance(c.ctx, s.Address)
}
