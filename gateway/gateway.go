// Package gateway is a thin adapter over an injected wallet capability. It
// issues the wallet requests the session and transfer machines need and
// exposes the capability's events through idempotent subscriptions.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/metrics"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

const (
	defaultWalletName   = "metamask"
	defaultPollInterval = 2 * time.Second
)

// Capability is the injected wallet: request/response plus event listeners.
type Capability interface {
	// Name is how the wallet identifies itself.
	Name() string
	Request(ctx context.Context, args types.RequestArguments) (json.RawMessage, error)
	On(kind types.EventKind, listener types.Listener) types.ListenerID
	RemoveListener(kind types.EventKind, id types.ListenerID)
}

// Gateway wraps a Capability. A nil capability means no wallet is installed.
type Gateway struct {
	wallet       Capability
	walletName   string
	decimals     int
	pollInterval time.Duration

	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Gateway)

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) {
		g.metrics = r
	}
}

// WithWalletName sets the name Detect expects the capability to report
func WithWalletName(name string) Option {
	return func(g *Gateway) {
		g.walletName = name
	}
}

// WithDecimals sets the native currency precision used for amounts and balances
func WithDecimals(decimals int) Option {
	return func(g *Gateway) {
		g.decimals = decimals
	}
}

// WithPollInterval sets how often pending transfers are checked for a receipt
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		g.pollInterval = d
	}
}

// New creates a gateway over wallet, which may be nil.
func New(wallet Capability, opts ...Option) *Gateway {
	g := &Gateway{
		wallet:       wallet,
		walletName:   defaultWalletName,
		decimals:     18,
		pollInterval: defaultPollInterval,
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Detect reports whether a wallet is present and is the supported one.
func (g *Gateway) Detect() bool {
	return g.wallet != nil && strings.EqualFold(g.wallet.Name(), g.walletName)
}

// RequestAccounts asks the wallet for account access, prompting the user.
func (g *Gateway) RequestAccounts(ctx context.Context) ([]string, error) {
	if g.wallet == nil {
		return nil, errNoWallet()
	}

	var accounts []string
	if err := g.call(ctx, &accounts, types.MethodRequestAccounts); err != nil {
		return nil, err
	}
	return utils.NormalizeAddresses(accounts), nil
}

// CurrentAccounts returns the already-authorized accounts without prompting.
// Missing wallets and transport failures yield an empty list.
func (g *Gateway) CurrentAccounts(ctx context.Context) []string {
	if g.wallet == nil {
		return []string{}
	}

	var accounts []string
	if err := g.call(ctx, &accounts, types.MethodAccounts); err != nil {
		g.logger.Debug("eth_accounts failed, treating as not connected", map[string]any{"error": err.Error()})
		return []string{}
	}
	return utils.NormalizeAddresses(accounts)
}

// CurrentChainID returns the wallet's active chain as normalized hex.
func (g *Gateway) CurrentChainID(ctx context.Context) (string, error) {
	if g.wallet == nil {
		return "", errNoWallet()
	}

	var chainID string
	if err := g.call(ctx, &chainID, types.MethodChainID); err != nil {
		return "", err
	}
	return utils.NormalizeChainID(chainID), nil
}

// GetBalance returns the native balance of address as a decimal string with
// at most four fractional digits.
func (g *Gateway) GetBalance(ctx context.Context, address string) (string, error) {
	if g.wallet == nil {
		return "", errNoWallet()
	}

	var raw hexutil.Big
	if err := g.call(ctx, &raw, types.MethodGetBalance, utils.NormalizeAddress(address), "latest"); err != nil {
		return "", err
	}
	return utils.FormatBalance(raw.ToInt(), g.decimals), nil
}

// Subscribe registers handler for kind and returns a function removing exactly
// that registration. The returned function is safe to call more than once.
func (g *Gateway) Subscribe(kind types.EventKind, handler func(types.Event)) (unsubscribe func()) {
	if g.wallet == nil {
		return func() {}
	}

	id := g.wallet.On(kind, func(ev types.Event) {
		ev.Kind = kind
		ev.Accounts = utils.NormalizeAddresses(ev.Accounts)
		ev.ChainID = utils.NormalizeChainID(ev.ChainID)
		g.metrics.IncCounter("provider_event", map[string]string{metrics.LabelKind: kind.String()})
		handler(ev)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			g.wallet.RemoveListener(kind, id)
		})
	}
}

// call issues a request and decodes its JSON result into out
func (g *Gateway) call(ctx context.Context, out any, method string, params ...any) error {
	start := time.Now()
	raw, err := g.wallet.Request(ctx, types.RequestArguments{Method: method, Params: params})
	g.metrics.ObserveLatency("wallet_request", time.Since(start), map[string]string{metrics.LabelMethod: method})
	if err != nil {
		g.logger.Debug("wallet request failed", map[string]any{"method": method, "error": err.Error()})
		return err
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func errNoWallet() error {
	return &types.ProviderError{Code: types.CodeDisconnected, Message: "no wallet detected"}
}
