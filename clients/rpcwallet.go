// Package clients provides wallet capabilities usable by the gateway.
//
// RPCWallet behaves like a browser-injected wallet backed by a JSON-RPC node
// and a local signing key. It prompts through an Approver, keeps a list of
// known networks and emits accountsChanged, chainChanged and disconnect.
package clients

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vitwit/walletsession/gateway"
	"github.com/vitwit/walletsession/logger"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

const DefaultWalletName = "metamask"

var _ gateway.Capability = (*RPCWallet)(nil)

// Approver stands in for the wallet's confirmation dialogs.
type Approver interface {
	ApproveConnection(ctx context.Context, address string) bool
	ApproveTransaction(ctx context.Context, tx types.SendTransactionArgs) bool
}

// AutoApprover accepts every request
type AutoApprover struct{}

func (AutoApprover) ApproveConnection(context.Context, string) bool                    { return true }
func (AutoApprover) ApproveTransaction(context.Context, types.SendTransactionArgs) bool { return true }

type RPCWallet struct {
	name     string
	key      *ecdsa.PrivateKey
	address  common.Address
	approver Approver
	dial     Dialer
	logger   logger.Logger

	mu         sync.Mutex
	authorized bool
	closed     bool
	active     string
	networks   map[string]types.ChainConfig
	backends   map[string]Backend

	lmu       sync.Mutex
	nextID    types.ListenerID
	listeners map[types.EventKind]map[types.ListenerID]types.Listener
}

type RPCWalletOption func(*RPCWallet)

func WithName(name string) RPCWalletOption {
	return func(w *RPCWallet) {
		w.name = name
	}
}

func WithApprover(a Approver) RPCWalletOption {
	return func(w *RPCWallet) {
		w.approver = a
	}
}

func WithDialer(d Dialer) RPCWalletOption {
	return func(w *RPCWallet) {
		w.dial = d
	}
}

func WithLogger(l logger.Logger) RPCWalletOption {
	return func(w *RPCWallet) {
		w.logger = l
	}
}

// WithAuthorized starts the wallet with account access already granted, as a
// browser wallet does for a previously approved site.
func WithAuthorized(authorized bool) RPCWalletOption {
	return func(w *RPCWallet) {
		w.authorized = authorized
	}
}

// WithNetworks registers networks the wallet can switch to without adding them
func WithNetworks(networks ...types.ChainConfig) RPCWalletOption {
	return func(w *RPCWallet) {
		for _, n := range networks {
			n.ChainID = utils.NormalizeChainID(n.ChainID)
			w.networks[n.ChainID] = n
		}
	}
}

// NewRPCWallet creates a wallet signing with key and starting on initial.
// Account access is denied by default until an Approver is configured.
func NewRPCWallet(key *ecdsa.PrivateKey, initial types.ChainConfig, opts ...RPCWalletOption) (*RPCWallet, error) {
	if key == nil {
		return nil, errors.New("signer key is required")
	}
	if err := utils.ValidateChainConfig(&initial); err != nil {
		return nil, err
	}

	initial.ChainID = utils.NormalizeChainID(initial.ChainID)
	w := &RPCWallet{
		name:      DefaultWalletName,
		key:       key,
		address:   utils.AddressFromPrivateKey(key),
		approver:  denyAll{},
		dial:      DialRPC,
		logger:    logger.NoopLogger{},
		active:    initial.ChainID,
		networks:  map[string]types.ChainConfig{initial.ChainID: initial},
		backends:  map[string]Backend{},
		listeners: map[types.EventKind]map[types.ListenerID]types.Listener{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *RPCWallet) Name() string {
	return w.name
}

// Address is the signing account
func (w *RPCWallet) Address() string {
	return utils.NormalizeAddress(w.address.Hex())
}

// Request implements the wallet's JSON-RPC surface.
func (w *RPCWallet) Request(ctx context.Context, args types.RequestArguments) (json.RawMessage, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, errDisconnected()
	}

	var (
		result any
		err    error
	)
	switch args.Method {
	case types.MethodRequestAccounts:
		result, err = w.requestAccounts(ctx)
	case types.MethodAccounts:
		result = w.accounts()
	case types.MethodChainID:
		result = w.chainID()
	case types.MethodGetBalance:
		result, err = w.getBalance(ctx, args.Params)
	case types.MethodSwitchChain:
		err = w.switchChain(args.Params)
	case types.MethodAddChain:
		err = w.addChain(args.Params)
	case types.MethodSendTransaction:
		result, err = w.sendTransaction(ctx, args.Params)
	case types.MethodTransactionReceipt:
		result, err = w.transactionReceipt(ctx, args.Params)
	default:
		return nil, errUnsupportedMethod(args.Method)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (w *RPCWallet) On(kind types.EventKind, listener types.Listener) types.ListenerID {
	w.lmu.Lock()
	defer w.lmu.Unlock()

	w.nextID++
	if w.listeners[kind] == nil {
		w.listeners[kind] = map[types.ListenerID]types.Listener{}
	}
	w.listeners[kind][w.nextID] = listener
	return w.nextID
}

func (w *RPCWallet) RemoveListener(kind types.EventKind, id types.ListenerID) {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	delete(w.listeners[kind], id)
}

// ListenerCount returns the number of registrations for kind
func (w *RPCWallet) ListenerCount(kind types.EventKind) int {
	w.lmu.Lock()
	defer w.lmu.Unlock()
	return len(w.listeners[kind])
}

// Lock revokes account access, as if the user locked the wallet.
func (w *RPCWallet) Lock() {
	w.mu.Lock()
	wasAuthorized := w.authorized
	w.authorized = false
	w.mu.Unlock()

	if wasAuthorized {
		w.emit(types.Event{Kind: types.EventAccountsChanged, Accounts: []string{}})
	}
}

// Disconnect drops every node connection and emits disconnect. Later requests
// fail with code 4900.
func (w *RPCWallet) Disconnect() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	backends := w.backends
	w.backends = map[string]Backend{}
	w.mu.Unlock()

	for _, b := range backends {
		b.Close()
	}
	w.emit(types.Event{Kind: types.EventDisconnect, Err: errDisconnected()})
}

// Close releases node connections without emitting events
func (w *RPCWallet) Close() {
	w.mu.Lock()
	backends := w.backends
	w.backends = map[string]Backend{}
	w.closed = true
	w.mu.Unlock()

	for _, b := range backends {
		b.Close()
	}
}

func (w *RPCWallet) requestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	authorized := w.authorized
	w.mu.Unlock()

	if !authorized {
		if !w.approver.ApproveConnection(ctx, w.Address()) {
			return nil, errUserRejected()
		}
		w.mu.Lock()
		w.authorized = true
		w.mu.Unlock()
		w.logger.Info("account access granted", map[string]any{"address": w.Address()})
	}
	return []string{w.Address()}, nil
}

func (w *RPCWallet) accounts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.authorized {
		return []string{}
	}
	return []string{utils.NormalizeAddress(w.address.Hex())}
}

func (w *RPCWallet) chainID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *RPCWallet) getBalance(ctx context.Context, params []any) (*hexutil.Big, error) {
	var address string
	if err := decodeParams(params, &address); err != nil {
		return nil, errInvalidParams(types.MethodGetBalance, err)
	}
	if !utils.ValidateAddress(address) {
		return nil, errInvalidParams(types.MethodGetBalance, fmt.Errorf("invalid address %q", address))
	}

	backend, _, err := w.backend(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, err
	}
	return (*hexutil.Big)(balance), nil
}

func (w *RPCWallet) switchChain(params []any) error {
	var args types.SwitchChainArgs
	if err := decodeParams(params, &args); err != nil {
		return errInvalidParams(types.MethodSwitchChain, err)
	}

	chainID := utils.NormalizeChainID(args.ChainID)

	w.mu.Lock()
	_, known := w.networks[chainID]
	changed := known && w.active != chainID
	if changed {
		w.active = chainID
	}
	w.mu.Unlock()

	if !known {
		return errUnrecognizedChain(chainID)
	}
	if changed {
		w.logger.Info("switched network", map[string]any{"chainId": chainID})
		w.emit(types.Event{Kind: types.EventChainChanged, ChainID: chainID})
	}
	return nil
}

// addChain registers the network and switches to it.
func (w *RPCWallet) addChain(params []any) error {
	var cfg types.ChainConfig
	if err := decodeParams(params, &cfg); err != nil {
		return errInvalidParams(types.MethodAddChain, err)
	}
	if err := utils.ValidateChainConfig(&cfg); err != nil {
		return errInvalidParams(types.MethodAddChain, err)
	}

	cfg.ChainID = utils.NormalizeChainID(cfg.ChainID)

	w.mu.Lock()
	w.networks[cfg.ChainID] = cfg
	w.mu.Unlock()

	w.logger.Info("network added", map[string]any{"chainId": cfg.ChainID, "chainName": cfg.ChainName})
	return w.switchChain([]any{types.SwitchChainArgs{ChainID: cfg.ChainID}})
}

func (w *RPCWallet) sendTransaction(ctx context.Context, params []any) (string, error) {
	var args types.SendTransactionArgs
	if err := decodeParams(params, &args); err != nil {
		return "", errInvalidParams(types.MethodSendTransaction, err)
	}

	w.mu.Lock()
	authorized := w.authorized
	w.mu.Unlock()
	if !authorized || !strings.EqualFold(args.From, w.address.Hex()) {
		return "", errUnauthorized()
	}
	if !utils.ValidateAddress(args.To) {
		return "", errInvalidParams(types.MethodSendTransaction, fmt.Errorf("invalid recipient %q", args.To))
	}
	value, err := hexutil.DecodeBig(args.Value)
	if err != nil {
		return "", errInvalidParams(types.MethodSendTransaction, err)
	}

	if !w.approver.ApproveTransaction(ctx, args) {
		return "", errUserRejected()
	}

	backend, chainID, err := w.backend(ctx)
	if err != nil {
		return "", err
	}

	to := common.HexToAddress(args.To)
	tx, err := w.buildTransfer(ctx, backend, chainID, to, value)
	if err != nil {
		return "", err
	}

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return "", fmt.Errorf("sign tx failed: %w", err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", err
	}

	hash := signed.Hash().Hex()
	w.logger.Info("transaction sent", map[string]any{
		"hash":  hash,
		"to":    to.Hex(),
		"value": value.String(),
		"nonce": signed.Nonce(),
	})
	return hash, nil
}

// buildTransfer prepares an EIP-1559 value transfer. Max fee is twice the
// current base fee plus the suggested tip.
func (w *RPCWallet) buildTransfer(ctx context.Context, backend Backend, chainID *big.Int, to common.Address, value *big.Int) (*ethtypes.Transaction, error) {
	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, fmt.Errorf("pending nonce failed: %w", err)
	}

	tip, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip failed: %w", err)
	}

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header failed: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee, big.NewInt(2)))

	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &to, Value: value})
	if err != nil {
		return nil, err
	}

	return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
	}), nil
}

// transactionReceipt returns nil while the transaction is pending
func (w *RPCWallet) transactionReceipt(ctx context.Context, params []any) (*ethtypes.Receipt, error) {
	var hash string
	if err := decodeParams(params, &hash); err != nil {
		return nil, errInvalidParams(types.MethodTransactionReceipt, err)
	}

	backend, _, err := w.backend(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return receipt, err
}

// backend returns the node connection for the active chain, dialing the
// chain's first RPC URL on first use.
func (w *RPCWallet) backend(ctx context.Context) (Backend, *big.Int, error) {
	w.mu.Lock()
	active := w.active
	cfg := w.networks[active]
	b, ok := w.backends[active]
	w.mu.Unlock()

	chainID, err := hexutil.DecodeBig(active)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid active chain id %q: %w", active, err)
	}
	if ok {
		return b, chainID, nil
	}
	if len(cfg.RPCURLs) == 0 {
		return nil, nil, &types.ProviderError{Code: types.CodeChainDisconnected, Message: "no RPC endpoint for chain " + active}
	}

	b, err = w.dial(ctx, cfg.RPCURLs[0])
	if err != nil {
		return nil, nil, &types.ProviderError{Code: types.CodeChainDisconnected, Message: err.Error()}
	}

	w.mu.Lock()
	if existing, raced := w.backends[active]; raced {
		w.mu.Unlock()
		b.Close()
		return existing, chainID, nil
	}
	w.backends[active] = b
	w.mu.Unlock()

	w.logger.Debug("connected to node", map[string]any{"chainId": active, "rpcUrl": cfg.RPCURLs[0]})
	return b, chainID, nil
}

// emit calls listeners outside the lock so they may re-enter the wallet
func (w *RPCWallet) emit(ev types.Event) {
	w.lmu.Lock()
	listeners := make([]types.Listener, 0, len(w.listeners[ev.Kind]))
	ids := make([]types.ListenerID, 0, len(w.listeners[ev.Kind]))
	for id := range w.listeners[ev.Kind] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, w.listeners[ev.Kind][id])
	}
	w.lmu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// decodeParams converts positional params into out via their JSON form
func decodeParams(params []any, out ...any) error {
	if len(params) < len(out) {
		return fmt.Errorf("expected %d params, got %d", len(out), len(params))
	}
	for i, o := range out {
		raw, err := json.Marshal(params[i])
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, o); err != nil {
			return err
		}
	}
	return nil
}

type denyAll struct{}

func (denyAll) ApproveConnection(context.Context, string) bool                    { return false }
func (denyAll) ApproveTransaction(context.Context, types.SendTransactionArgs) bool { return false }
