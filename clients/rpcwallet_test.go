package clients

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/walletsession/types"
)

const (
	testPrivateKey   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress      = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	recipientAddress = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

var (
	sepolia = types.ChainConfig{
		ChainID:        "0xaa36a7",
		ChainName:      "Sepolia",
		NativeCurrency: types.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{"https://rpc.sepolia.org"},
	}
	polygon = types.ChainConfig{
		ChainID:        "0x89",
		ChainName:      "Polygon",
		NativeCurrency: types.NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18},
		RPCURLs:        []string{"https://polygon-rpc.com"},
	}
)

type fakeBackend struct {
	mu      sync.Mutex
	balance *big.Int
	sent    []*ethtypes.Transaction
	receipt *ethtypes.Receipt
	closed  bool
}

func (b *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 3, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{BaseFee: big.NewInt(10 * params.GWei)}, nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(params.GWei), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return params.TxGas, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *ethtypes.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *fakeBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

type testWallet struct {
	*RPCWallet
	backend *fakeBackend
	dials   []string
}

func newTestWallet(t *testing.T, opts ...RPCWalletOption) *testWallet {
	t.Helper()

	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)

	tw := &testWallet{backend: &fakeBackend{balance: big.NewInt(1_200_000_000_000_000_000)}}
	dial := func(_ context.Context, rpcURL string) (Backend, error) {
		tw.dials = append(tw.dials, rpcURL)
		return tw.backend, nil
	}

	opts = append([]RPCWalletOption{WithDialer(dial), WithNetworks(polygon)}, opts...)
	tw.RPCWallet, err = NewRPCWallet(key, sepolia, opts...)
	require.NoError(t, err)
	return tw
}

func request(t *testing.T, w *RPCWallet, method string, params ...any) (json.RawMessage, error) {
	t.Helper()
	return w.Request(context.Background(), types.RequestArguments{Method: method, Params: params})
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, code, perr.Code)
}

type rejectTransactions struct{ AutoApprover }

func (rejectTransactions) ApproveTransaction(context.Context, types.SendTransactionArgs) bool {
	return false
}

func TestNewRPCWalletValidatesChain(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)

	_, err = NewRPCWallet(nil, sepolia)
	assert.Error(t, err)

	_, err = NewRPCWallet(key, types.ChainConfig{ChainID: "0x1"})
	var werr *types.WalletError
	assert.ErrorAs(t, err, &werr)
}

func TestRequestAccountsDeniedByDefault(t *testing.T) {
	w := newTestWallet(t)

	_, err := request(t, w.RPCWallet, types.MethodRequestAccounts)
	requireCode(t, err, types.CodeUserRejected)

	raw, err := request(t, w.RPCWallet, types.MethodAccounts)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestRequestAccountsApproved(t *testing.T) {
	w := newTestWallet(t, WithApprover(AutoApprover{}))

	raw, err := request(t, w.RPCWallet, types.MethodRequestAccounts)
	require.NoError(t, err)
	assert.JSONEq(t, `["`+testAddress+`"]`, string(raw))

	raw, err = request(t, w.RPCWallet, types.MethodAccounts)
	require.NoError(t, err)
	assert.JSONEq(t, `["`+testAddress+`"]`, string(raw))
}

func TestChainIDAndBalance(t *testing.T) {
	w := newTestWallet(t)

	raw, err := request(t, w.RPCWallet, types.MethodChainID)
	require.NoError(t, err)
	assert.JSONEq(t, `"0xaa36a7"`, string(raw))

	raw, err = request(t, w.RPCWallet, types.MethodGetBalance, testAddress, "latest")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10a741a462780000"`, string(raw))

	_, err = request(t, w.RPCWallet, types.MethodGetBalance, testAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://rpc.sepolia.org"}, w.dials, "node is dialed once per chain")

	_, err = request(t, w.RPCWallet, types.MethodGetBalance, "0x123")
	requireCode(t, err, types.CodeInvalidParams)
}

func TestSwitchChain(t *testing.T) {
	w := newTestWallet(t)

	var changed []string
	w.On(types.EventChainChanged, func(ev types.Event) {
		changed = append(changed, ev.ChainID)
	})

	_, err := request(t, w.RPCWallet, types.MethodSwitchChain, types.SwitchChainArgs{ChainID: "0x89"})
	require.NoError(t, err)
	_, err = request(t, w.RPCWallet, types.MethodSwitchChain, types.SwitchChainArgs{ChainID: "0x89"})
	require.NoError(t, err)

	assert.Equal(t, []string{"0x89"}, changed)

	raw, err := request(t, w.RPCWallet, types.MethodChainID)
	require.NoError(t, err)
	assert.JSONEq(t, `"0x89"`, string(raw))
}

func TestSwitchToUnknownChain(t *testing.T) {
	w := newTestWallet(t)

	_, err := request(t, w.RPCWallet, types.MethodSwitchChain, types.SwitchChainArgs{ChainID: "0xa4b1"})
	requireCode(t, err, types.CodeUnrecognizedChain)

	raw, err := request(t, w.RPCWallet, types.MethodChainID)
	require.NoError(t, err)
	assert.JSONEq(t, `"0xaa36a7"`, string(raw))
}

func TestAddChainSwitchesToIt(t *testing.T) {
	w := newTestWallet(t)
	arbitrum := types.ChainConfig{
		ChainID:        "0xA4B1",
		ChainName:      "Arbitrum One",
		NativeCurrency: types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{"https://arb1.arbitrum.io/rpc"},
	}

	var changed []string
	w.On(types.EventChainChanged, func(ev types.Event) {
		changed = append(changed, ev.ChainID)
	})

	_, err := request(t, w.RPCWallet, types.MethodAddChain, arbitrum)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa4b1"}, changed)

	_, err = request(t, w.RPCWallet, types.MethodGetBalance, testAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://arb1.arbitrum.io/rpc"}, w.dials)
}

func TestAddChainRejectsInvalidConfig(t *testing.T) {
	w := newTestWallet(t)

	_, err := request(t, w.RPCWallet, types.MethodAddChain, types.ChainConfig{ChainID: "0xa4b1"})
	requireCode(t, err, types.CodeInvalidParams)
}

func TestUnsupportedMethod(t *testing.T) {
	w := newTestWallet(t)

	_, err := request(t, w.RPCWallet, "eth_sign", testAddress, "0xdeadbeef")
	requireCode(t, err, types.CodeUnsupportedMethod)
}

func TestSendTransactionSignsDynamicFeeTx(t *testing.T) {
	w := newTestWallet(t, WithApprover(AutoApprover{}), WithAuthorized(true))

	raw, err := request(t, w.RPCWallet, types.MethodSendTransaction, types.SendTransactionArgs{
		From:  testAddress,
		To:    recipientAddress,
		Value: "0x14d1120d7b160000",
	})
	require.NoError(t, err)

	require.Len(t, w.backend.sent, 1)
	tx := w.backend.sent[0]

	var hash string
	require.NoError(t, json.Unmarshal(raw, &hash))
	assert.Equal(t, tx.Hash().Hex(), hash)

	assert.Equal(t, uint8(ethtypes.DynamicFeeTxType), tx.Type())
	assert.Equal(t, big.NewInt(11155111), tx.ChainId())
	assert.Equal(t, uint64(3), tx.Nonce())
	assert.Equal(t, params.TxGas, tx.Gas())
	assert.Equal(t, big.NewInt(params.GWei), tx.GasTipCap())
	assert.Equal(t, big.NewInt(21*params.GWei), tx.GasFeeCap())
	assert.Equal(t, common.HexToAddress(recipientAddress), *tx.To())
	assert.Equal(t, hexutil.MustDecodeBig("0x14d1120d7b160000"), tx.Value())

	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(tx.ChainId()), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), sender)
}

func TestSendTransactionRequiresAuthorizedSender(t *testing.T) {
	w := newTestWallet(t, WithApprover(AutoApprover{}))
	args := types.SendTransactionArgs{From: testAddress, To: recipientAddress, Value: "0x1"}

	_, err := request(t, w.RPCWallet, types.MethodSendTransaction, args)
	requireCode(t, err, types.CodeUnauthorized)

	_, err = request(t, w.RPCWallet, types.MethodRequestAccounts)
	require.NoError(t, err)

	args.From = recipientAddress
	_, err = request(t, w.RPCWallet, types.MethodSendTransaction, args)
	requireCode(t, err, types.CodeUnauthorized)
	assert.Empty(t, w.backend.sent)
}

func TestSendTransactionRejectedByUser(t *testing.T) {
	w := newTestWallet(t, WithApprover(rejectTransactions{}), WithAuthorized(true))

	_, err := request(t, w.RPCWallet, types.MethodSendTransaction, types.SendTransactionArgs{
		From:  testAddress,
		To:    recipientAddress,
		Value: "0x1",
	})
	requireCode(t, err, types.CodeUserRejected)
	assert.Empty(t, w.backend.sent)
}

func TestTransactionReceipt(t *testing.T) {
	w := newTestWallet(t)
	hash := "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"

	raw, err := request(t, w.RPCWallet, types.MethodTransactionReceipt, hash)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	w.backend.receipt = &ethtypes.Receipt{
		Status:      ethtypes.ReceiptStatusSuccessful,
		TxHash:      common.HexToHash(hash),
		BlockNumber: big.NewInt(42),
		GasUsed:     params.TxGas,
	}
	raw, err = request(t, w.RPCWallet, types.MethodTransactionReceipt, hash)
	require.NoError(t, err)

	var receipt map[string]any
	require.NoError(t, json.Unmarshal(raw, &receipt))
	assert.Equal(t, "0x1", receipt["status"])
	assert.Equal(t, "0x2a", receipt["blockNumber"])
}

func TestLockEmitsEmptyAccounts(t *testing.T) {
	w := newTestWallet(t, WithAuthorized(true))

	var events []types.Event
	w.On(types.EventAccountsChanged, func(ev types.Event) {
		events = append(events, ev)
	})

	w.Lock()
	w.Lock()

	require.Len(t, events, 1)
	assert.Empty(t, events[0].Accounts)

	raw, err := request(t, w.RPCWallet, types.MethodAccounts)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestDisconnect(t *testing.T) {
	w := newTestWallet(t)
	_, err := request(t, w.RPCWallet, types.MethodGetBalance, testAddress)
	require.NoError(t, err)

	var disconnects []error
	w.On(types.EventDisconnect, func(ev types.Event) {
		disconnects = append(disconnects, ev.Err)
	})

	w.Disconnect()
	w.Disconnect()

	require.Len(t, disconnects, 1)
	requireCode(t, disconnects[0], types.CodeDisconnected)
	assert.True(t, w.backend.closed)

	_, err = request(t, w.RPCWallet, types.MethodChainID)
	requireCode(t, err, types.CodeDisconnected)
}

func TestRemoveListener(t *testing.T) {
	w := newTestWallet(t, WithAuthorized(true))

	calls := 0
	id := w.On(types.EventAccountsChanged, func(types.Event) { calls++ })
	assert.Equal(t, 1, w.ListenerCount(types.EventAccountsChanged))

	w.RemoveListener(types.EventAccountsChanged, id)
	w.RemoveListener(types.EventAccountsChanged, id)
	assert.Zero(t, w.ListenerCount(types.EventAccountsChanged))

	w.Lock()
	assert.Zero(t, calls)
}

func TestDialFailureIsChainDisconnected(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)

	w, err := NewRPCWallet(key, sepolia, WithDialer(func(context.Context, string) (Backend, error) {
		return nil, errors.New("connection refused")
	}))
	require.NoError(t, err)

	_, err = request(t, w, types.MethodGetBalance, testAddress)
	requireCode(t, err, types.CodeChainDisconnected)
}
