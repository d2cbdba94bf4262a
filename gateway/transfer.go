package gateway

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

// Settlement is the mined outcome of a transfer
type Settlement struct {
	Hash        string
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
}

// PendingTransfer is a transfer the wallet has accepted. Settle blocks until
// it is mined.
type PendingTransfer struct {
	Hash   string
	settle func(ctx context.Context) (*Settlement, error)
}

// NewPendingTransfer pairs a transaction hash with its settlement accessor.
func NewPendingTransfer(hash string, settle func(ctx context.Context) (*Settlement, error)) *PendingTransfer {
	return &PendingTransfer{Hash: hash, settle: settle}
}

// Settle waits for the transfer to be mined
func (p *PendingTransfer) Settle(ctx context.Context) (*Settlement, error) {
	return p.settle(ctx)
}

// receipt is the subset of eth_getTransactionReceipt the gateway reads
type receipt struct {
	TransactionHash string         `json:"transactionHash"`
	Status          hexutil.Uint64 `json:"status"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
}

// TransferRequest is a transfer that passed local checks and is ready for
// the wallet.
type TransferRequest struct {
	From  string
	To    string
	Value *big.Int
}

// PrepareTransfer validates the input and resolves the sending account
// without asking the wallet to sign anything. Validation failures are
// returned as *types.ValidationError.
func (g *Gateway) PrepareTransfer(ctx context.Context, recipient, amount string) (*TransferRequest, error) {
	if errs := utils.ValidateForm(recipient, amount); !errs.Empty() {
		if errs.Recipient != nil {
			return nil, errs.Recipient
		}
		return nil, errs.Amount
	}

	if g.wallet == nil {
		return nil, errNoWallet()
	}

	value, err := utils.ParseAmountWithDecimals(amount, g.decimals)
	if err != nil {
		return nil, &types.ValidationError{Field: "amount", Reason: utils.ReasonAmountPrecision}
	}

	accounts := g.CurrentAccounts(ctx)
	if len(accounts) == 0 {
		return nil, &types.ProviderError{Code: types.CodeUnauthorized, Message: "no authorized account"}
	}

	return &TransferRequest{
		From:  accounts[0],
		To:    utils.NormalizeAddress(recipient),
		Value: value,
	}, nil
}

// SubmitTransfer asks the wallet to sign and broadcast req.
func (g *Gateway) SubmitTransfer(ctx context.Context, req *TransferRequest) (*PendingTransfer, error) {
	if g.wallet == nil {
		return nil, errNoWallet()
	}

	var hash string
	err := g.call(ctx, &hash, types.MethodSendTransaction, types.SendTransactionArgs{
		From:  req.From,
		To:    req.To,
		Value: hexutil.EncodeBig(req.Value),
	})
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, fmt.Errorf("wallet returned an empty transaction hash")
	}

	g.logger.Info("transfer submitted", map[string]any{
		"hash":  hash,
		"from":  req.From,
		"to":    req.To,
		"value": req.Value.String(),
	})

	return NewPendingTransfer(hash, func(ctx context.Context) (*Settlement, error) {
		return g.WaitForReceipt(ctx, hash)
	}), nil
}

// WaitForReceipt polls the wallet until hash is mined or ctx is done.
func (g *Gateway) WaitForReceipt(ctx context.Context, hash string) (*Settlement, error) {
	if g.wallet == nil {
		return nil, errNoWallet()
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		var r *receipt
		if err := g.call(ctx, &r, types.MethodTransactionReceipt, hash); err != nil {
			return nil, err
		}

		if r != nil && r.BlockNumber != nil {
			return &Settlement{
				Hash:        hash,
				Success:     uint64(r.Status) == ethtypes.ReceiptStatusSuccessful,
				BlockNumber: r.BlockNumber.ToInt().Uint64(),
				GasUsed:     uint64(r.GasUsed),
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
