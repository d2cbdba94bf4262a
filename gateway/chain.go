package gateway

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

// SwitchChain asks the wallet to move to target. When the wallet does not know
// the chain, the full configuration is offered through wallet_addEthereumChain
// instead; the switch itself is not retried.
func (g *Gateway) SwitchChain(ctx context.Context, target types.ChainConfig) error {
	if g.wallet == nil {
		return errNoWallet()
	}

	chainID := utils.NormalizeChainID(target.ChainID)
	err := g.call(ctx, nil, types.MethodSwitchChain, types.SwitchChainArgs{ChainID: chainID})
	if err == nil {
		return nil
	}

	if !isUnrecognizedChain(err) {
		return err
	}

	g.logger.Info("chain unknown to wallet, adding it", map[string]any{
		"chainId":   chainID,
		"chainName": target.ChainName,
	})

	return g.AddChain(ctx, target)
}

// AddChain offers a network configuration to the wallet.
func (g *Gateway) AddChain(ctx context.Context, target types.ChainConfig) error {
	if g.wallet == nil {
		return errNoWallet()
	}

	if err := utils.ValidateChainConfig(&target); err != nil {
		return err
	}

	target.ChainID = utils.NormalizeChainID(target.ChainID)
	return g.call(ctx, nil, types.MethodAddChain, target)
}

func isUnrecognizedChain(err error) bool {
	var coded rpc.Error
	return errors.As(err, &coded) && coded.ErrorCode() == types.CodeUnrecognizedChain
}
