package clients

import (
	"fmt"

	"github.com/vitwit/walletsession/types"
)

const (
	msgUserRejected     = "User rejected the request."
	msgUnauthorized     = "The requested account has not been authorized by the user."
	msgUnsupported      = "The requested method is not supported by this wallet."
	msgDisconnected     = "The wallet is disconnected from all chains."
	msgUnrecognizedHint = "Try adding the chain using wallet_addEthereumChain first."
)

func errUserRejected() error {
	return &types.ProviderError{Code: types.CodeUserRejected, Message: msgUserRejected}
}

func errUnauthorized() error {
	return &types.ProviderError{Code: types.CodeUnauthorized, Message: msgUnauthorized}
}

func errUnsupportedMethod(method string) error {
	return &types.ProviderError{
		Code:    types.CodeUnsupportedMethod,
		Message: msgUnsupported,
		Data:    map[string]string{"method": method},
	}
}

func errDisconnected() error {
	return &types.ProviderError{Code: types.CodeDisconnected, Message: msgDisconnected}
}

func errUnrecognizedChain(chainID string) error {
	return &types.ProviderError{
		Code:    types.CodeUnrecognizedChain,
		Message: fmt.Sprintf("Unrecognized chain ID %q. %s", chainID, msgUnrecognizedHint),
	}
}

func errInvalidParams(method string, err error) error {
	return &types.ProviderError{
		Code:    types.CodeInvalidParams,
		Message: fmt.Sprintf("invalid params for %s: %v", method, err),
	}
}
