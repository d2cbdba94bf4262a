// Package classify maps wallet, RPC and transport failures into the closed
// set of user-facing error kinds defined in the types package.
package classify

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vitwit/walletsession/types"
)

// MaxMessageLength bounds raw messages surfaced as Unknown errors
const MaxMessageLength = 100

const (
	ellipsis       = "..."
	unknownMessage = "An unknown error occurred"
)

// symbolic is implemented by errors carrying a string code such as "ACTION_REJECTED".
type symbolic interface {
	ErrorSymbol() string
}

// reasoner is implemented by errors carrying an explicit human-readable reason.
type reasoner interface {
	ErrorReason() string
}

var messages = map[types.ErrorKind]string{
	types.KindUserRejected:        "Request was rejected in the wallet",
	types.KindUnauthorized:        "Wallet is not authorized. Please connect your wallet",
	types.KindUnsupportedMethod:   "This operation is not supported by the wallet",
	types.KindWalletDisconnected:  "Wallet is disconnected",
	types.KindChainDisconnected:   "Wallet is not connected to the requested network",
	types.KindUnrecognizedChain:   "Network is not recognized by the wallet. Please add it first",
	types.KindInsufficientFunds:   "Insufficient funds to cover the amount and network fees",
	types.KindGasEstimationFailed: "Gas estimation failed. The transaction would likely fail",
	types.KindNonceError:          "Transaction nonce is out of sync. Please try again",
	types.KindNetworkError:        "Network error. Please check your connection and try again",
}

var numericCodes = map[int]types.ErrorKind{
	types.CodeUserRejected:      types.KindUserRejected,
	types.CodeUnauthorized:      types.KindUnauthorized,
	types.CodeUnsupportedMethod: types.KindUnsupportedMethod,
	types.CodeDisconnected:      types.KindWalletDisconnected,
	types.CodeChainDisconnected: types.KindChainDisconnected,
	types.CodeUnrecognizedChain: types.KindUnrecognizedChain,
}

var symbolicCodes = map[string]types.ErrorKind{
	"ACTION_REJECTED":         types.KindUserRejected,
	"USER_REJECTED":           types.KindUserRejected,
	"UNAUTHORIZED":            types.KindUnauthorized,
	"UNSUPPORTED_OPERATION":   types.KindUnsupportedMethod,
	"INSUFFICIENT_FUNDS":      types.KindInsufficientFunds,
	"UNPREDICTABLE_GAS_LIMIT": types.KindGasEstimationFailed,
	"NONCE_EXPIRED":           types.KindNonceError,
	"REPLACEMENT_UNDERPRICED": types.KindNonceError,
	"NETWORK_ERROR":           types.KindNetworkError,
	"TIMEOUT":                 types.KindNetworkError,
	"SERVER_ERROR":            types.KindNetworkError,
}

// Message patterns, checked in this order.
var patterns = []struct {
	kind    types.ErrorKind
	phrases []string
}{
	{types.KindUserRejected, []string{"user rejected", "user denied", "rejected by user", "user cancelled", "user canceled"}},
	{types.KindInsufficientFunds, []string{"insufficient funds", "insufficient balance"}},
	{types.KindGasEstimationFailed, []string{"gas required exceeds", "cannot estimate gas", "gas estimation", "out of gas", "intrinsic gas too low"}},
	{types.KindNonceError, []string{"nonce too low", "nonce too high", "nonce has already been used", "invalid nonce", "replacement transaction underpriced"}},
	{types.KindNetworkError, []string{"network error", "failed to fetch", "connection refused", "could not detect network", "timeout", "timed out", "no such host"}},
}

// Classify maps err into a ClassifiedError. It returns nil for a nil error and
// returns err unchanged when it is already classified.
func Classify(err error) *types.ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *types.ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	if kind, ok := kindFromCode(err); ok {
		return newClassified(kind, err)
	}

	msg := err.Error()
	if kind, ok := kindFromMessage(msg); ok {
		return newClassified(kind, err)
	}

	var r reasoner
	if errors.As(err, &r) && r.ErrorReason() != "" {
		return &types.ClassifiedError{Kind: types.KindUnknown, Message: r.ErrorReason(), Cause: err}
	}

	if msg != "" {
		return &types.ClassifiedError{Kind: types.KindUnknown, Message: truncate(msg), Cause: err}
	}

	return &types.ClassifiedError{Kind: types.KindUnknown, Message: unknownMessage, Cause: err}
}

// MessageFor returns the default user-facing message for a kind
func MessageFor(kind types.ErrorKind) string {
	if m, ok := messages[kind]; ok {
		return m
	}
	return unknownMessage
}

func newClassified(kind types.ErrorKind, cause error) *types.ClassifiedError {
	return &types.ClassifiedError{Kind: kind, Message: MessageFor(kind), Cause: cause}
}

func kindFromCode(err error) (types.ErrorKind, bool) {
	var coded rpc.Error
	if errors.As(err, &coded) {
		if kind, ok := numericCodes[coded.ErrorCode()]; ok {
			return kind, true
		}
	}

	var sym symbolic
	if errors.As(err, &sym) {
		if kind, ok := symbolicCodes[strings.ToUpper(sym.ErrorSymbol())]; ok {
			return kind, true
		}
	}

	return "", false
}

func kindFromMessage(msg string) (types.ErrorKind, bool) {
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		for _, phrase := range p.phrases {
			if strings.Contains(lower, phrase) {
				return p.kind, true
			}
		}
	}
	return "", false
}

func truncate(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxMessageLength {
		return msg
	}
	return string(runes[:MaxMessageLength]) + ellipsis
}
