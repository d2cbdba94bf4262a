package types

import (
	"fmt"
	"strings"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
	CodeInternal          = -32603
)

// ProviderError is an error returned by the wallet capability. It satisfies
// go-ethereum's rpc.Error and rpc.DataError interfaces.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) ErrorCode() int {
	return e.Code
}

func (e *ProviderError) ErrorData() any {
	return e.Data
}

// TransportError is a client-library failure carrying a symbolic code and an
// optional reason, e.g. {Code: "INSUFFICIENT_FUNDS", Reason: "..."}.
type TransportError struct {
	Code    string
	Reason  string
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return ""
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) ErrorSymbol() string {
	return e.Code
}

func (e *TransportError) ErrorReason() string {
	return e.Reason
}

// ErrorKind is the closed set of user-facing error categories
type ErrorKind string

const (
	KindUserRejected        ErrorKind = "USER_REJECTED"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindUnsupportedMethod   ErrorKind = "UNSUPPORTED_METHOD"
	KindWalletDisconnected  ErrorKind = "WALLET_DISCONNECTED"
	KindChainDisconnected   ErrorKind = "CHAIN_DISCONNECTED"
	KindUnrecognizedChain   ErrorKind = "UNRECOGNIZED_CHAIN"
	KindInsufficientFunds   ErrorKind = "INSUFFICIENT_FUNDS"
	KindGasEstimationFailed ErrorKind = "GAS_ESTIMATION_FAILED"
	KindNonceError          ErrorKind = "NONCE_ERROR"
	KindNetworkError        ErrorKind = "NETWORK_ERROR"
	KindUnknown             ErrorKind = "UNKNOWN"

	// Not produced by classification: a mined transfer that reverted.
	KindExecutionFailed ErrorKind = "EXECUTION_FAILED"
)

// ClassifiedError is a provider or transport failure mapped into an ErrorKind.
type ClassifiedError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *ClassifiedError) Error() string {
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Is matches any ClassifiedError of the same kind.
func (e *ClassifiedError) Is(target error) bool {
	t, ok := target.(*ClassifiedError)
	return ok && t.Kind == e.Kind
}

// ValidationError is a local input problem. It never reaches the network.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FormErrors holds at most one validation error per form field.
type FormErrors struct {
	Recipient *ValidationError `json:"recipient,omitempty"`
	Amount    *ValidationError `json:"amount,omitempty"`
}

// Empty reports whether both fields passed validation
func (f FormErrors) Empty() bool {
	return f.Recipient == nil && f.Amount == nil
}

func (f FormErrors) Error() string {
	parts := make([]string, 0, 2)
	if f.Recipient != nil {
		parts = append(parts, f.Recipient.Error())
	}
	if f.Amount != nil {
		parts = append(parts, f.Amount.Error())
	}
	return strings.Join(parts, "; ")
}

// WalletError is returned for configuration and wiring problems
type WalletError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e WalletError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrConfigError        = "CONFIG_ERROR"
	ErrWalletNotFound     = "WALLET_NOT_FOUND"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrNotConnected       = "NOT_CONNECTED"
)
