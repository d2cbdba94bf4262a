package types

import (
	"fmt"
	"strings"
	"time"
)

// SessionStatus represents the connection state of a wallet session
type SessionStatus string

const (
	SessionDisconnected SessionStatus = "disconnected"
	SessionConnecting   SessionStatus = "connecting"
	SessionConnected    SessionStatus = "connected"
)

func (s SessionStatus) String() string {
	return string(s)
}

// Session is the user's current wallet relationship.
//
// Address, ChainID and Balance are empty when absent. Address and ChainID are
// set iff Status is SessionConnected; Balance may be empty while a refresh is
// in flight.
type Session struct {
	Status    SessionStatus    `json:"status"`
	Address   string           `json:"address,omitempty"`
	ChainID   string           `json:"chainId,omitempty"`
	Balance   string           `json:"balance,omitempty"`
	LastError *ClassifiedError `json:"lastError,omitempty"`
}

// IsConnected reports whether the session holds an authorized account
func (s Session) IsConnected() bool {
	return s.Status == SessionConnected
}

// TransferStatus represents the lifecycle stage of an outbound transfer
type TransferStatus string

const (
	TransferIdle      TransferStatus = "idle"
	TransferSigning   TransferStatus = "signing"
	TransferBroadcast TransferStatus = "broadcast"
	TransferSettled   TransferStatus = "settled"
	TransferFailed    TransferStatus = "failed"
)

func (s TransferStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the attempt has a known outcome.
func (s TransferStatus) IsTerminal() bool {
	return s == TransferSettled || s == TransferFailed
}

// IsActive returns true while the attempt is waiting on the wallet or the chain.
func (s TransferStatus) IsActive() bool {
	return s == TransferSigning || s == TransferBroadcast
}

// Transfer is one outbound native-currency transaction attempt.
type Transfer struct {
	// Attempt identifier, assigned when the attempt starts signing.
	ID string `json:"id,omitempty"`

	Status TransferStatus `json:"status"`

	Recipient string `json:"recipient,omitempty"`

	// Decimal amount in the chain's native currency, as entered.
	Amount string `json:"amount,omitempty"`

	// Transaction hash, set once the wallet accepts the transfer.
	Handle string `json:"handle,omitempty"`

	// Classified failure, set only in TransferFailed.
	Error *ClassifiedError `json:"error,omitempty"`
}

// NativeCurrency describes a chain's base unit of value
type NativeCurrency struct {
	Name     string `json:"name" mapstructure:"name" validate:"required"`
	Symbol   string `json:"symbol" mapstructure:"symbol" validate:"required"`
	Decimals int    `json:"decimals" mapstructure:"decimals" validate:"required,min=0,max=36"`
}

// ChainConfig is the full description of a network, in the shape
// wallet_addEthereumChain expects.
type ChainConfig struct {
	ChainID           string         `json:"chainId" mapstructure:"chain_id" validate:"required,startswith=0x"`
	ChainName         string         `json:"chainName" mapstructure:"chain_name" validate:"required"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" mapstructure:"native_currency"`
	RPCURLs           []string       `json:"rpcUrls" mapstructure:"rpc_urls" validate:"required,min=1,dive,url"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty" mapstructure:"block_explorer_urls" validate:"omitempty,dive,url"`
}

// TxURL returns the explorer link for a transaction hash, or "" when the chain
// has no explorer configured.
func (c ChainConfig) TxURL(hash string) string {
	if len(c.BlockExplorerURLs) == 0 || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(c.BlockExplorerURLs[0], "/"), hash)
}

// Decimals returns the native currency precision, defaulting to 18.
func (c ChainConfig) Decimals() int {
	if c.NativeCurrency.Decimals <= 0 {
		return 18
	}
	return c.NativeCurrency.Decimals
}

// Config contains global configuration for the wallet session core
type Config struct {
	// Name the injected wallet must identify itself with.
	WalletName string `json:"walletName" mapstructure:"wallet_name" validate:"required"`

	// Network the dashboard expects the wallet to be on.
	TargetNetwork ChainConfig `json:"targetNetwork" mapstructure:"target_network"`

	// Additional networks the RPC wallet knows about.
	Networks []ChainConfig `json:"networks,omitempty" mapstructure:"networks" validate:"omitempty,dive"`

	// Interval between receipt lookups while a transfer is pending.
	PollInterval time.Duration `json:"pollInterval,omitempty" mapstructure:"poll_interval"`

	LogLevel      string `json:"logLevel,omitempty" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics bool   `json:"enableMetrics,omitempty" mapstructure:"enable_metrics"`

	// Hex private key used by the RPC-backed wallet.
	SignerKey string `json:"signerKey,omitempty" mapstructure:"signer_key" validate:"omitempty,hexadecimal"`

	// Grant account access without prompting.
	AutoApprove bool `json:"autoApprove,omitempty" mapstructure:"auto_approve"`
}

// NotificationLevel classifies a user-facing notification
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a presentation-agnostic message for the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message,omitempty"`
	TxHash  string            `json:"txHash,omitempty"`
}

// Notifier receives user-facing notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(Notification) {}
