package types

// Wallet RPC methods consumed by the gateway
const (
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodAccounts           = "eth_accounts"
	MethodChainID            = "eth_chainId"
	MethodGetBalance         = "eth_getBalance"
	MethodSwitchChain        = "wallet_switchEthereumChain"
	MethodAddChain           = "wallet_addEthereumChain"
	MethodSendTransaction    = "eth_sendTransaction"
	MethodTransactionReceipt = "eth_getTransactionReceipt"
)

// RequestArguments is a single wallet request
type RequestArguments struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// EventKind names a provider-originated event
type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventDisconnect      EventKind = "disconnect"
)

func (k EventKind) String() string {
	return string(k)
}

// Event is the payload delivered to listeners. Only the field matching Kind
// is populated.
type Event struct {
	Kind     EventKind
	Accounts []string
	ChainID  string
	Err      error
}

// Listener handles a provider event
type Listener func(Event)

// ListenerID identifies one listener registration
type ListenerID uint64

// SendTransactionArgs is the eth_sendTransaction parameter object
type SendTransactionArgs struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// SwitchChainArgs is the wallet_switchEthereumChain parameter object
type SwitchChainArgs struct {
	ChainID string `json:"chainId"`
}
