// Package session tracks the wallet connection: status, active account,
// active chain and balance.
//
// State changes are computed by Transition, a pure function returning the next
// state and the effects to perform. Machine owns the current state, performs
// effects against the gateway and feeds their results back as new inputs.
package session

import (
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

// State is the session plus the bookkeeping needed to discard stale results.
type State struct {
	Session types.Session

	// Incremented on every connect attempt; results carry the attempt they
	// belong to.
	Attempt uint64
}

// Initial returns a disconnected session
func Initial() State {
	return State{Session: types.Session{Status: types.SessionDisconnected}}
}

// Input is anything that can move the session
type Input interface {
	input()
}

type (
	ConnectRequested struct{}

	ConnectSucceeded struct {
		Attempt uint64
		Address string
		ChainID string
		Balance string
	}

	ConnectFailed struct {
		Attempt uint64
		Err     *types.ClassifiedError
	}

	DisconnectRequested struct{}

	AccountsChanged struct {
		Accounts []string
	}

	ChainChanged struct {
		ChainID string
	}

	// ProviderDisconnected is the wallet's own disconnect event
	ProviderDisconnected struct {
		Err *types.ClassifiedError
	}

	BalanceFetched struct {
		Address string
		Balance string
	}

	ReconcileRequested struct{}

	ExistingConnectionFound struct {
		Address string
		ChainID string
		Balance string
	}
)

func (ConnectRequested) input()        {}
func (ConnectSucceeded) input()        {}
func (ConnectFailed) input()           {}
func (DisconnectRequested) input()     {}
func (AccountsChanged) input()         {}
func (ChainChanged) input()            {}
func (ProviderDisconnected) input()    {}
func (BalanceFetched) input()          {}
func (ReconcileRequested) input()      {}
func (ExistingConnectionFound) input() {}

// Effect is work the machine performs after a transition
type Effect interface {
	effect()
}

type (
	// RunConnect requests accounts, chain id and balance, in that order.
	RunConnect struct {
		Attempt uint64
	}

	FetchBalance struct {
		Address string
	}

	// RunReconcile looks for an already-authorized account without prompting.
	RunReconcile struct{}

	ActivateEvents struct{}

	DeactivateEvents struct{}

	Notify struct {
		Notification types.Notification
	}
)

func (RunConnect) effect()       {}
func (FetchBalance) effect()     {}
func (RunReconcile) effect()     {}
func (ActivateEvents) effect()   {}
func (DeactivateEvents) effect() {}
func (Notify) effect()           {}

// Transition computes the next state for in. It never mutates s.
func Transition(s State, in Input) (State, []Effect) {
	status := s.Session.Status

	switch in := in.(type) {
	case ConnectRequested:
		if status != types.SessionDisconnected {
			return s, nil
		}
		s.Attempt++
		s.Session = types.Session{Status: types.SessionConnecting}
		return s, []Effect{RunConnect{Attempt: s.Attempt}}

	case ConnectSucceeded:
		if status != types.SessionConnecting || in.Attempt != s.Attempt {
			return s, nil
		}
		s.Session = types.Session{
			Status:  types.SessionConnected,
			Address: utils.NormalizeAddress(in.Address),
			ChainID: utils.NormalizeChainID(in.ChainID),
			Balance: in.Balance,
		}
		return s, []Effect{
			ActivateEvents{},
			notify(types.LevelSuccess, "Wallet connected", s.Session.Address),
		}

	case ConnectFailed:
		if status != types.SessionConnecting || in.Attempt != s.Attempt {
			return s, nil
		}
		s.Session = types.Session{Status: types.SessionDisconnected, LastError: in.Err}
		return s, []Effect{notify(types.LevelError, "Connection failed", errMessage(in.Err))}

	case DisconnectRequested:
		s.Session = types.Session{Status: types.SessionDisconnected}
		effects := []Effect{DeactivateEvents{}}
		if status != types.SessionDisconnected {
			effects = append(effects, notify(types.LevelInfo, "Wallet disconnected", ""))
		}
		return s, effects

	case AccountsChanged:
		if status != types.SessionConnected {
			return s, nil
		}
		if len(in.Accounts) == 0 {
			s.Session = types.Session{Status: types.SessionDisconnected}
			return s, []Effect{
				DeactivateEvents{},
				notify(types.LevelWarning, "Wallet disconnected", "No accounts are available"),
			}
		}
		next := utils.NormalizeAddress(in.Accounts[0])
		if next == s.Session.Address {
			return s, nil
		}
		s.Session.Address = next
		s.Session.Balance = ""
		return s, []Effect{
			FetchBalance{Address: next},
			notify(types.LevelInfo, "Account changed", next),
		}

	case ChainChanged:
		if status != types.SessionConnected {
			return s, nil
		}
		s.Session.ChainID = utils.NormalizeChainID(in.ChainID)
		s.Session.Balance = ""
		return s, []Effect{
			FetchBalance{Address: s.Session.Address},
			notify(types.LevelInfo, "Network changed", s.Session.ChainID),
		}

	case ProviderDisconnected:
		if status == types.SessionDisconnected {
			return s, nil
		}
		s.Session = types.Session{Status: types.SessionDisconnected}
		return s, []Effect{
			DeactivateEvents{},
			notify(types.LevelWarning, "Wallet disconnected", errMessage(in.Err)),
		}

	case BalanceFetched:
		if status != types.SessionConnected || utils.NormalizeAddress(in.Address) != s.Session.Address {
			return s, nil
		}
		s.Session.Balance = in.Balance
		return s, nil

	case ReconcileRequested:
		if status != types.SessionDisconnected {
			return s, nil
		}
		return s, []Effect{RunReconcile{}}

	case ExistingConnectionFound:
		if status != types.SessionDisconnected {
			return s, nil
		}
		s.Session = types.Session{
			Status:  types.SessionConnected,
			Address: utils.NormalizeAddress(in.Address),
			ChainID: utils.NormalizeChainID(in.ChainID),
			Balance: in.Balance,
		}
		return s, []Effect{ActivateEvents{}}
	}

	return s, nil
}

func notify(level types.NotificationLevel, title, message string) Effect {
	return Notify{Notification: types.Notification{Level: level, Title: title, Message: message}}
}

func errMessage(err *types.ClassifiedError) string {
	if err == nil {
		return ""
	}
	return err.Message
}
