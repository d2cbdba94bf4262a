// Package transfer tracks a single outbound native-currency transfer from
// signing through settlement.
package transfer

import (
	"github.com/vitwit/walletsession/gateway"
	"github.com/vitwit/walletsession/types"
)

// ExecutionFailedMessage is reported when a mined transfer reverted
const ExecutionFailedMessage = "execution failed on chain"

// State is the current transfer attempt
type State struct {
	Transfer types.Transfer
}

func Initial() State {
	return State{Transfer: types.Transfer{Status: types.TransferIdle}}
}

type Input interface {
	input()
}

type (
	// SubmitRequested starts attempt ID. Fields are assumed valid.
	SubmitRequested struct {
		ID        string
		Recipient string
		Amount    string
	}

	// Prepared means the gateway's local checks passed for attempt ID.
	Prepared struct {
		ID      string
		Request *gateway.TransferRequest
	}

	Accepted struct {
		ID      string
		Pending *gateway.PendingTransfer
	}

	// SubmitInvalid means the gateway refused the input before contacting the
	// wallet; the attempt is abandoned without an error.
	SubmitInvalid struct {
		ID string
	}

	SubmitFailed struct {
		ID  string
		Err *types.ClassifiedError
	}

	Mined struct {
		ID         string
		Settlement gateway.Settlement
	}

	SettleFailed struct {
		ID  string
		Err *types.ClassifiedError
	}

	ResetRequested struct{}

	InputChanged struct{}
)

func (SubmitRequested) input() {}
func (Prepared) input()        {}
func (Accepted) input()        {}
func (SubmitInvalid) input()   {}
func (SubmitFailed) input()    {}
func (Mined) input()           {}
func (SettleFailed) input()    {}
func (ResetRequested) input()  {}
func (InputChanged) input()    {}

type Effect interface {
	effect()
}

type (
	Prepare struct {
		ID        string
		Recipient string
		Amount    string
	}

	Submit struct {
		ID      string
		Request *gateway.TransferRequest
	}

	AwaitSettlement struct {
		ID      string
		Pending *gateway.PendingTransfer
	}

	// Complete fires once per settled attempt
	Complete struct {
		Transfer types.Transfer
	}

	Notify struct {
		Notification types.Notification
	}
)

func (Prepare) effect()         {}
func (Submit) effect()          {}
func (AwaitSettlement) effect() {}
func (Complete) effect()        {}
func (Notify) effect()          {}

// Transition computes the next state for in. Results for an attempt other than
// the current one are ignored.
func Transition(s State, in Input) (State, []Effect) {
	t := s.Transfer

	switch in := in.(type) {
	case SubmitRequested:
		if t.Status.IsActive() {
			return s, nil
		}
		s.Transfer = types.Transfer{
			ID:        in.ID,
			Status:    types.TransferSigning,
			Recipient: in.Recipient,
			Amount:    in.Amount,
		}
		return s, []Effect{Prepare{ID: in.ID, Recipient: in.Recipient, Amount: in.Amount}}

	case Prepared:
		if t.Status != types.TransferSigning || t.ID != in.ID {
			return s, nil
		}
		return s, []Effect{
			notify(types.LevelInfo, "Confirm the transfer in your wallet", "", ""),
			Submit{ID: in.ID, Request: in.Request},
		}

	case Accepted:
		if t.Status != types.TransferSigning || t.ID != in.ID {
			return s, nil
		}
		s.Transfer.Status = types.TransferBroadcast
		s.Transfer.Handle = in.Pending.Hash
		return s, []Effect{
			AwaitSettlement{ID: in.ID, Pending: in.Pending},
			notify(types.LevelInfo, "Transfer submitted", "Waiting for confirmation", in.Pending.Hash),
		}

	case SubmitInvalid:
		if t.Status != types.TransferSigning || t.ID != in.ID {
			return s, nil
		}
		s.Transfer = types.Transfer{Status: types.TransferIdle}
		return s, nil

	case SubmitFailed:
		if t.Status != types.TransferSigning || t.ID != in.ID {
			return s, nil
		}
		return fail(s, in.Err)

	case Mined:
		if t.Status != types.TransferBroadcast || t.ID != in.ID {
			return s, nil
		}
		if !in.Settlement.Success {
			return fail(s, &types.ClassifiedError{Kind: types.KindExecutionFailed, Message: ExecutionFailedMessage})
		}
		s.Transfer.Status = types.TransferSettled
		return s, []Effect{
			Complete{Transfer: s.Transfer},
			notify(types.LevelSuccess, "Transfer confirmed", s.Transfer.Amount+" sent to "+s.Transfer.Recipient, s.Transfer.Handle),
		}

	case SettleFailed:
		if t.Status != types.TransferBroadcast || t.ID != in.ID {
			return s, nil
		}
		return fail(s, in.Err)

	case ResetRequested:
		if !t.Status.IsTerminal() {
			return s, nil
		}
		return Initial(), nil

	case InputChanged:
		if !t.Status.IsTerminal() {
			return s, nil
		}
		return Initial(), nil
	}

	return s, nil
}

func fail(s State, err *types.ClassifiedError) (State, []Effect) {
	s.Transfer.Status = types.TransferFailed
	s.Transfer.Error = err
	message := ""
	if err != nil {
		message = err.Message
	}
	return s, []Effect{notify(types.LevelError, "Transfer failed", message, s.Transfer.Handle)}
}

func notify(level types.NotificationLevel, title, message, hash string) Effect {
	return Notify{Notification: types.Notification{Level: level, Title: title, Message: message, TxHash: hash}}
}
