package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/walletsession/types"
)

const (
	addrA = "0x8ba1f109551bd432803012645ac136ddd64dba72"
	addrB = "0x1111111111111111111111111111111111111111"
)

func connected() State {
	return State{
		Session: types.Session{
			Status:  types.SessionConnected,
			Address: addrA,
			ChainID: "0xaa36a7",
			Balance: "1.5",
		},
		Attempt: 1,
	}
}

func TestConnectRequested(t *testing.T) {
	prevErr := &types.ClassifiedError{Kind: types.KindUserRejected, Message: "rejected"}
	s := State{Session: types.Session{Status: types.SessionDisconnected, LastError: prevErr}}

	next, effects := Transition(s, ConnectRequested{})
	assert.Equal(t, types.SessionConnecting, next.Session.Status)
	assert.Nil(t, next.Session.LastError)
	assert.Equal(t, uint64(1), next.Attempt)
	assert.Equal(t, []Effect{RunConnect{Attempt: 1}}, effects)
}

func TestConnectRequestedIgnoredUnlessDisconnected(t *testing.T) {
	connecting := State{Session: types.Session{Status: types.SessionConnecting}, Attempt: 3}
	next, effects := Transition(connecting, ConnectRequested{})
	assert.Equal(t, connecting, next)
	assert.Empty(t, effects)

	next, effects = Transition(connected(), ConnectRequested{})
	assert.Equal(t, connected(), next)
	assert.Empty(t, effects)
}

func TestConnectSucceeded(t *testing.T) {
	s := State{Session: types.Session{Status: types.SessionConnecting}, Attempt: 2}

	next, effects := Transition(s, ConnectSucceeded{Attempt: 2, Address: "0x8BA1F109551BD432803012645AC136DDD64DBA72", ChainID: "0xAA36A7", Balance: "3"})
	assert.Equal(t, types.Session{Status: types.SessionConnected, Address: addrA, ChainID: "0xaa36a7", Balance: "3"}, next.Session)
	require.Len(t, effects, 2)
	assert.Equal(t, ActivateEvents{}, effects[0])
	assert.Equal(t, types.LevelSuccess, effects[1].(Notify).Notification.Level)
}

func TestStaleConnectResultsAreDiscarded(t *testing.T) {
	s := State{Session: types.Session{Status: types.SessionConnecting}, Attempt: 2}

	next, effects := Transition(s, ConnectSucceeded{Attempt: 1, Address: addrA, ChainID: "0x1"})
	assert.Equal(t, s, next)
	assert.Empty(t, effects)

	next, effects = Transition(s, ConnectFailed{Attempt: 1, Err: &types.ClassifiedError{Kind: types.KindUnknown}})
	assert.Equal(t, s, next)
	assert.Empty(t, effects)

	// a result arriving after a local disconnect
	disconnected := State{Session: types.Session{Status: types.SessionDisconnected}, Attempt: 2}
	next, _ = Transition(disconnected, ConnectSucceeded{Attempt: 2, Address: addrA, ChainID: "0x1"})
	assert.Equal(t, types.SessionDisconnected, next.Session.Status)
}

func TestConnectFailedStoresError(t *testing.T) {
	s := State{Session: types.Session{Status: types.SessionConnecting}, Attempt: 1}
	classified := &types.ClassifiedError{Kind: types.KindUserRejected, Message: "Request was rejected in the wallet"}

	next, effects := Transition(s, ConnectFailed{Attempt: 1, Err: classified})
	assert.Equal(t, types.Session{Status: types.SessionDisconnected, LastError: classified}, next.Session)
	require.Len(t, effects, 1)
	n := effects[0].(Notify).Notification
	assert.Equal(t, types.LevelError, n.Level)
	assert.Equal(t, classified.Message, n.Message)
}

func TestDisconnectRequestedClearsEverything(t *testing.T) {
	s := connected()
	s.Session.LastError = &types.ClassifiedError{Kind: types.KindUnknown}

	next, effects := Transition(s, DisconnectRequested{})
	assert.Equal(t, types.Session{Status: types.SessionDisconnected}, next.Session)
	require.Len(t, effects, 2)
	assert.Equal(t, DeactivateEvents{}, effects[0])

	_, effects = Transition(next, DisconnectRequested{})
	assert.Equal(t, []Effect{DeactivateEvents{}}, effects)
}

func TestAccountsChangedEmptyResets(t *testing.T) {
	next, effects := Transition(connected(), AccountsChanged{Accounts: []string{}})
	assert.Equal(t, types.Session{Status: types.SessionDisconnected}, next.Session)
	require.Len(t, effects, 2)
	assert.Equal(t, DeactivateEvents{}, effects[0])
	assert.Equal(t, types.LevelWarning, effects[1].(Notify).Notification.Level)
}

func TestAccountsChangedNewAddress(t *testing.T) {
	next, effects := Transition(connected(), AccountsChanged{Accounts: []string{addrB, addrA}})
	assert.Equal(t, addrB, next.Session.Address)
	assert.Empty(t, next.Session.Balance)
	assert.Equal(t, "0xaa36a7", next.Session.ChainID)
	require.NotEmpty(t, effects)
	assert.Equal(t, FetchBalance{Address: addrB}, effects[0])
}

func TestAccountsChangedSameAddressIsNoop(t *testing.T) {
	next, effects := Transition(connected(), AccountsChanged{Accounts: []string{"0x8BA1F109551BD432803012645AC136DDD64DBA72"}})
	assert.Equal(t, connected(), next)
	assert.Empty(t, effects)
}

func TestChainChanged(t *testing.T) {
	next, effects := Transition(connected(), ChainChanged{ChainID: "0x89"})
	assert.Equal(t, "0x89", next.Session.ChainID)
	assert.Equal(t, addrA, next.Session.Address)
	assert.Empty(t, next.Session.Balance)
	require.NotEmpty(t, effects)
	assert.Equal(t, FetchBalance{Address: addrA}, effects[0])
}

func TestEventsIgnoredWhileNotConnected(t *testing.T) {
	for _, status := range []types.SessionStatus{types.SessionDisconnected, types.SessionConnecting} {
		s := State{Session: types.Session{Status: status}, Attempt: 1}
		for _, in := range []Input{
			AccountsChanged{Accounts: []string{addrA}},
			AccountsChanged{Accounts: nil},
			ChainChanged{ChainID: "0x1"},
			BalanceFetched{Address: addrA, Balance: "1"},
		} {
			next, effects := Transition(s, in)
			assert.Equal(t, s, next, "%s %T", status, in)
			assert.Empty(t, effects)
		}
	}
}

func TestProviderDisconnected(t *testing.T) {
	cause := &types.ClassifiedError{Kind: types.KindWalletDisconnected, Message: "Wallet is disconnected"}
	next, effects := Transition(connected(), ProviderDisconnected{Err: cause})
	assert.Equal(t, types.Session{Status: types.SessionDisconnected}, next.Session)
	require.Len(t, effects, 2)
	assert.Equal(t, cause.Message, effects[1].(Notify).Notification.Message)

	_, effects = Transition(next, ProviderDisconnected{Err: cause})
	assert.Empty(t, effects)
}

func TestBalanceFetched(t *testing.T) {
	next, effects := Transition(connected(), BalanceFetched{Address: addrA, Balance: "9.75"})
	assert.Equal(t, "9.75", next.Session.Balance)
	assert.Empty(t, effects)

	// balance for an account that is no longer active
	next, _ = Transition(connected(), BalanceFetched{Address: addrB, Balance: "100"})
	assert.Equal(t, "1.5", next.Session.Balance)
}

func TestReconcile(t *testing.T) {
	next, effects := Transition(Initial(), ReconcileRequested{})
	assert.Equal(t, Initial(), next)
	assert.Equal(t, []Effect{RunReconcile{}}, effects)

	_, effects = Transition(connected(), ReconcileRequested{})
	assert.Empty(t, effects)

	next, effects = Transition(Initial(), ExistingConnectionFound{Address: addrA, ChainID: "0x1"})
	assert.Equal(t, types.Session{Status: types.SessionConnected, Address: addrA, ChainID: "0x1"}, next.Session)
	assert.Equal(t, []Effect{ActivateEvents{}}, effects)
	assert.Zero(t, next.Attempt, "silent reconnect does not start an attempt")

	connecting := State{Session: types.Session{Status: types.SessionConnecting}, Attempt: 1}
	next, _ = Transition(connecting, ExistingConnectionFound{Address: addrA, ChainID: "0x1"})
	assert.Equal(t, connecting, next)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	s := connected()
	before := s
	Transition(s, DisconnectRequested{})
	Transition(s, AccountsChanged{Accounts: []string{addrB}})
	assert.Equal(t, before, s)
}
