package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/walletsession"
	"github.com/vitwit/walletsession/gateway/gatewaytest"
	"github.com/vitwit/walletsession/types"
)

func TestPrintStatusShowsChecksummedAccount(t *testing.T) {
	w := gatewaytest.NewWallet("MetaMask")
	w.Return(types.MethodAccounts, []string{"0x8ba1f109551bd432803012645ac136ddd64dba72"})
	w.Return(types.MethodChainID, "0x1")
	w.Return(types.MethodGetBalance, "0x0")

	core, err := walletsession.New(w, walletsession.DefaultConfig())
	require.NoError(t, err)
	defer core.Close()
	core.CheckExistingConnection(context.Background())

	var out bytes.Buffer
	require.NoError(t, printStatus(&runtime{core: core, out: &out}))

	var got statusOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "0x8ba1f109551bD432803012645Ac136ddd64DBA72", got.Account)
	assert.Equal(t, "0x8ba1f109551bd432803012645ac136ddd64dba72", got.Session.Address)
	assert.True(t, got.WrongNetwork)
	assert.Equal(t, "Sepolia (0xaa36a7)", got.TargetNetwork)
}

func TestPrintStatusDisconnected(t *testing.T) {
	core, err := walletsession.New(nil, walletsession.DefaultConfig())
	require.NoError(t, err)
	defer core.Close()

	var out bytes.Buffer
	require.NoError(t, printStatus(&runtime{core: core, out: &out}))
	assert.NotContains(t, out.String(), `"account"`)
}
