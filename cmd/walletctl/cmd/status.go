package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vitwit/walletsession/types"
	"github.com/vitwit/walletsession/utils"
)

type statusOutput struct {
	Session       types.Session `json:"session"`
	Account       string        `json:"account,omitempty"`
	TargetNetwork string        `json:"targetNetwork"`
	WrongNetwork  bool          `json:"wrongNetwork"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session without prompting the wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		rt.core.CheckExistingConnection(cmd.Context())
		return printStatus(rt)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(rt *runtime) error {
	target := rt.core.TargetNetwork()
	session := rt.core.Session()
	return printJSON(rt.out, statusOutput{
		Session:       session,
		Account:       utils.ChecksumAddress(session.Address),
		TargetNetwork: target.ChainName + " (" + target.ChainID + ")",
		WrongNetwork:  rt.core.IsWrongNetwork(),
	})
}
