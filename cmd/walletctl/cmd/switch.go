package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Connect and move the wallet to the target network",
	Long: `Connects, then asks the wallet to switch to the configured target network.
A network the wallet does not know is added from the configuration first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if err := rt.core.Connect(ctx); err != nil {
			return err
		}

		if !rt.core.IsWrongNetwork() {
			fmt.Fprintln(rt.out, "already on the target network")
			return printStatus(rt)
		}

		if err := rt.core.SwitchNetwork(ctx); err != nil {
			return err
		}
		return printStatus(rt)
	},
}

func init() {
	rootCmd.AddCommand(switchCmd)
}
