package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send native currency from the wallet account",
	Example: `  walletctl send --to 0x8ba1f109551bD432803012645Ac136ddd64DBA72 --amount 0.01
  walletctl send --to 0x8ba1f109551bD432803012645Ac136ddd64DBA72 --amount 0.01 --wait=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		amount, _ := cmd.Flags().GetString("amount")
		wait, _ := cmd.Flags().GetBool("wait")

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if err := rt.core.Connect(ctx); err != nil {
			return err
		}

		if err := rt.core.Send(ctx, to, amount); err != nil {
			return err
		}

		if wait {
			rt.core.WaitForTransfer()
		}

		t := rt.core.Transfer()
		if err := printJSON(rt.out, t); err != nil {
			return err
		}
		if url := rt.core.ExplorerURL(t.Handle); url != "" {
			fmt.Fprintf(rt.out, "Tx URL: %s\n", url)
		}
		if t.Error != nil {
			return t.Error
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("to", "", "recipient address")
	sendCmd.Flags().String("amount", "", "amount in the native currency, e.g. 0.01")
	sendCmd.Flags().Bool("wait", true, "wait for the transfer to be mined")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")
}
