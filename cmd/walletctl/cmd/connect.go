package cmd

import (
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Request account access and show the resulting session",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.core.Connect(cmd.Context()); err != nil {
			return err
		}
		return printStatus(rt)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
