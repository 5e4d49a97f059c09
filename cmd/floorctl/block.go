package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newBlockCmd("block", true), newBlockCmd("unblock", false))
}

func newBlockCmd(use string, blocked bool) *cobra.Command {
	short := "Take an available cell out of allocation"
	if !blocked {
		short = "Return a blocked cell to the available pool"
	}
	return &cobra.Command{
		Use:   use + " <cell-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.svc.SetBlocked(cmd.Context(), args[0], blocked); err != nil {
				return err
			}
			fmt.Printf("%s: blocked=%t\n", args[0], blocked)
			return nil
		},
	}
}
