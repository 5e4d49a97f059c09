package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show inventory totals per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			st, err := e.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(st)
			}
			fmt.Printf("cells:     %d (%s)\n", st.TotalCells, st.TotalArea)
			fmt.Printf("available: %d\n", st.AvailableCells)
			fmt.Printf("pledged:   %d\n", st.PledgedCells)
			fmt.Printf("paid:      %d\n", st.PaidCells)
			fmt.Printf("blocked:   %d\n", st.BlockedCells)
			fmt.Printf("allocated: %s\n", st.TotalAreaAllocated)
			return nil
		},
	})
}
