package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var markPaidPayment string

func init() {
	cmd := &cobra.Command{
		Use:   "mark-paid <pledge-ref>",
		Short: "Move a pledge's cells from pledged to paid",
		Long: `The mark-paid command records that a pledge has been paid. The cells
stay where they are; only their status changes. With --payment the
payment reference is stored next to the pledge so either reference can
later deallocate the donation.

Example:
  floorctl mark-paid P-1042 --payment PAY-77`,
		Args: cobra.ExactArgs(1),
		RunE: runMarkPaid,
	}
	cmd.Flags().StringVar(&markPaidPayment, "payment", "", "Payment reference to record")
	rootCmd.AddCommand(cmd)
}

func runMarkPaid(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	res, err := e.svc.MarkPaid(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(markPaidPayment))
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(res)
	}
	fmt.Printf("pledge:%s: %d of %d cell(s) moved to paid", res.PledgeRef, res.Transitioned, len(res.CellIDs))
	if res.PaymentRef != "" {
		fmt.Printf(" (payment %s)", res.PaymentRef)
	}
	fmt.Println()
	return nil
}
