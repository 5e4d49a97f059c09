package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var orphansRelease bool

func init() {
	orphans := &cobra.Command{
		Use:   "orphans",
		Short: "List cells whose status and references disagree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			ids, err := e.svc.FindOrphans(ctx)
			if err != nil {
				return err
			}
			if orphansRelease && len(ids) > 0 {
				if ids, err = e.svc.ReleaseOrphans(ctx, ids); err != nil {
					return err
				}
			}
			return printIDs(ids, orphansRelease)
		},
	}
	orphans.Flags().BoolVar(&orphansRelease, "release", false, "Reset every orphan found to available")

	release := &cobra.Command{
		Use:   "release <cell-id>...",
		Short: "Reset the given orphan cells to available",
		Long: `The release command resets cells to available, but only those that are
still orphans when locked. Cells owned by a live donation are never touched;
use the deallocation endpoint for those.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			ids, err := e.svc.ReleaseOrphans(ctx, args)
			if err != nil {
				return err
			}
			return printIDs(ids, true)
		},
	}
	rootCmd.AddCommand(orphans, release)
}

func printIDs(ids []string, released bool) error {
	if jsonOut {
		return printJSON(map[string]any{"cell_ids": ids, "released": released})
	}
	verb := "orphan"
	if released {
		verb = "released"
	}
	for _, id := range ids {
		fmt.Printf("%s %s\n", verb, id)
	}
	fmt.Printf("%d cell(s)\n", len(ids))
	return nil
}
