package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/floor-allocation/internal/floor"
)

var seedPerTier map[string]int

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate an empty inventory with the cell grid",
		Long: `The seed command creates every cell of the floor once: for each
configured rectangle, the given number of cells per tier, numbered from 1.
It refuses to run against an inventory that already has cells.

Example:
  floorctl seed --per-tier F=40,H=40,Q=80`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
	cmd.Flags().StringToIntVar(&seedPerTier, "per-tier", nil, "Cells per tier code in every rectangle, e.g. F=40,H=40,Q=80")
	_ = cmd.MarkFlagRequired("per-tier")
	rootCmd.AddCommand(cmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.svc.Stats(ctx)
	if err != nil {
		return err
	}
	if st.TotalCells > 0 {
		return fmt.Errorf("inventory already holds %d cells; seeding runs once", st.TotalCells)
	}
	cells, err := floor.GenerateGrid(e.svc.Config(), seedPerTier)
	if err != nil {
		return err
	}
	if err := e.svc.Repo().SeedBulk(ctx, cells); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	fmt.Printf("seeded %d cells across %d rectangles\n", len(cells), len(e.svc.Config().Rectangles))
	return nil
}
