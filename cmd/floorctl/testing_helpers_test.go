package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/floor"
)

// useTestStore points floorctl at a fresh SQLite inventory seeded with
// perTier cells of each tier in every rectangle.
func useTestStore(t *testing.T, perTier map[string]int) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "floor.db"))
	t.Setenv("FLOOR_CONFIG", "")
	jsonOut, verbose, floorConfig = false, false, ""

	e, err := openEnv(context.Background())
	require.NoError(t, err)
	defer e.Close()
	cells, err := floor.GenerateGrid(config.DefaultFloor(), perTier)
	require.NoError(t, err)
	require.NoError(t, e.svc.Repo().SeedBulk(context.Background(), cells))
}

// withStore runs fn against the store configured by useTestStore.
func withStore(t *testing.T, fn func(e *env)) {
	t.Helper()
	e, err := openEnv(context.Background())
	require.NoError(t, err)
	defer e.Close()
	fn(e)
}

func testCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

// captureOutput runs fn with stdout redirected and returns what it wrote.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	_ = w.Close()
	os.Stdout = orig
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), fnErr
}
