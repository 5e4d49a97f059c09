package floor

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/model"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestService opens a fresh SQLite inventory seeded with perTier cells
// of each tier in every rectangle of cfg.
func newTestService(t *testing.T, cfg config.FloorConfig, perTier map[string]int, opts ...Option) (*Service, *sql.DB) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "floor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db, database.SQLite))

	cells, err := GenerateGrid(cfg, perTier)
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := NewService(db, database.SQLite, cfg, opts...)
	require.NoError(t, svc.Repo().SeedBulk(ctx, cells))
	return svc, db
}

// newMySQLTestService runs against the MySQL database named by the
// FLOOR_TEST_MYSQL_* variables, emptying floor_cells first.  The test is
// skipped when FLOOR_TEST_MYSQL_HOST is unset.
func newMySQLTestService(t *testing.T, cfg config.FloorConfig, perTier map[string]int) *Service {
	t.Helper()
	host := os.Getenv("FLOOR_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("FLOOR_TEST_MYSQL_HOST not set")
	}
	port := os.Getenv("FLOOR_TEST_MYSQL_PORT")
	if port == "" {
		port = "3306"
	}
	db, err := database.Open(os.Getenv("FLOOR_TEST_MYSQL_USER"), os.Getenv("FLOOR_TEST_MYSQL_PASS"),
		host, port, os.Getenv("FLOOR_TEST_MYSQL_NAME"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db, database.MySQL))
	_, err = db.ExecContext(ctx, `DELETE FROM floor_cells`)
	require.NoError(t, err)

	cells, err := GenerateGrid(cfg, perTier)
	require.NoError(t, err)
	svc := NewService(db, database.MySQL, cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, svc.Repo().SeedBulk(ctx, cells))
	return svc
}

func pledge(ref string, pence int64) AllocationRequest {
	return AllocationRequest{
		Identity:    model.PledgeIdentity(ref),
		AmountPence: pence,
		DonorName:   "Donor " + ref,
		Status:      model.StatusPledged,
	}
}

// cellsOf returns every cell of the inventory keyed by id.
func cellsOf(t *testing.T, svc *Service) map[string]model.Cell {
	t.Helper()
	all, err := svc.Repo().ListAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]model.Cell, len(all))
	for _, c := range all {
		out[c.ID] = c
	}
	return out
}

// recorder collects notifier events.
type recorder struct{ events []Event }

func (r *recorder) Notify(_ context.Context, ev Event) { r.events = append(r.events, ev) }

func (r *recorder) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
