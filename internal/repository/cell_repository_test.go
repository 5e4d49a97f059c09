package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/model"
	"github.com/iliyamo/floor-allocation/internal/repository"
)

func newRepo(t *testing.T) *repository.CellRepo {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "floor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db, database.SQLite))
	require.NoError(t, database.Migrate(ctx, db, database.SQLite), "migrate is repeatable")

	repo := repository.NewCellRepo(db, database.SQLite)
	var cells []model.Cell
	for _, rect := range []string{"A", "B"} {
		for seq := 1; seq <= 3; seq++ {
			cells = append(cells, model.Cell{ID: model.CellID(rect, "F", seq), RectangleID: rect, Seq: seq, CellType: "F", AreaSize: model.SquareMetre})
		}
	}
	require.NoError(t, repo.SeedBulk(ctx, cells))
	return repo
}

func inTx(t *testing.T, repo *repository.CellRepo, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func TestSeedBulkRejectsDuplicateSlots(t *testing.T) {
	repo := newRepo(t)
	err := repo.SeedBulk(context.Background(), []model.Cell{{ID: "A-F-0001", RectangleID: "A", Seq: 1, CellType: "F", AreaSize: 1}})
	assert.Error(t, err)

	all, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestLockAvailableOrdersBySequence(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	inTx(t, repo, func(tx *sql.Tx) {
		n, err := repo.AssignTx(ctx, tx, []string{"A-F-0001"}, repository.Assignment{
			Identity: model.PledgeIdentity("P-1"), Status: model.StatusPledged, AmountPence: 40000, AssignedAt: time.Now(),
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		cells, err := repo.LockAvailableTx(ctx, tx, "F", "A", 5)
		require.NoError(t, err)
		require.Len(t, cells, 2)
		assert.Equal(t, "A-F-0002", cells[0].ID)
		assert.Equal(t, "A-F-0003", cells[1].ID)

		cells, err = repo.LockAvailableTx(ctx, tx, "H", "A", 5)
		require.NoError(t, err)
		assert.Empty(t, cells)
	})
}

func TestAssignSkipsCellsNoLongerAvailable(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	a := repository.Assignment{Identity: model.PledgeIdentity("P-1"), Status: model.StatusPledged, AssignedAt: time.Now()}
	inTx(t, repo, func(tx *sql.Tx) {
		_, err := repo.AssignTx(ctx, tx, []string{"A-F-0001"}, a)
		require.NoError(t, err)

		a.Identity = model.PledgeIdentity("P-2")
		n, err := repo.AssignTx(ctx, tx, []string{"A-F-0001", "A-F-0002"}, a)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "the lost cell is reported through the row count")
	})
	c, err := repo.GetByID(ctx, "A-F-0001")
	require.NoError(t, err)
	assert.Equal(t, "P-1", *c.PledgeRef)
}

func TestMarkPaidKeepsExistingPaymentRef(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	inTx(t, repo, func(tx *sql.Tx) {
		_, err := repo.AssignTx(ctx, tx, []string{"B-F-0001", "B-F-0002"}, repository.Assignment{
			Identity: model.PledgeIdentity("P-1"), Status: model.StatusPledged, AssignedAt: time.Now(),
		})
		require.NoError(t, err)

		n, err := repo.MarkPaidTx(ctx, tx, "P-1", "")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		owned, err := repo.LockByIdentityTx(ctx, tx, model.PledgeIdentity("P-1"))
		require.NoError(t, err)
		require.Len(t, owned, 2)
		for _, c := range owned {
			assert.Equal(t, model.StatusPaid, c.Status)
			assert.Nil(t, c.PaymentRef)
		}
	})
}

func TestReleaseLeavesBlockedCells(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	inTx(t, repo, func(tx *sql.Tx) {
		require.NoError(t, repo.SetStatusTx(ctx, tx, "A-F-0003", model.StatusAvailable, model.StatusBlocked))
		assert.ErrorIs(t, repo.SetStatusTx(ctx, tx, "A-F-0003", model.StatusAvailable, model.StatusBlocked), repository.ErrConflict)

		n, err := repo.ReleaseTx(ctx, tx, []string{"A-F-0003"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	totals, err := repo.TotalsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repository.StatusTotal{
		{Status: model.StatusAvailable, Cells: 5, Area: 5 * model.SquareMetre},
		{Status: model.StatusBlocked, Cells: 1, Area: model.SquareMetre},
	}, totals)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.GetByID(context.Background(), "Z-F-0001")
	assert.ErrorIs(t, err, repository.ErrCellNotFound)
}

func TestIsOrphan(t *testing.T) {
	ref := "X"
	assert.True(t, repository.IsOrphan(model.Cell{Status: model.StatusAvailable, PledgeRef: &ref}))
	assert.True(t, repository.IsOrphan(model.Cell{Status: model.StatusPaid}))
	assert.False(t, repository.IsOrphan(model.Cell{Status: model.StatusPaid, PaymentRef: &ref}))
	assert.False(t, repository.IsOrphan(model.Cell{Status: model.StatusBlocked}))
	assert.False(t, repository.IsOrphan(model.Cell{Status: model.StatusAvailable}))
}
