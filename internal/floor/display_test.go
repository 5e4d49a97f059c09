package floor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/model"
)

func TestGenerateGrid(t *testing.T) {
	cfg := config.DefaultFloor()
	cfg.Rectangles = []string{"A", "B"}

	cells, err := GenerateGrid(cfg, map[string]int{"F": 2, "Q": 1})
	require.NoError(t, err)
	ids := make([]string, 0, len(cells))
	for _, c := range cells {
		ids = append(ids, c.ID)
		assert.Equal(t, model.StatusAvailable, c.Status)
	}
	assert.Equal(t, []string{"A-F-0001", "A-F-0002", "A-Q-0001", "B-F-0001", "B-F-0002", "B-Q-0001"}, ids)
	assert.Equal(t, model.Area(2500), cells[2].AreaSize)

	_, err = GenerateGrid(cfg, map[string]int{"X": 1})
	assert.Error(t, err)
	_, err = GenerateGrid(cfg, map[string]int{"F": -1})
	assert.Error(t, err)
}

func TestSnapshotGroupsByPriorityAndTier(t *testing.T) {
	cfg := config.DefaultFloor()
	cfg.Rectangles = []string{"B", "A"}
	svc, _ := newTestService(t, cfg, map[string]int{"F": 1, "H": 1, "Q": 2})
	ctx := context.Background()

	_, err := svc.Allocate(ctx, pledge("P-1", 60000))
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Rectangles, 2)
	assert.Equal(t, fixedNow, snap.GeneratedAt)

	b := snap.Rectangles[0]
	assert.Equal(t, "B", b.RectangleID)
	assert.Equal(t, 4, b.TotalCells)
	assert.Equal(t, 2, b.OccupiedCells)
	assert.Equal(t, model.Area(15000), b.OccupiedArea)
	require.Len(t, b.Tiers, 3)
	assert.Equal(t, "F", b.Tiers[0].CellType)
	assert.Equal(t, "H", b.Tiers[1].CellType)
	assert.Equal(t, "Q", b.Tiers[2].CellType)
	assert.Equal(t, "B-Q-0001", b.Tiers[2].Cells[0].ID)
	assert.Equal(t, "B-Q-0002", b.Tiers[2].Cells[1].ID)

	a := snap.Rectangles[1]
	assert.Equal(t, "A", a.RectangleID)
	assert.Zero(t, a.OccupiedCells)
}

func TestStats(t *testing.T) {
	svc, _ := newTestService(t, config.DefaultFloor(), map[string]int{"F": 1, "H": 1, "Q": 1})
	ctx := context.Background()

	_, err := svc.Allocate(ctx, pledge("P-1", 40000))
	require.NoError(t, err)
	_, err = svc.Allocate(ctx, AllocationRequest{Identity: model.PaymentIdentity("PAY-1"), PackageID: "quarter", Status: model.StatusPaid})
	require.NoError(t, err)
	require.NoError(t, svc.SetBlocked(ctx, "D-H-0001", true))

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		TotalCells:         12,
		AvailableCells:     9,
		PledgedCells:       1,
		PaidCells:          1,
		BlockedCells:       1,
		TotalArea:          4 * 17500,
		TotalAreaAllocated: 12500,
	}, st)
}
