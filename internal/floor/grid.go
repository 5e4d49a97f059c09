package floor

import (
	"fmt"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/model"
)

// GenerateGrid lays out the initial inventory: for every configured
// rectangle, perTier[code] cells of each tier numbered 1..n.  Tiers with
// no entry get no cells.  The result is in scan order and ready for
// CellRepo.SeedBulk.
func GenerateGrid(cfg config.FloorConfig, perTier map[string]int) ([]model.Cell, error) {
	for code, n := range perTier {
		if _, ok := cfg.TierByCode(code); !ok {
			return nil, fmt.Errorf("unknown tier %q", code)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative cell count for tier %s", code)
		}
	}

	var cells []model.Cell
	for _, rect := range cfg.Rectangles {
		for _, t := range cfg.Tiers {
			n := perTier[t.Code]
			for seq := 1; seq <= n; seq++ {
				cells = append(cells, model.Cell{
					ID:          model.CellID(rect, t.Code, seq),
					RectangleID: rect,
					Seq:         seq,
					CellType:    t.Code,
					AreaSize:    t.Area,
					Status:      model.StatusAvailable,
				})
			}
		}
	}
	return cells, nil
}
