package floor

import (
	"context"
	"database/sql"

	"github.com/iliyamo/floor-allocation/internal/model"
)

// availableLocker is the slice of the cell repository the filler needs.
type availableLocker interface {
	LockAvailableTx(ctx context.Context, tx *sql.Tx, cellType, rectangleID string, limit int) ([]model.Cell, error)
}

// filler picks concrete cells for a list of tier requirements.  Scan
// order is rectangle priority first, then sequence number, so a tier is
// filled rectangle by rectangle and occupied cells stay a prefix of each
// rectangle's sequence.
type filler struct {
	cells      availableLocker
	rectangles []string
}

// fill selects and locks cells for every requirement.  It fails with an
// InsufficientSpaceError as soon as one tier runs short; the caller rolls
// the transaction back so no requirement is ever partly satisfied.
func (f filler) fill(ctx context.Context, tx *sql.Tx, reqs []Requirement) ([]model.Cell, error) {
	var picked []model.Cell
	for _, req := range reqs {
		got := 0
		for _, rect := range f.rectangles {
			if got == req.Count {
				break
			}
			cells, err := f.cells.LockAvailableTx(ctx, tx, req.Tier.Code, rect, req.Count-got)
			if err != nil {
				return nil, err
			}
			picked = append(picked, cells...)
			got += len(cells)
		}
		if got < req.Count {
			return nil, &InsufficientSpaceError{CellType: req.Tier.Code, Needed: req.Count, Available: got}
		}
	}
	return picked, nil
}
