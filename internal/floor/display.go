package floor

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/floor-allocation/internal/model"
)

// TierView is the cells of one tier in a rectangle, in scan order.
type TierView struct {
	CellType string       `json:"cell_type"`
	Cells    []model.Cell `json:"cells"`
}

// RectangleView groups a rectangle's cells by tier with occupancy totals.
type RectangleView struct {
	RectangleID   string     `json:"rectangle_id"`
	Tiers         []TierView `json:"tiers"`
	TotalCells    int        `json:"total_cells"`
	OccupiedCells int        `json:"occupied_cells"`
	OccupiedArea  model.Area `json:"occupied_area_cm2"`
}

// Snapshot is the read-only floor state for the display.
type Snapshot struct {
	Rectangles  []RectangleView `json:"rectangles"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Stats are the inventory aggregates for dashboards.  TotalAreaAllocated
// covers pledged and paid cells.
type Stats struct {
	TotalCells         int        `json:"total_cells"`
	AvailableCells     int        `json:"available_cells"`
	PledgedCells       int        `json:"pledged_cells"`
	PaidCells          int        `json:"paid_cells"`
	BlockedCells       int        `json:"blocked_cells"`
	TotalArea          model.Area `json:"total_area_cm2"`
	TotalAreaAllocated model.Area `json:"total_area_allocated_cm2"`
}

// Snapshot returns every cell grouped per rectangle and tier.  Rectangles
// follow the configured priority; rectangles present in the inventory
// but missing from the configuration come last in name order.  Tiers
// follow the configured largest-first order.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	cells, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "snapshot", Err: err}
	}
	byRect := lo.GroupBy(cells, func(c model.Cell) string { return c.RectangleID })

	order := lo.Filter(s.cfg.Rectangles, func(r string, _ int) bool { _, ok := byRect[r]; return ok })
	extra := lo.Without(lo.Keys(byRect), s.cfg.Rectangles...)
	sort.Strings(extra)
	order = append(order, extra...)

	tierRank := make(map[string]int, len(s.cfg.Tiers))
	for i, t := range s.cfg.Tiers {
		tierRank[t.Code] = i
	}

	out := &Snapshot{Rectangles: make([]RectangleView, 0, len(order)), GeneratedAt: s.now().UTC()}
	for _, rect := range order {
		rc := byRect[rect]
		byTier := lo.GroupBy(rc, func(c model.Cell) string { return c.CellType })
		codes := lo.Keys(byTier)
		sort.Slice(codes, func(i, j int) bool {
			ri, iok := tierRank[codes[i]]
			rj, jok := tierRank[codes[j]]
			if iok != jok {
				return iok
			}
			if ri != rj {
				return ri < rj
			}
			return codes[i] < codes[j]
		})
		occupied := lo.Filter(rc, func(c model.Cell, _ int) bool { return c.Status.Occupied() })
		view := RectangleView{
			RectangleID:   rect,
			TotalCells:    len(rc),
			OccupiedCells: len(occupied),
			OccupiedArea:  sumArea(occupied),
		}
		for _, code := range codes {
			tc := byTier[code]
			sort.Slice(tc, func(i, j int) bool { return tc[i].Seq < tc[j].Seq })
			view.Tiers = append(view.Tiers, TierView{CellType: code, Cells: tc})
		}
		out.Rectangles = append(out.Rectangles, view)
	}
	return out, nil
}

// Stats returns the inventory totals per status.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	totals, err := s.repo.TotalsByStatus(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "stats", Err: err}
	}
	st := &Stats{}
	for _, t := range totals {
		st.TotalCells += t.Cells
		st.TotalArea += t.Area
		switch t.Status {
		case model.StatusAvailable:
			st.AvailableCells = t.Cells
		case model.StatusPledged:
			st.PledgedCells = t.Cells
			st.TotalAreaAllocated += t.Area
		case model.StatusPaid:
			st.PaidCells = t.Cells
			st.TotalAreaAllocated += t.Area
		case model.StatusBlocked:
			st.BlockedCells = t.Cells
		}
	}
	return st, nil
}
