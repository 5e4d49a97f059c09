package floor

import (
	"fmt"
	"math"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/model"
)

// Requirement is a number of cells needed from one tier.
type Requirement struct {
	Tier  config.Tier
	Count int
}

// Area is the combined area of the requirement.
func (r Requirement) Area() model.Area { return r.Tier.Area * model.Area(r.Count) }

// Decomposer turns a donation into an exact multiset of cell tiers.  The
// tier set is validated at configuration time to be canonical, so the
// greedy largest-first pass is both exact and minimal.
type Decomposer struct {
	cfg config.FloorConfig
}

// NewDecomposer returns a Decomposer for a validated floor configuration.
func NewDecomposer(cfg config.FloorConfig) *Decomposer { return &Decomposer{cfg: cfg} }

// AreaForAmount converts a free-form amount in pence to floor area using
// the configured price per square metre.  Amounts that do not buy a whole
// number of smallest-tier cells are rejected, never rounded.
func (d *Decomposer) AreaForAmount(amountPence int64) (model.Area, error) {
	smallest := d.cfg.SmallestTier().Area
	if amountPence <= 0 {
		return 0, &DecompositionError{AmountPence: amountPence, Smallest: smallest, Reason: "amount must be positive"}
	}
	if amountPence > math.MaxInt64/int64(model.SquareMetre) {
		return 0, &DecompositionError{AmountPence: amountPence, Smallest: smallest, Reason: "amount too large"}
	}
	scaled := amountPence * int64(model.SquareMetre)
	if scaled%d.cfg.PricePerSqMetrePence != 0 {
		return 0, &DecompositionError{
			AmountPence: amountPence,
			Smallest:    smallest,
			Reason:      fmt.Sprintf("not a whole number of cells at %d pence per m²", d.cfg.PricePerSqMetrePence),
		}
	}
	area := model.Area(scaled / d.cfg.PricePerSqMetrePence)
	if area%smallest != 0 {
		return 0, &DecompositionError{AmountPence: amountPence, Area: area, Smallest: smallest, Reason: "not a multiple of the smallest tier"}
	}
	return area, nil
}

// Package resolves a package id from the price table.
func (d *Decomposer) Package(id string) (config.Package, error) {
	p, ok := d.cfg.Packages[id]
	if !ok {
		return config.Package{}, fmt.Errorf("%w: %q", ErrUnknownPackage, id)
	}
	return p, nil
}

// Decompose splits area into tier counts, largest tier first.  Tiers with
// a zero count are omitted.
func (d *Decomposer) Decompose(area model.Area) ([]Requirement, error) {
	smallest := d.cfg.SmallestTier().Area
	if area <= 0 {
		return nil, &DecompositionError{Area: area, Smallest: smallest, Reason: "area must be positive"}
	}
	if area%smallest != 0 {
		return nil, &DecompositionError{Area: area, Smallest: smallest, Reason: "not a multiple of the smallest tier"}
	}
	remaining := area
	out := make([]Requirement, 0, len(d.cfg.Tiers))
	for _, t := range d.cfg.Tiers {
		n := remaining / t.Area
		if n == 0 {
			continue
		}
		out = append(out, Requirement{Tier: t, Count: int(n)})
		remaining -= n * t.Area
	}
	if remaining != 0 {
		return nil, &DecompositionError{Area: area, Smallest: smallest, Reason: fmt.Sprintf("%s left over", remaining)}
	}
	return out, nil
}
