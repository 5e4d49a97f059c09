package model

import (
	"fmt"
	"time"
)

// Area is a floor area in square centimetres.  Integer units keep
// decomposition exact: 1 m² is 10000 and the quarter tier is 2500.
type Area int64

// SquareMetre is one square metre expressed as an Area.
const SquareMetre Area = 10000

// SquareMetres returns the area as square metres for display.
func (a Area) SquareMetres() float64 { return float64(a) / float64(SquareMetre) }

// String renders the area as m² with two decimals, e.g. "1.75m²".
func (a Area) String() string { return fmt.Sprintf("%.2fm²", a.SquareMetres()) }

// CellStatus is the occupancy state of a floor cell.
type CellStatus string

const (
	StatusAvailable CellStatus = "available"
	StatusPledged   CellStatus = "pledged"
	StatusPaid      CellStatus = "paid"
	StatusBlocked   CellStatus = "blocked"
)

// Valid reports whether s is one of the four known statuses.
func (s CellStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusPledged, StatusPaid, StatusBlocked:
		return true
	}
	return false
}

// Occupied reports whether a donation currently owns a cell in this state.
func (s CellStatus) Occupied() bool { return s == StatusPledged || s == StatusPaid }

// Cell is one addressable unit of floor space.  The inventory is
// created once by seeding; afterwards only Status, the two reference
// fields and the display fields change.
//
// Fields:
//  ID          – human-decodable id, e.g. A-H-0007.
//  RectangleID – floor zone letter; partitions the scan space.
//  Seq         – sequence number inside the rectangle and tier.
//  CellType    – tier code (see config.Tier).
//  AreaSize    – area of the tier, stored for query convenience.
//  Status      – available, pledged, paid or blocked.
//  PledgeRef   – pledge occupying the cell (nullable).
//  PaymentRef  – payment occupying the cell (nullable).
//  DonorName   – display copy of the donor name.
//  AmountPence – display copy of the donation amount.
//  AssignedAt  – when the cell was allocated.
type Cell struct {
	ID          string     `json:"cell_id"`
	RectangleID string     `json:"rectangle_id"`
	Seq         int        `json:"seq"`
	CellType    string     `json:"cell_type"`
	AreaSize    Area       `json:"area_cm2"`
	Status      CellStatus `json:"status"`
	PledgeRef   *string    `json:"pledge_ref,omitempty"`
	PaymentRef  *string    `json:"payment_ref,omitempty"`
	DonorName   *string    `json:"donor_name,omitempty"`
	AmountPence *int64     `json:"amount_pence,omitempty"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
}

// CellID builds the canonical identifier for a cell: rectangle, tier
// code and a zero-padded sequence number.
func CellID(rectangleID, tierCode string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", rectangleID, tierCode, seq)
}
