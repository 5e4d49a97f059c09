// Package repository holds the SQL data-access layer for the floor cell
// inventory.  The sentinel values below let the floor service tell a
// missing cell apart from a cell whose state changed under it.
package repository

import "errors"

// ErrCellNotFound is returned when a cell lookup yields no rows.
var ErrCellNotFound = errors.New("cell not found")

// ErrConflict is returned when an update matched no row because the cell
// was not in the expected state, e.g. blocking a cell that a donation
// already occupies.  Callers should translate this into a 409.
var ErrConflict = errors.New("conflict")
