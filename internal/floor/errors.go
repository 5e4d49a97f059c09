package floor

import (
	"errors"
	"fmt"

	"github.com/iliyamo/floor-allocation/internal/model"
)

var (
	// ErrInvalidIdentity is returned when a donation identity has an
	// unknown kind or an empty reference.
	ErrInvalidIdentity = errors.New("invalid donation identity")
	// ErrInvalidRequest is returned when an allocation names neither or
	// both of an amount and a package, or an unusable initial status.
	ErrInvalidRequest = errors.New("invalid allocation request")
	// ErrUnknownPackage is returned for a package id missing from the
	// price table.
	ErrUnknownPackage = errors.New("unknown package")
	// ErrNotAllocated is returned by MarkPaid when the pledge owns no cells.
	ErrNotAllocated = errors.New("pledge has no allocated cells")
	// ErrCellNotFound is returned by administrative cell operations.
	ErrCellNotFound = errors.New("cell not found")
	// ErrCellBusy is returned when blocking a cell a donation occupies.
	ErrCellBusy = errors.New("cell is occupied")
	// ErrPaymentRefMismatch is returned by MarkPaid when the pledge was
	// already paid under another payment reference.
	ErrPaymentRefMismatch = errors.New("pledge already paid under a different payment reference")
)

// DecompositionError reports an area that cannot be expressed exactly in
// the configured tiers.  Nothing is allocated.
type DecompositionError struct {
	AmountPence int64
	Area        model.Area
	Smallest    model.Area
	Reason      string
}

func (e *DecompositionError) Error() string {
	if e.Area > 0 {
		return fmt.Sprintf("cannot decompose %s into tiers (smallest %s): %s", e.Area, e.Smallest, e.Reason)
	}
	return fmt.Sprintf("cannot convert %d pence to floor area: %s", e.AmountPence, e.Reason)
}

// InsufficientSpaceError reports a tier with fewer available cells than
// required.  Nothing is allocated and smaller tiers are never substituted.
type InsufficientSpaceError struct {
	CellType  string
	Needed    int
	Available int
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space: need %d cells of tier %s, %d available", e.Needed, e.CellType, e.Available)
}

// AlreadyAllocatedError is returned when the identity already owns cells.
// It indicates a caller bug and must not be retried.
type AlreadyAllocatedError struct {
	Identity model.Identity
	Cells    int
}

func (e *AlreadyAllocatedError) Error() string {
	return fmt.Sprintf("%s already owns %d cells", e.Identity, e.Cells)
}

// PersistenceError wraps a failure of the underlying transaction.  The
// transaction has been rolled back, so the whole operation may be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: persistence failure: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether err is worth retrying unchanged.  Only
// persistence failures qualify.
func Retryable(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
