package floor

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/floor-allocation/internal/model"
)

func TestRetryable(t *testing.T) {
	pe := &PersistenceError{Op: "allocate", Err: sql.ErrConnDone}
	assert.True(t, Retryable(pe))
	assert.True(t, Retryable(fmt.Errorf("wrapped: %w", pe)))
	assert.ErrorIs(t, pe, sql.ErrConnDone)

	assert.False(t, Retryable(&InsufficientSpaceError{CellType: "F", Needed: 2}))
	assert.False(t, Retryable(&AlreadyAllocatedError{Identity: model.PledgeIdentity("P")}))
	assert.False(t, Retryable(&DecompositionError{AmountPence: 1}))
	assert.False(t, Retryable(errors.New("boom")))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "insufficient space: need 5 cells of tier F, 4 available",
		(&InsufficientSpaceError{CellType: "F", Needed: 5, Available: 4}).Error())
	assert.Equal(t, "pledge:P-1 already owns 3 cells",
		(&AlreadyAllocatedError{Identity: model.PledgeIdentity("P-1"), Cells: 3}).Error())
	assert.Contains(t, (&DecompositionError{Area: 1000, Smallest: 2500, Reason: "x"}).Error(), "0.10m²")
}
