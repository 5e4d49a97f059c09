package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity(" Pledge ", " P-1 ")
	require.NoError(t, err)
	assert.Equal(t, PledgeIdentity("P-1"), id)
	assert.Equal(t, "pledge:P-1", id.String())

	id, err = ParseIdentity("payment", "PAY-2")
	require.NoError(t, err)
	assert.Equal(t, KindPayment, id.Kind)

	_, err = ParseIdentity("gift", "G-1")
	assert.Error(t, err)
	_, err = ParseIdentity("pledge", "  ")
	assert.Error(t, err)
}

func TestCellIDAndArea(t *testing.T) {
	assert.Equal(t, "A-H-0007", CellID("A", "H", 7))
	assert.Equal(t, "1.75m²", Area(17500).String())
	assert.True(t, StatusPaid.Occupied())
	assert.False(t, StatusBlocked.Occupied())
	assert.False(t, CellStatus("reserved").Valid())
}

func TestValidateRefLength(t *testing.T) {
	assert.NoError(t, PaymentIdentity(strings.Repeat("x", MaxRefLen)).Validate())
	assert.Error(t, PaymentIdentity(strings.Repeat("x", MaxRefLen+1)).Validate())
	// Counted in characters, like the VARCHAR column.
	assert.NoError(t, PledgeIdentity(strings.Repeat("é", MaxRefLen)).Validate())
}
