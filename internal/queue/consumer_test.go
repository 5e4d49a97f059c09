package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-allocation/internal/floor"
	"github.com/iliyamo/floor-allocation/internal/model"
)

func TestNewFloorEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 13, 0, 0, 0, time.FixedZone("BST", 3600))
	ev := NewFloorEvent("evt-1", floor.Event{
		Type:      floor.EventAllocated,
		Identity:  model.PledgeIdentity("P-1"),
		CellIDs:   []string{"A-F-0001"},
		Area:      10000,
		Status:    model.StatusPledged,
		DonorName: "Ada",
		At:        at,
	})
	assert.Equal(t, FloorEvent{
		EventID:      "evt-1",
		Type:         "cells.allocated",
		IdentityKind: "pledge",
		IdentityRef:  "P-1",
		CellIDs:      []string{"A-F-0001"},
		AreaCm2:      10000,
		Status:       "pledged",
		DonorName:    "Ada",
		OccurredAt:   "2024-05-01T12:00:00Z",
	}, ev)

	blocked := NewFloorEvent("evt-2", floor.Event{Type: floor.EventBlocked, At: at})
	assert.NotNil(t, blocked.CellIDs)
	body, err := json.Marshal(blocked)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "identity_ref")
}

func TestFormatLine(t *testing.T) {
	line := FormatLine(FloorEvent{
		EventID:      "evt-1",
		Type:         "cells.released",
		IdentityKind: "payment",
		IdentityRef:  "PAY-1",
		CellIDs:      []string{"A-F-0001", "A-Q-0003"},
		AreaCm2:      12500,
		Status:       "available",
		OccurredAt:   "2024-05-01T12:00:00Z",
	})
	assert.Equal(t, "[2024-05-01T12:00:00Z] cells.released | payment=PAY-1 | status=available | area_cm2=12500 | cells=[A-F-0001,A-Q-0003] | event_id=evt-1\n", line)
}

func TestConsumerHandleAppendsToLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "floor.log")
	c := &Consumer{LogPath: path, Log: zap.NewNop()}

	body, err := json.Marshal(FloorEvent{EventID: "e1", Type: "cells.paid", CellIDs: []string{"B-H-0002"}, OccurredAt: "t"})
	require.NoError(t, err)
	require.NoError(t, c.handle(body))
	require.NoError(t, c.handle(body))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n"), 2)

	assert.Error(t, c.handle([]byte("not json")))
}

func TestBrokerURL(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	assert.Equal(t, "amqp://u:p@mq:5672/", BrokerURL())
	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	assert.Equal(t, "amqp://primary/", BrokerURL())
}
