package floor

import (
	"context"
	"time"

	"github.com/iliyamo/floor-allocation/internal/model"
)

// EventType names a committed change to the inventory.
type EventType string

const (
	EventAllocated  EventType = "cells.allocated"
	EventReleased   EventType = "cells.released"
	EventPaid       EventType = "cells.paid"
	EventBlocked    EventType = "cells.blocked"
	EventUnblocked  EventType = "cells.unblocked"
	EventReconciled EventType = "cells.reconciled"
)

// Event describes a change after its transaction committed.  Identity is
// zero for administrative changes.
type Event struct {
	Type      EventType
	Identity  model.Identity
	CellIDs   []string
	Area      model.Area
	Status    model.CellStatus
	DonorName string
	At        time.Time
}

// Notifier receives committed changes, e.g. to refresh the floor display
// or publish to the broker.  Notify must not block for long and cannot
// fail the operation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }
