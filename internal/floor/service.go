// Package floor is the floor-grid allocation engine.  It maps a donation
// to a gapless set of floor cells, reverses that mapping by donation
// identity, and exposes read-only views for the floor display.
//
// Every mutating operation runs in one database transaction that locks
// the rows it changes before changing them, so concurrent calls for
// different donations never share a cell and a failure leaves the
// inventory exactly as it was.
package floor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/iliyamo/floor-allocation/internal/config"
	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/model"
	"github.com/iliyamo/floor-allocation/internal/repository"
)

// Service is the allocation transaction manager and deallocator.  It holds
// no state of its own beyond its collaborators; all state lives in the
// cell inventory.
type Service struct {
	repo     *repository.CellRepo
	cfg      config.FloorConfig
	dec      *Decomposer
	fill     filler
	log      *zap.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithNotifier sets the receiver of committed inventory changes.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithClock overrides the time source used for assigned_at.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService builds a Service over a database handle.  cfg must already be
// validated (config.LoadFloorConfig does this).
func NewService(db *sql.DB, d database.Dialect, cfg config.FloorConfig, opts ...Option) *Service {
	repo := repository.NewCellRepo(db, d)
	s := &Service{
		repo:     repo,
		cfg:      cfg,
		dec:      NewDecomposer(cfg),
		fill:     filler{cells: repo, rectangles: cfg.Rectangles},
		log:      zap.NewNop(),
		notifier: Notifiers(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the floor configuration the service was built with.
func (s *Service) Config() config.FloorConfig { return s.cfg }

// Repo exposes the cell inventory for seeding and administrative tools.
func (s *Service) Repo() *repository.CellRepo { return s.repo }

// AllocationRequest asks for floor cells for one donation.  Exactly one of
// AmountPence and PackageID must be set.  Status is the initial status of
// every selected cell, pledged or paid.
type AllocationRequest struct {
	Identity    model.Identity
	AmountPence int64
	PackageID   string
	DonorName   string
	Status      model.CellStatus
}

// AllocationResult describes a committed allocation.
type AllocationResult struct {
	Identity     model.Identity
	CellIDs      []string
	TotalArea    model.Area
	AmountPence  int64
	Requirements []Requirement
}

// DeallocationResult lists the cells a deallocation returned to the pool.
// Both fields are empty when the identity owned nothing.
type DeallocationResult struct {
	Identity  model.Identity
	CellIDs   []string
	FreedArea model.Area
}

// PaymentResult describes a pledge to paid transition.  Transitioned
// counts cells that changed status; cells already paid are listed in
// CellIDs but not counted.
type PaymentResult struct {
	PledgeRef    string
	PaymentRef   string
	CellIDs      []string
	Transitioned int
}

// Plan resolves a request to its area and tier requirements without
// touching the inventory.
func (s *Service) Plan(req AllocationRequest) (model.Area, int64, []Requirement, error) {
	var (
		area   model.Area
		amount int64
	)
	switch {
	case req.PackageID != "" && req.AmountPence != 0:
		return 0, 0, nil, fmt.Errorf("%w: both amount and package given", ErrInvalidRequest)
	case req.PackageID != "":
		p, err := s.dec.Package(req.PackageID)
		if err != nil {
			return 0, 0, nil, err
		}
		area, amount = p.Area, p.PricePence
	default:
		a, err := s.dec.AreaForAmount(req.AmountPence)
		if err != nil {
			return 0, 0, nil, err
		}
		area, amount = a, req.AmountPence
	}
	reqs, err := s.dec.Decompose(area)
	if err != nil {
		return 0, 0, nil, err
	}
	return area, amount, reqs, nil
}

// Allocate decomposes the donation, selects cells in scan order and tags
// them with the identity, all in one transaction.  On any error nothing
// is changed.
func (s *Service) Allocate(ctx context.Context, req AllocationRequest) (res *AllocationResult, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("allocate", started, len(lo.FromPtr(res).CellIDs), err) }()

	if err := req.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if req.Status != model.StatusPledged && req.Status != model.StatusPaid {
		return nil, fmt.Errorf("%w: initial status %q", ErrInvalidRequest, req.Status)
	}
	area, amount, reqs, err := s.Plan(req)
	if err != nil {
		s.log.Info("allocation rejected", zap.Stringer("identity", req.Identity), zap.Error(err))
		return nil, err
	}

	var picked []model.Cell
	err = s.inTx(ctx, "allocate", func(tx *sql.Tx) error {
		owned, err := s.repo.LockByIdentityTx(ctx, tx, req.Identity)
		if err != nil {
			return err
		}
		if len(owned) > 0 {
			return &AlreadyAllocatedError{Identity: req.Identity, Cells: len(owned)}
		}
		picked, err = s.fill.fill(ctx, tx, reqs)
		if err != nil {
			return err
		}
		ids := cellIDs(picked)
		n, err := s.repo.AssignTx(ctx, tx, ids, repository.Assignment{
			Identity:    req.Identity,
			Status:      req.Status,
			DonorName:   req.DonorName,
			AmountPence: amount,
			AssignedAt:  s.now(),
		})
		if err != nil {
			return err
		}
		if int(n) != len(ids) {
			return &PersistenceError{Op: "allocate", Err: fmt.Errorf("%w: %d of %d cells still available", repository.ErrConflict, n, len(ids))}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("allocation failed", zap.Stringer("identity", req.Identity), zap.Stringer("area", area), zap.Error(err))
		return nil, err
	}

	total := sumArea(picked)
	if total != area {
		// Unreachable while tier codes in the inventory match the configuration.
		s.log.Error("allocated area mismatch", zap.Stringer("identity", req.Identity),
			zap.Stringer("requested", area), zap.Stringer("allocated", total))
	}
	res = &AllocationResult{
		Identity:     req.Identity,
		CellIDs:      cellIDs(picked),
		TotalArea:    total,
		AmountPence:  amount,
		Requirements: reqs,
	}
	s.log.Info("cells allocated",
		zap.Stringer("identity", req.Identity),
		zap.String("status", string(req.Status)),
		zap.Int("cells", len(res.CellIDs)),
		zap.Stringer("area", total))
	s.notifier.Notify(ctx, Event{
		Type:      EventAllocated,
		Identity:  req.Identity,
		CellIDs:   res.CellIDs,
		Area:      total,
		Status:    req.Status,
		DonorName: req.DonorName,
		At:        s.now().UTC(),
	})
	return res, nil
}

// Deallocate returns every cell owned by the identity to the available
// pool.  It needs no knowledge of the original amount: the cells are
// found by their reference.  Calling it for an identity that owns nothing
// returns an empty result.
func (s *Service) Deallocate(ctx context.Context, id model.Identity) (res *DeallocationResult, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("deallocate", started, len(lo.FromPtr(res).CellIDs), err) }()

	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	var freed []model.Cell
	err = s.inTx(ctx, "deallocate", func(tx *sql.Tx) error {
		owned, err := s.repo.LockByIdentityTx(ctx, tx, id)
		if err != nil {
			return err
		}
		freed = lo.Filter(owned, func(c model.Cell, _ int) bool { return c.Status != model.StatusBlocked })
		if len(freed) == 0 {
			return nil
		}
		_, err = s.repo.ReleaseTx(ctx, tx, cellIDs(freed))
		return err
	})
	if err != nil {
		s.log.Warn("deallocation failed", zap.Stringer("identity", id), zap.Error(err))
		return nil, err
	}
	res = &DeallocationResult{Identity: id, CellIDs: cellIDs(freed), FreedArea: sumArea(freed)}
	if len(freed) == 0 {
		s.log.Debug("nothing to deallocate", zap.Stringer("identity", id))
		return res, nil
	}
	s.log.Info("cells released",
		zap.Stringer("identity", id),
		zap.Int("cells", len(res.CellIDs)),
		zap.Stringer("area", res.FreedArea))
	s.notifier.Notify(ctx, Event{
		Type:     EventReleased,
		Identity: id,
		CellIDs:  res.CellIDs,
		Area:     res.FreedArea,
		Status:   model.StatusAvailable,
		At:       s.now().UTC(),
	})
	return res, nil
}

// MarkPaid moves all cells of a pledge from pledged to paid.  The cells do
// not change; paymentRef, when given, is recorded next to the pledge
// reference so the payment identity can later deallocate them too.  A
// payment reference owned by another donation, or one that differs from
// the reference already recorded, is refused.  Calling it again is
// harmless.
func (s *Service) MarkPaid(ctx context.Context, pledgeRef, paymentRef string) (res *PaymentResult, err error) {
	started := time.Now()
	defer func() { s.metrics.observe("mark_paid", started, lo.FromPtr(res).Transitioned, err) }()

	id := model.PledgeIdentity(pledgeRef)
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	payment := model.PaymentIdentity(paymentRef)
	if paymentRef != "" {
		if err := payment.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
		}
	}
	res = &PaymentResult{PledgeRef: pledgeRef, PaymentRef: paymentRef}
	err = s.inTx(ctx, "mark_paid", func(tx *sql.Tx) error {
		owned, err := s.repo.LockByIdentityTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			return ErrNotAllocated
		}
		for _, c := range owned {
			if c.PaymentRef == nil {
				continue
			}
			if paymentRef == "" {
				res.PaymentRef = *c.PaymentRef
			} else if *c.PaymentRef != paymentRef {
				return fmt.Errorf("%w: %s has %s", ErrPaymentRefMismatch, c.ID, *c.PaymentRef)
			}
		}
		if paymentRef != "" {
			held, err := s.repo.LockByIdentityTx(ctx, tx, payment)
			if err != nil {
				return err
			}
			foreign := lo.Filter(held, func(c model.Cell, _ int) bool {
				return c.PledgeRef == nil || *c.PledgeRef != pledgeRef
			})
			if len(foreign) > 0 {
				return &AlreadyAllocatedError{Identity: payment, Cells: len(foreign)}
			}
		}
		res.CellIDs = cellIDs(owned)
		n, err := s.repo.MarkPaidTx(ctx, tx, pledgeRef, paymentRef)
		if err != nil {
			return err
		}
		res.Transitioned = int(n)
		return nil
	})
	if err != nil {
		res = nil
		s.log.Warn("mark paid failed", zap.String("pledge_ref", pledgeRef), zap.String("payment_ref", paymentRef), zap.Error(err))
		return nil, err
	}
	s.log.Info("pledge marked paid",
		zap.String("pledge_ref", pledgeRef),
		zap.String("payment_ref", paymentRef),
		zap.Int("cells", res.Transitioned))
	if res.Transitioned > 0 {
		s.notifier.Notify(ctx, Event{
			Type:     EventPaid,
			Identity: id,
			CellIDs:  res.CellIDs,
			Status:   model.StatusPaid,
			At:       s.now().UTC(),
		})
	}
	return res, nil
}

// SetBlocked is the administrative available <-> blocked transition.  An
// occupied cell cannot be blocked; setting the current state again is a
// no-op.
func (s *Service) SetBlocked(ctx context.Context, cellID string, blocked bool) error {
	var changed bool
	err := s.inTx(ctx, "set_blocked", func(tx *sql.Tx) error {
		cells, err := s.repo.LockCellsTx(ctx, tx, []string{cellID})
		if err != nil {
			return err
		}
		if len(cells) == 0 {
			return ErrCellNotFound
		}
		c := cells[0]
		from, to := model.StatusAvailable, model.StatusBlocked
		if !blocked {
			from, to = to, from
		}
		if c.Status == to {
			return nil
		}
		if c.Status != from || c.PledgeRef != nil || c.PaymentRef != nil {
			return fmt.Errorf("%w: %s is %s", ErrCellBusy, cellID, c.Status)
		}
		changed = true
		return s.repo.SetStatusTx(ctx, tx, cellID, from, to)
	})
	if err != nil {
		return err
	}
	if changed {
		s.log.Info("cell block state changed", zap.String("cell_id", cellID), zap.Bool("blocked", blocked))
		typ := EventUnblocked
		if blocked {
			typ = EventBlocked
		}
		s.notifier.Notify(ctx, Event{Type: typ, CellIDs: []string{cellID}, At: s.now().UTC()})
	}
	return nil
}

// FindOrphans lists cells whose status and references disagree.  It only
// reads; ReleaseOrphans repairs.
func (s *Service) FindOrphans(ctx context.Context) ([]string, error) {
	ids, err := s.repo.FindOrphans(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "find_orphans", Err: err}
	}
	return ids, nil
}

// ReleaseOrphans resets the given cells to available, but only those that
// are still orphans once locked.  It returns the ids actually released.
func (s *Service) ReleaseOrphans(ctx context.Context, ids []string) ([]string, error) {
	var released []string
	err := s.inTx(ctx, "release_orphans", func(tx *sql.Tx) error {
		cells, err := s.repo.LockCellsTx(ctx, tx, lo.Uniq(ids))
		if err != nil {
			return err
		}
		released = cellIDs(lo.Filter(cells, func(c model.Cell, _ int) bool { return repository.IsOrphan(c) }))
		_, err = s.repo.ReleaseTx(ctx, tx, released)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		s.log.Warn("orphan cells released", zap.Strings("cell_ids", released))
		s.notifier.Notify(ctx, Event{Type: EventReconciled, CellIDs: released, Status: model.StatusAvailable, At: s.now().UTC()})
	}
	return released, nil
}

// inTx runs fn in a transaction and commits when it returns nil.  Driver
// failures come back as *PersistenceError; domain errors pass through.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		if isDomainError(err) {
			return err
		}
		return &PersistenceError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	committed = true
	return nil
}

func isDomainError(err error) bool {
	var (
		de *DecompositionError
		ie *InsufficientSpaceError
		ae *AlreadyAllocatedError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &de), errors.As(err, &ie), errors.As(err, &ae), errors.As(err, &pe):
		return true
	case errors.Is(err, ErrNotAllocated), errors.Is(err, ErrCellNotFound), errors.Is(err, ErrCellBusy),
		errors.Is(err, ErrPaymentRefMismatch):
		return true
	}
	return false
}

func cellIDs(cells []model.Cell) []string {
	return lo.Map(cells, func(c model.Cell, _ int) string { return c.ID })
}

func sumArea(cells []model.Cell) model.Area {
	return lo.SumBy(cells, func(c model.Cell) model.Area { return c.AreaSize })
}
