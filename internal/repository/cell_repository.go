package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/floor-allocation/internal/database"
	"github.com/iliyamo/floor-allocation/internal/model"
)

// CellRepo is the data-access layer for the floor_cells inventory.  Methods
// ending in Tx run inside a caller-supplied transaction and never commit
// or roll back; the caller owns the transaction.  Methods without the
// suffix are read-only queries against the pool.
type CellRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewCellRepo returns a CellRepo bound to the given database and dialect.
func NewCellRepo(db *sql.DB, d database.Dialect) *CellRepo {
	return &CellRepo{db: db, dialect: d}
}

// DB exposes the underlying handle so services can open transactions.
func (r *CellRepo) DB() *sql.DB { return r.db }

// BeginTx opens a transaction at the dialect's isolation level.
func (r *CellRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, &sql.TxOptions{Isolation: r.dialect.Isolation})
}

const cellColumns = `cell_id, rectangle_id, seq, cell_type, area_cm2, status,
       pledge_ref, payment_ref, donor_name, amount_pence, assigned_at`

// StatusTotal is the number of cells and their combined area for one status.
type StatusTotal struct {
	Status model.CellStatus
	Cells  int
	Area   model.Area
}

// Assignment carries the values written onto every cell of an allocation.
type Assignment struct {
	Identity    model.Identity
	Status      model.CellStatus
	DonorName   string
	AmountPence int64
	AssignedAt  time.Time
}

// seedChunk keeps multi-row INSERTs well under driver placeholder limits.
const seedChunk = 200

// SeedBulk inserts cells as available.  It is the population step run once
// per venue; CellID, RectangleID, Seq, CellType and AreaSize must be set.
func (r *CellRepo) SeedBulk(ctx context.Context, cells []model.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for start := 0; start < len(cells); start += seedChunk {
		end := start + seedChunk
		if end > len(cells) {
			end = len(cells)
		}
		batch := cells[start:end]
		query := `INSERT INTO floor_cells (cell_id, rectangle_id, seq, cell_type, area_cm2, status) VALUES `
		args := make([]interface{}, 0, len(batch)*6)
		for i, c := range batch {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			args = append(args, c.ID, c.RectangleID, c.Seq, c.CellType, int64(c.AreaSize), string(model.StatusAvailable))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// LockAvailableTx returns up to limit available cells of one tier inside
// one rectangle, lowest sequence first, taking row locks where the
// dialect supports them.  Availability is read after the locks are
// granted, so a concurrent allocation that committed first is not seen.
func (r *CellRepo) LockAvailableTx(ctx context.Context, tx *sql.Tx, cellType, rectangleID string, limit int) ([]model.Cell, error) {
	q := `SELECT ` + cellColumns + `
	      FROM floor_cells
	      WHERE cell_type = ? AND rectangle_id = ? AND status = ?
	        AND pledge_ref IS NULL AND payment_ref IS NULL
	      ORDER BY seq
	      LIMIT ?` + r.dialect.LockClause
	return r.queryCells(ctx, tx, q, cellType, rectangleID, string(model.StatusAvailable), limit)
}

// LockByIdentityTx locks and returns every cell owned by the identity,
// whatever its status.  A pledge identity matches pledge_ref and a
// payment identity matches payment_ref.
func (r *CellRepo) LockByIdentityTx(ctx context.Context, tx *sql.Tx, id model.Identity) ([]model.Cell, error) {
	q := `SELECT ` + cellColumns + `
	      FROM floor_cells
	      WHERE ` + identityColumn(id) + ` = ?
	      ORDER BY rectangle_id, cell_type, seq` + r.dialect.LockClause
	return r.queryCells(ctx, tx, q, id.Ref)
}

// LockCellsTx locks the listed cells.  Unknown ids are silently absent
// from the result.
func (r *CellRepo) LockCellsTx(ctx context.Context, tx *sql.Tx, cellIDs []string) ([]model.Cell, error) {
	if len(cellIDs) == 0 {
		return []model.Cell{}, nil
	}
	ph, args := inClause(cellIDs)
	q := `SELECT ` + cellColumns + `
	      FROM floor_cells
	      WHERE cell_id IN (` + ph + `)
	      ORDER BY rectangle_id, cell_type, seq` + r.dialect.LockClause
	return r.queryCells(ctx, tx, q, args...)
}

// AssignTx tags the given cells with an assignment.  Only cells that are
// still available are updated; the number of updated rows is returned
// so the caller can detect a lost race.
func (r *CellRepo) AssignTx(ctx context.Context, tx *sql.Tx, cellIDs []string, a Assignment) (int64, error) {
	if len(cellIDs) == 0 {
		return 0, nil
	}
	var pledgeRef, paymentRef interface{}
	switch a.Identity.Kind {
	case model.KindPledge:
		pledgeRef = a.Identity.Ref
	case model.KindPayment:
		paymentRef = a.Identity.Ref
	}
	ph, idArgs := inClause(cellIDs)
	q := `UPDATE floor_cells
	      SET status = ?, pledge_ref = ?, payment_ref = ?, donor_name = ?, amount_pence = ?, assigned_at = ?
	      WHERE cell_id IN (` + ph + `) AND status = ?`
	args := make([]interface{}, 0, len(idArgs)+7)
	args = append(args, string(a.Status), pledgeRef, paymentRef, nullString(a.DonorName), a.AmountPence, a.AssignedAt.UTC())
	args = append(args, idArgs...)
	args = append(args, string(model.StatusAvailable))
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReleaseTx returns the given cells to available, clearing both
// references and the display fields.  Blocked cells are left alone.
func (r *CellRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, cellIDs []string) (int64, error) {
	if len(cellIDs) == 0 {
		return 0, nil
	}
	ph, idArgs := inClause(cellIDs)
	q := `UPDATE floor_cells
	      SET status = ?, pledge_ref = NULL, payment_ref = NULL, donor_name = NULL, amount_pence = NULL, assigned_at = NULL
	      WHERE cell_id IN (` + ph + `) AND status <> ?`
	args := make([]interface{}, 0, len(idArgs)+2)
	args = append(args, string(model.StatusAvailable))
	args = append(args, idArgs...)
	args = append(args, string(model.StatusBlocked))
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkPaidTx moves every pledged cell of a pledge to paid.  When
// paymentRef is non-empty it is recorded alongside the pledge reference;
// an empty paymentRef leaves payment_ref untouched.
func (r *CellRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, pledgeRef, paymentRef string) (int64, error) {
	const q = `UPDATE floor_cells
	           SET status = ?, payment_ref = COALESCE(?, payment_ref)
	           WHERE pledge_ref = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(model.StatusPaid), nullString(paymentRef), pledgeRef, string(model.StatusPledged))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetStatusTx moves one cell from one status to another.  It returns
// ErrConflict when the cell is not currently in the from status.
func (r *CellRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, cellID string, from, to model.CellStatus) error {
	const q = `UPDATE floor_cells SET status = ? WHERE cell_id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(to), cellID, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// GetByID returns one cell or ErrCellNotFound.
func (r *CellRepo) GetByID(ctx context.Context, cellID string) (*model.Cell, error) {
	q := `SELECT ` + cellColumns + ` FROM floor_cells WHERE cell_id = ?`
	cells, err := r.queryCells(ctx, r.db, q, cellID)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, ErrCellNotFound
	}
	return &cells[0], nil
}

// ListAll returns the whole inventory ordered by rectangle, tier and
// sequence.  Callers reorder rectangles by their configured priority.
func (r *CellRepo) ListAll(ctx context.Context) ([]model.Cell, error) {
	q := `SELECT ` + cellColumns + ` FROM floor_cells ORDER BY rectangle_id, cell_type, seq`
	return r.queryCells(ctx, r.db, q)
}

// TotalsByStatus aggregates cell counts and areas per status.  Statuses
// with no cells are absent from the result.
func (r *CellRepo) TotalsByStatus(ctx context.Context) ([]StatusTotal, error) {
	const q = `SELECT status, COUNT(*), COALESCE(SUM(area_cm2), 0)
	           FROM floor_cells
	           GROUP BY status
	           ORDER BY status`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusTotal
	for rows.Next() {
		var (
			st   StatusTotal
			s    string
			area int64
		)
		if err := rows.Scan(&s, &st.Cells, &area); err != nil {
			return nil, err
		}
		st.Status = model.CellStatus(s)
		st.Area = model.Area(area)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindOrphans returns the ids of cells whose status disagrees with their
// references: available cells still carrying a reference, and pledged
// or paid cells carrying none.
func (r *CellRepo) FindOrphans(ctx context.Context) ([]string, error) {
	const q = `SELECT cell_id FROM floor_cells
	           WHERE (status = ? AND (pledge_ref IS NOT NULL OR payment_ref IS NOT NULL))
	              OR (status IN (?, ?) AND pledge_ref IS NULL AND payment_ref IS NULL)
	           ORDER BY cell_id`
	rows, err := r.db.QueryContext(ctx, q,
		string(model.StatusAvailable), string(model.StatusPledged), string(model.StatusPaid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// IsOrphan reports whether a cell is in one of the inconsistent states
// FindOrphans looks for.
func IsOrphan(c model.Cell) bool {
	hasRef := c.PledgeRef != nil || c.PaymentRef != nil
	switch c.Status {
	case model.StatusAvailable:
		return hasRef
	case model.StatusPledged, model.StatusPaid:
		return !hasRef
	}
	return false
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *CellRepo) queryCells(ctx context.Context, q queryer, query string, args ...interface{}) ([]model.Cell, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cells := []model.Cell{}
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cells, nil
}

func scanCell(rows *sql.Rows) (model.Cell, error) {
	var (
		c          model.Cell
		status     string
		area       int64
		pledgeRef  sql.NullString
		paymentRef sql.NullString
		donor      sql.NullString
		amount     sql.NullInt64
		assignedAt sql.NullTime
	)
	if err := rows.Scan(
		&c.ID, &c.RectangleID, &c.Seq, &c.CellType, &area, &status,
		&pledgeRef, &paymentRef, &donor, &amount, &assignedAt,
	); err != nil {
		return model.Cell{}, err
	}
	c.Status = model.CellStatus(status)
	c.AreaSize = model.Area(area)
	if pledgeRef.Valid {
		v := pledgeRef.String
		c.PledgeRef = &v
	}
	if paymentRef.Valid {
		v := paymentRef.String
		c.PaymentRef = &v
	}
	if donor.Valid {
		v := donor.String
		c.DonorName = &v
	}
	if amount.Valid {
		v := amount.Int64
		c.AmountPence = &v
	}
	if assignedAt.Valid {
		t := assignedAt.Time.UTC()
		c.AssignedAt = &t
	}
	return c, nil
}

func identityColumn(id model.Identity) string {
	if id.Kind == model.KindPayment {
		return "payment_ref"
	}
	return "pledge_ref"
}

func inClause(ids []string) (string, []interface{}) {
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	return strings.Join(placeholders, ","), args
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
