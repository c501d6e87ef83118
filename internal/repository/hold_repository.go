package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number raised when an INSERT
// violates a unique key.  The holds table carries a unique key over
// (showtime_id, seat_id, live) where live is a generated column that is 1
// for pending and confirmed rows and NULL otherwise, so the constraint
// only applies to live holds.
const mysqlDuplicateEntry = 1062

// HoldRepo provides data access to the holds table.  All write operations
// run inside a transaction so that the unique-key check and the read-back
// of the inserted row observe the same state.  Timestamps are UTC
// throughout; callers pass explicit "now" values so that expiry decisions
// are testable.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

const holdColumns = `id, showtime_id, seat_id, session_id, user_id, status, reserved_at, expires_at, payment_id, transaction_id`

// scanHold reads one holds row from any row scanner.
func scanHold(scan func(dest ...any) error) (model.Hold, error) {
	var h model.Hold
	var userID, paymentID, transactionID sql.NullInt64
	err := scan(&h.ID, &h.ShowtimeID, &h.SeatID, &h.SessionID, &userID,
		&h.Status, &h.ReservedAt, &h.ExpiresAt, &paymentID, &transactionID)
	if err != nil {
		return model.Hold{}, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		h.UserID = &v
	}
	if paymentID.Valid {
		v := uint64(paymentID.Int64)
		h.PaymentID = &v
	}
	if transactionID.Valid {
		v := uint64(transactionID.Int64)
		h.TransactionID = &v
	}
	return h, nil
}

// List returns all live holds for a showtime: confirmed holds plus pending
// holds that have not expired at the given instant.  Cancelled and expired
// rows are filtered out even if the reaper has not removed them yet.  The
// result seeds the initial_data snapshot for new subscribers.
func (r *HoldRepo) List(ctx context.Context, showtimeID uint64, now time.Time) ([]model.Hold, error) {
	const q = `SELECT ` + holdColumns + ` FROM holds
	           WHERE showtime_id = ?
	             AND (status = 'confirmed' OR (status = 'pending' AND expires_at > ?))
	           ORDER BY seat_id`
	rows, err := r.db.QueryContext(ctx, q, showtimeID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	holds := make([]model.Hold, 0)
	for rows.Next() {
		h, err := scanHold(rows.Scan)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// TryCreate inserts one pending hold with the given TTL.  An expired
// pending row on the same (showtime, seat) is removed first so that a
// stale hold never blocks a new one between reaper ticks.  When the
// unique key rejects the insert, the existing live hold decides the
// error: ErrSeatSold for a confirmed hold, ErrSeatHeld for a pending one.
func (r *HoldRepo) TryCreate(ctx context.Context, req model.HoldRequest, ttl time.Duration, now time.Time) (*model.Hold, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	hold, err := tryCreateTx(ctx, tx, req, ttl, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return hold, nil
}

// tryCreateTx performs the expired-row cleanup, the insert and the
// read-back for one hold inside an existing transaction.
func tryCreateTx(ctx context.Context, tx *sql.Tx, req model.HoldRequest, ttl time.Duration, now time.Time) (*model.Hold, error) {
	nowUTC := now.UTC()
	// Clear a blocking pending hold that already expired; confirmed rows
	// are untouched and will surface as ErrSeatSold below.
	_, err := tx.ExecContext(ctx,
		`DELETE FROM holds WHERE showtime_id = ? AND seat_id = ? AND status = 'pending' AND expires_at <= ?`,
		req.ShowtimeID, req.SeatID, nowUTC)
	if err != nil {
		return nil, err
	}

	expiresAt := nowUTC.Add(ttl)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO holds (showtime_id, seat_id, session_id, user_id, status, reserved_at, expires_at)
		 VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		req.ShowtimeID, req.SeatID, req.SessionID, nullableID(req.UserID), nowUTC, expiresAt)
	if err != nil {
		if isDuplicate(err) {
			return nil, conflictErrTx(ctx, tx, req.ShowtimeID, req.SeatID)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = ?`, id)
	hold, err := scanHold(row.Scan)
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// TryCreateBulk inserts all requested holds or none.  Requests may span
// multiple showtimes; the whole batch runs in one transaction and any
// unique-key conflict aborts it with the conflict error of the first
// offending seat.
func (r *HoldRepo) TryCreateBulk(ctx context.Context, reqs []model.HoldRequest, ttl time.Duration, now time.Time) ([]model.Hold, error) {
	if len(reqs) == 0 {
		return []model.Hold{}, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	holds := make([]model.Hold, 0, len(reqs))
	for _, req := range reqs {
		hold, err := tryCreateTx(ctx, tx, req, ttl, now)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *hold)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return holds, nil
}

// conflictErrTx inspects the live hold that caused a duplicate-entry
// rejection and picks the matching sentinel error.
func conflictErrTx(ctx context.Context, tx *sql.Tx, showtimeID, seatID uint64) error {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM holds WHERE showtime_id = ? AND seat_id = ? AND status IN ('pending','confirmed')`,
		showtimeID, seatID).Scan(&status)
	if err != nil {
		// The conflicting row vanished between the insert and this read;
		// report it as held so the client simply retries.
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSeatHeld
		}
		return err
	}
	if status == model.StatusConfirmed {
		return ErrSeatSold
	}
	return ErrSeatHeld
}

// CancelByOwner deletes the pending holds a session owns on the given
// seats and returns the seat IDs actually released.  If any of the seats
// carries a pending hold owned by a different session, nothing is deleted
// and ErrForbidden is returned.
func (r *HoldRepo) CancelByOwner(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	placeholders, args := inClause(seatIDs)
	checkQ := `SELECT seat_id, session_id FROM holds
	           WHERE showtime_id = ? AND status = 'pending' AND seat_id IN (` + placeholders + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, checkQ, append([]any{showtimeID}, args...)...)
	if err != nil {
		return nil, err
	}
	var owned []uint64
	for rows.Next() {
		var sid uint64
		var owner string
		if scanErr := rows.Scan(&sid, &owner); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		if owner != sessionID {
			rows.Close()
			return nil, ErrForbidden
		}
		owned = append(owned, sid)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return []uint64{}, nil
	}

	delPlaceholders, delArgs := inClause(owned)
	delQ := `DELETE FROM holds
	         WHERE showtime_id = ? AND session_id = ? AND status = 'pending' AND seat_id IN (` + delPlaceholders + `)`
	if _, err := tx.ExecContext(ctx, delQ, append([]any{showtimeID, sessionID}, delArgs...)...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return owned, nil
}

// PendingBySession returns the unexpired pending holds of one session
// across all showtimes.  The payment orchestrator uses this to price a
// purchase before binding the holds to a payment.
func (r *HoldRepo) PendingBySession(ctx context.Context, sessionID string, now time.Time) ([]model.Hold, error) {
	const q = `SELECT ` + holdColumns + ` FROM holds
	           WHERE session_id = ? AND status = 'pending' AND expires_at > ?
	           ORDER BY showtime_id, seat_id`
	rows, err := r.db.QueryContext(ctx, q, sessionID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.Hold
	for rows.Next() {
		h, err := scanHold(rows.Scan)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// BindPayment stamps the payment ID onto the unexpired pending holds of a
// session and returns how many rows were bound.  Settlement later loads
// holds by this payment ID, so the binding is what ties a charge to its
// seats (the payment must own exactly those holds until settled).
func (r *HoldRepo) BindPayment(ctx context.Context, sessionID string, paymentID uint64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE holds SET payment_id = ? WHERE session_id = ? AND status = 'pending' AND expires_at > ?`,
		paymentID, sessionID, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingByPayment returns the pending holds bound to a payment without
// locking them.  The ticket issuer uses this to build tickets before the
// settlement transaction; the transaction itself re-reads the holds under
// a row lock and rejects any drift.
func (r *HoldRepo) PendingByPayment(ctx context.Context, paymentID uint64) ([]model.Hold, error) {
	const q = `SELECT ` + holdColumns + ` FROM holds
	           WHERE payment_id = ? AND status = 'pending'
	           ORDER BY showtime_id, seat_id`
	rows, err := r.db.QueryContext(ctx, q, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.Hold
	for rows.Next() {
		h, err := scanHold(rows.Scan)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// pendingByPaymentTx loads the pending holds bound to a payment with a row
// lock, so settlement validates and confirms against a stable snapshot.
func pendingByPaymentTx(ctx context.Context, tx *sql.Tx, paymentID uint64) ([]model.Hold, error) {
	const q = `SELECT ` + holdColumns + ` FROM holds
	           WHERE payment_id = ? AND status = 'pending' FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.Hold
	for rows.Next() {
		h, err := scanHold(rows.Scan)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// ConfirmByPaymentTx transitions the pending holds of a payment to
// confirmed and stamps the transaction ID.  It must run inside the
// settlement transaction after the holds have been validated.
func ConfirmByPaymentTx(ctx context.Context, tx *sql.Tx, paymentID, transactionID uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE holds SET status = 'confirmed', transaction_id = ? WHERE payment_id = ? AND status = 'pending'`,
		transactionID, paymentID)
	return err
}

// SweepExpired deletes every pending hold whose deadline has passed and
// returns the released seats grouped by showtime, so the reaper can
// broadcast one release event per showtime.  Confirmed holds are never
// touched.
func (r *HoldRepo) SweepExpired(ctx context.Context, now time.Time) (map[uint64][]uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	nowUTC := now.UTC()
	rows, err := tx.QueryContext(ctx,
		`SELECT showtime_id, seat_id FROM holds WHERE status = 'pending' AND expires_at <= ? FOR UPDATE`,
		nowUTC)
	if err != nil {
		return nil, err
	}
	released := make(map[uint64][]uint64)
	for rows.Next() {
		var showtimeID, seatID uint64
		if scanErr := rows.Scan(&showtimeID, &seatID); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		released[showtimeID] = append(released[showtimeID], seatID)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(released) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM holds WHERE status = 'pending' AND expires_at <= ?`, nowUTC); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return released, nil
}

// isDuplicate reports whether err is a MySQL duplicate-entry rejection.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// nullableID converts an optional user ID into a driver-friendly value.
func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

// inClause builds "?,?,?" placeholders and the matching args for an IN
// query over seat IDs.
func inClause(ids []uint64) (string, []any) {
	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	return strings.Join(placeholders, ","), args
}
