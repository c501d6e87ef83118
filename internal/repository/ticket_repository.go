package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// TicketRepo provides data access to the tickets table and owns the
// single settlement transaction that turns a paid order into tickets.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// IssueParams carries everything the settlement transaction writes.  The
// tickets are fully formed by the issuer service (IDs, prices, booking
// code, QR payloads) before the transaction starts, so the write path is
// pure persistence.
type IssueParams struct {
	PaymentID     uint64
	TransactionID uint64
	Tickets       []model.Ticket
	Gateway       model.VNPayDetails
	Now           time.Time
}

// Issue runs the settlement critical section as one database transaction:
// it revalidates the holds bound to the payment under a row lock,
// transitions them to confirmed, inserts the tickets, and moves the
// transaction and payment to success with the gateway fields recorded.
// On any validation failure the transaction rolls back without mutating
// anything; the orchestrator then marks the payment failed separately.
//
// Validation errors:
//   - ErrNoReservations: no pending holds are bound to the payment, or
//     the bound seats no longer match the seats being ticketed (the hold
//     set drifted between pricing and settlement).
//   - ErrHoldsExpired: at least one bound hold passed its TTL.
func (r *TicketRepo) Issue(ctx context.Context, params IssueParams) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM payments WHERE id = ? FOR UPDATE`, params.PaymentID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if status != model.PaymentPending {
		return fmt.Errorf("payment %d is %s, not pending", params.PaymentID, status)
	}

	holds, err := pendingByPaymentTx(ctx, tx, params.PaymentID)
	if err != nil {
		return err
	}
	if len(holds) == 0 {
		return ErrNoReservations
	}
	heldSeats := make(map[uint64]struct{}, len(holds))
	for _, h := range holds {
		if h.Expired(params.Now.UTC()) {
			return ErrHoldsExpired
		}
		heldSeats[h.SeatID] = struct{}{}
	}
	if len(params.Tickets) != len(holds) {
		return ErrNoReservations
	}
	for _, t := range params.Tickets {
		if _, ok := heldSeats[t.SeatID]; !ok {
			return ErrNoReservations
		}
	}

	if err := ConfirmByPaymentTx(ctx, tx, params.PaymentID, params.TransactionID); err != nil {
		return err
	}

	insert := `INSERT INTO tickets (id, user_id, showtime_id, seat_id, price, status, booking_code, qr_payload, transaction_id, booking_time) VALUES `
	args := make([]any, 0, len(params.Tickets)*10)
	for i, t := range params.Tickets {
		if i > 0 {
			insert += ","
		}
		insert += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, t.ID, nullableID(t.UserID), t.ShowtimeID, t.SeatID, t.Price,
			model.StatusConfirmed, t.BookingCode, t.QRPayload, params.TransactionID, params.Now.UTC())
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = 'success', gateway_ref = ? WHERE id = ?`,
		params.Gateway.TransactionNo, params.TransactionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'success', transaction_no = ?, bank_code = ?, card_type = ?, pay_date = ?, response_code = ?
		 WHERE id = ?`,
		emptyToNil(params.Gateway.TransactionNo), emptyToNil(params.Gateway.BankCode),
		emptyToNil(params.Gateway.CardType), emptyToNil(params.Gateway.PayDate),
		emptyToNil(params.Gateway.ResponseCode), params.PaymentID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// BookingCodeByPayment returns the booking code of the tickets issued for
// a settled payment.  The idempotency gate uses this to echo the original
// result to duplicate callbacks.  Returns ErrNotFound when the payment
// produced no tickets.
func (r *TicketRepo) BookingCodeByPayment(ctx context.Context, paymentID uint64) (string, error) {
	const q = `SELECT t.booking_code FROM tickets t
	           JOIN transactions x ON x.id = t.transaction_id
	           WHERE x.payment_id = ? LIMIT 1`
	var code string
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return code, nil
}

// BookingCodeExists reports whether a booking code is already taken.  The
// issuer retries generation on collision.
func (r *TicketRepo) BookingCodeExists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM tickets WHERE booking_code = ? LIMIT 1`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const ticketColumns = `id, user_id, showtime_id, seat_id, price, status, booking_code, qr_payload, transaction_id, booking_time`

func scanTicket(scan func(dest ...any) error) (model.Ticket, error) {
	var t model.Ticket
	var userID sql.NullInt64
	err := scan(&t.ID, &userID, &t.ShowtimeID, &t.SeatID, &t.Price, &t.Status,
		&t.BookingCode, &t.QRPayload, &t.TransactionID, &t.BookingTime)
	if err != nil {
		return model.Ticket{}, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		t.UserID = &v
	}
	return t, nil
}

// GetByID fetches one ticket.  Returns ErrNotFound when absent.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListByUser returns a user's tickets, newest purchase first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY booking_time DESC, seat_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
