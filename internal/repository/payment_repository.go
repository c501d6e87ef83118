package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// PaymentRepo provides data access to the payments and transactions
// tables.  A payment and its ledger transaction are created together and
// settle together; the repository keeps both rows in step inside one
// database transaction per operation.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a pending payment together with its paired pending
// transaction.  The generated IDs and timestamps are populated on the
// passed payment; the created transaction is returned.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) (*model.Transaction, error) {
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

	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments (order_id, user_id, session_id, amount, method, status, gateway_url, order_desc, client_ip, expires_at, txn_ref)
		 VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?, ?)`,
		p.OrderID, nullableID(p.UserID), p.SessionID, p.Amount, p.Method,
		p.GatewayURL, p.OrderDesc, p.ClientIP, p.ExpiresAt.UTC(), p.OrderID)
	if err != nil {
		return nil, err
	}
	paymentID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p.ID = uint64(paymentID)
	p.Status = model.PaymentPending

	res, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, total_amount, method, status, payment_id)
		 VALUES (?, ?, ?, 'pending', ?)`,
		nullableID(p.UserID), p.Amount, p.Method, p.ID)
	if err != nil {
		return nil, err
	}
	txnID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	// Read back timestamps populated by the database.
	err = tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM payments WHERE id = ?`, p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return &model.Transaction{
		ID:          uint64(txnID),
		UserID:      p.UserID,
		TotalAmount: p.Amount,
		Method:      p.Method,
		Status:      model.StatusPending,
		PaymentID:   p.ID,
	}, nil
}

// GetByOrderID fetches a payment by its opaque order ID, including the
// VNPay variant fields when the method is vnpay.  Returns ErrNotFound when
// no such order exists.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	const q = `SELECT id, order_id, user_id, session_id, amount, method, status, gateway_url,
	                  order_desc, client_ip, expires_at, created_at, updated_at,
	                  txn_ref, transaction_no, bank_code, card_type, pay_date, response_code
	           FROM payments WHERE order_id = ?`
	var p model.Payment
	var userID sql.NullInt64
	var gatewayURL sql.NullString
	var txnRef, transactionNo, bankCode, cardType, payDate, responseCode sql.NullString
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&p.ID, &p.OrderID, &userID, &p.SessionID, &p.Amount, &p.Method, &p.Status, &gatewayURL,
		&p.OrderDesc, &p.ClientIP, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt,
		&txnRef, &transactionNo, &bankCode, &cardType, &payDate, &responseCode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		p.UserID = &v
	}
	if gatewayURL.Valid {
		p.GatewayURL = &gatewayURL.String
	}
	if p.Method == model.MethodVNPay {
		p.VNPay = &model.VNPayDetails{
			TxnRef:        txnRef.String,
			TransactionNo: transactionNo.String,
			BankCode:      bankCode.String,
			CardType:      cardType.String,
			PayDate:       payDate.String,
			ResponseCode:  responseCode.String,
		}
	}
	return &p, nil
}

// TransactionByPayment fetches the ledger transaction paired with a
// payment.  Returns ErrNotFound when absent.
func (r *PaymentRepo) TransactionByPayment(ctx context.Context, paymentID uint64) (*model.Transaction, error) {
	const q = `SELECT id, user_id, total_amount, method, status, payment_id, gateway_ref, created_at
	           FROM transactions WHERE payment_id = ?`
	var t model.Transaction
	var userID sql.NullInt64
	var gatewayRef sql.NullString
	err := r.db.QueryRowContext(ctx, q, paymentID).Scan(
		&t.ID, &userID, &t.TotalAmount, &t.Method, &t.Status, &t.PaymentID, &gatewayRef, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		t.UserID = &v
	}
	t.GatewayRef = gatewayRef.String
	return &t, nil
}

// MarkFailed moves a pending payment and its transaction to failed,
// recording the gateway transaction number when one was assigned.  A
// payment already in a terminal state is left untouched, which keeps
// duplicate callbacks idempotent at the storage layer too.
func (r *PaymentRepo) MarkFailed(ctx context.Context, orderID, transactionNo string) error {
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

	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'failed', transaction_no = ? WHERE order_id = ? AND status = 'pending'`,
		emptyToNil(transactionNo), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = 'failed'
			 WHERE payment_id = (SELECT id FROM payments WHERE order_id = ?)`, orderID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ExpirePending cancels pending payments older than their expiry.  This
// keeps abandoned gateway redirects from accumulating; it does not touch
// holds, which expire on their own TTL.
func (r *PaymentRepo) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'cancelled' WHERE status = 'pending' AND expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// emptyToNil maps an absent gateway field to SQL NULL.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
