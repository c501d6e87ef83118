package model

import "time"

// Hold represents a time-bounded, session-owned reservation of one seat for
// one showtime.  At most one live hold (pending and not expired, or
// confirmed) may exist per (showtime, seat); the holds table enforces this
// with a unique key over a generated "live" column.
//
// Lifecycle: created pending with expires_at = now + TTL; moved to
// confirmed by the ticket issuer during payment settlement; removed by the
// reaper or an owner cancellation while still pending.  Confirmed holds are
// never deleted.
type Hold struct {
	ID            uint64    `json:"id"`             // holds.id
	ShowtimeID    uint64    `json:"showtime_id"`    // holds.showtime_id
	SeatID        uint64    `json:"seat_id"`        // holds.seat_id
	SessionID     string    `json:"user_session"`   // holds.session_id, opaque client token
	UserID        *uint64   `json:"user_id"`        // holds.user_id (nullable for guests)
	Status        string    `json:"status"`         // pending | confirmed | cancelled
	ReservedAt    time.Time `json:"reserved_at"`    // holds.reserved_at (UTC)
	ExpiresAt     time.Time `json:"expires_at"`     // holds.expires_at (UTC)
	PaymentID     *uint64   `json:"payment_id"`     // holds.payment_id, set by BindPayment
	TransactionID *uint64   `json:"transaction_id"` // holds.transaction_id, set on confirmation
}

// Expired reports whether a pending hold has passed its deadline at the
// given instant.  Confirmed holds never expire.
func (h *Hold) Expired(now time.Time) bool {
	return h.Status == StatusPending && !now.Before(h.ExpiresAt)
}

// HoldRequest carries the caller-supplied fields for creating one hold.
type HoldRequest struct {
	ShowtimeID uint64  `json:"showtime_id"`
	SeatID     uint64  `json:"seat_id"`
	SessionID  string  `json:"session_id"`
	UserID     *uint64 `json:"user_id,omitempty"`
}
