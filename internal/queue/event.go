// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketsIssuedEvent is published after a payment settles and its tickets
// are committed. It carries enough for downstream consumers to send the
// confirmation email or feed analytics without querying the primary
// database.
type TicketsIssuedEvent struct {
	OrderID     string   `json:"order_id"`
	BookingCode string   `json:"booking_code"`
	UserID      *uint64  `json:"user_id,omitempty"`
	SessionID   string   `json:"session_id"`
	ShowtimeID  uint64   `json:"showtime_id"`
	MovieID     uint64   `json:"movie_id"`
	StartsAt    string   `json:"starts_at"`
	SeatCodes   []string `json:"seats"`
	TotalAmount int64    `json:"total_amount"`
	IssuedAt    string   `json:"issued_at"`
}
