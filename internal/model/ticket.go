package model

import "time"

// Ticket is one confirmed seat of a settled purchase.  Every ticket of the
// same purchase shares one booking code and one transaction ID.  The QR
// payload is a signed JWT carrying the ticket details for offline
// verification at the door; rendering it as an image is left to the QR
// collaborator.
type Ticket struct {
	ID            string    `json:"id"`             // tickets.id (UUID)
	UserID        *uint64   `json:"user_id"`        // tickets.user_id (nullable)
	ShowtimeID    uint64    `json:"showtime_id"`    // tickets.showtime_id
	SeatID        uint64    `json:"seat_id"`        // tickets.seat_id
	Price         int64     `json:"price"`          // tickets.price, base x seat-type multiplier
	Status        string    `json:"status"`         // pending | confirmed | cancelled
	BookingCode   string    `json:"booking_code"`   // tickets.booking_code, shared per purchase
	QRPayload     string    `json:"qr_payload"`     // tickets.qr_payload, signed JWT
	TransactionID uint64    `json:"transaction_id"` // tickets.transaction_id
	BookingTime   time.Time `json:"booking_time"`   // tickets.booking_time (UTC)
}
