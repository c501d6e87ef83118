// Package model defines the domain entities persisted by the booking core.
// Every enumeration in this package has exactly one canonical lower-case
// spelling; values arriving over the wire in any other casing are rejected
// at the boundary by the Parse helpers below.
package model

import "fmt"

// Hold and ticket status values.  A pending hold past its expiry is
// logically expired even though the row may still carry "pending" until
// the reaper removes it.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Payment status values.  Success and failed are terminal: once a payment
// reaches either, later gateway callbacks must not rewrite it.
const (
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

// Payment methods accepted by the orchestrator.  Only vnpay produces a
// gateway redirect URL; the others are settled out-of-band.
const (
	MethodVNPay = "vnpay"
	MethodCash  = "cash"
	MethodMomo  = "momo"
	MethodBank  = "bank"
	MethodZalo  = "zalo"
)

// Seat types.  A couple seat spans two physical columns but is stored as a
// single seat record carrying this tag.
const (
	SeatRegular = "regular"
	SeatVIP     = "vip"
	SeatCouple  = "couple"
)

// ParsePaymentMethod normalises and validates a payment method string.
// It folds the input to lower-case so that older clients sending "VNPAY"
// keep working, but rejects anything outside the canonical set.
func ParsePaymentMethod(s string) (string, error) {
	switch lower(s) {
	case MethodVNPay:
		return MethodVNPay, nil
	case MethodCash:
		return MethodCash, nil
	case MethodMomo:
		return MethodMomo, nil
	case MethodBank:
		return MethodBank, nil
	case MethodZalo:
		return MethodZalo, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// ParseSeatType validates a seat type string against the canonical set.
func ParseSeatType(s string) (string, error) {
	switch lower(s) {
	case SeatRegular:
		return SeatRegular, nil
	case SeatVIP:
		return SeatVIP, nil
	case SeatCouple:
		return SeatCouple, nil
	}
	return "", fmt.Errorf("unknown seat type %q", s)
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
