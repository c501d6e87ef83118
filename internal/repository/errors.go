// Package repository implements data access for holds, payments,
// transactions and tickets on MySQL.  This file defines the sentinel
// errors shared across repositories and services.  Higher layers compare
// with errors.Is and translate them into HTTP responses at the handler
// boundary; nothing below the handlers knows about status codes.
package repository

import "errors"

// ErrNotFound is returned when a showtime, seat, hold or payment does not
// exist.  Handlers translate it into 404.
var ErrNotFound = errors.New("not found")

// ErrSeatSold is returned when a hold cannot be created because the seat
// already carries a confirmed hold for the showtime.  Handlers translate
// it into 409.
var ErrSeatSold = errors.New("seat already sold")

// ErrSeatHeld is returned when a hold cannot be created because another
// session holds a pending, unexpired hold on the seat.  Handlers translate
// it into 409.
var ErrSeatHeld = errors.New("seat temporarily held")

// ErrForbidden is returned when a session attempts to cancel holds owned
// by a different session.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrNoReservations is returned when payment creation or settlement finds
// no pending holds bound to the session or payment.  During settlement the
// orchestrator marks the payment failed before surfacing this.
var ErrNoReservations = errors.New("no reservations")

// ErrHoldsExpired is returned when settlement finds holds bound to the
// payment whose TTL has passed.  The payment is marked failed; the charge
// is reconciled out-of-band rather than fulfilled late.
var ErrHoldsExpired = errors.New("reservations expired")
