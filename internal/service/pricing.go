// Package service holds the booking core's business logic: reserving
// seats, orchestrating payments and issuing tickets.  Services talk to
// storage through small interfaces so tests can run against fakes.
package service

import (
	"fmt"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// PriceFor computes a seat's price in VND from the showtime base price.
// VIP seats cost 1.5x, couple seats 2x.  Integer arithmetic keeps totals
// exact; VND has no subunit.
func PriceFor(seatType string, basePrice int64) (int64, error) {
	switch seatType {
	case model.SeatRegular:
		return basePrice, nil
	case model.SeatVIP:
		return basePrice * 3 / 2, nil
	case model.SeatCouple:
		return basePrice * 2, nil
	default:
		return 0, fmt.Errorf("unknown seat type %q", seatType)
	}
}
