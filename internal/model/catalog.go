package model

import "time"

// Showtime is one scheduled presentation of a movie in a room.  The row is
// owned by the catalog collaborator; the booking core only reads it and
// treats it as immutable once referenced by a hold.
type Showtime struct {
	ID        uint64    `json:"id"`         // showtimes.id
	MovieID   uint64    `json:"movie_id"`   // showtimes.movie_id
	RoomID    uint64    `json:"room_id"`    // showtimes.room_id
	StartsAt  time.Time `json:"starts_at"`  // showtimes.starts_at (UTC)
	BasePrice int64     `json:"base_price"` // showtimes.base_price, regular-seat price
	Language  string    `json:"language"`   // showtimes.language
	Format    string    `json:"format"`     // showtimes.format (e.g. "2D", "IMAX")
}

// Seat is one selectable seat of a room.  Couple seats occupy two adjacent
// columns physically but are a single record here.  Owned by the catalog
// collaborator.
type Seat struct {
	ID       uint64 `json:"id"`        // seats.id
	RoomID   uint64 `json:"room_id"`   // seats.room_id
	SeatCode string `json:"seat_code"` // seats.seat_code (e.g. "G7")
	SeatType string `json:"seat_type"` // regular | vip | couple
}
