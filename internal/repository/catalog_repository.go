package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// CatalogRepo reads showtimes and seats.  Those tables are owned by the
// catalog side of the system; the booking core never writes them.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo returns a CatalogRepo bound to the provided database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// ShowtimeByID fetches one showtime.  Returns ErrNotFound when absent.
func (r *CatalogRepo) ShowtimeByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	var s model.Showtime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, movie_id, room_id, starts_at, base_price, language, format
		 FROM showtimes WHERE id = ?`, id).
		Scan(&s.ID, &s.MovieID, &s.RoomID, &s.StartsAt, &s.BasePrice, &s.Language, &s.Format)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// SeatByID fetches one seat.  Returns ErrNotFound when absent.
func (r *CatalogRepo) SeatByID(ctx context.Context, id uint64) (*model.Seat, error) {
	var s model.Seat
	err := r.db.QueryRowContext(ctx,
		`SELECT id, room_id, seat_code, seat_type FROM seats WHERE id = ?`, id).
		Scan(&s.ID, &s.RoomID, &s.SeatCode, &s.SeatType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// SeatsByIDs fetches seats by ID, keyed by ID.  Returns ErrNotFound when
// any requested seat does not exist, so callers can trust the map covers
// the whole input.
func (r *CatalogRepo) SeatsByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Seat, error) {
	if len(ids) == 0 {
		return map[uint64]model.Seat{}, nil
	}
	clause, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, room_id, seat_code, seat_type FROM seats WHERE id IN (`+clause+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make(map[uint64]model.Seat, len(ids))
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.RoomID, &s.SeatCode, &s.SeatType); err != nil {
			return nil, err
		}
		seats[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := seats[id]; !ok {
			return nil, ErrNotFound
		}
	}
	return seats, nil
}
