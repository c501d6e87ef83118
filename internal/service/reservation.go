package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// HoldStore is the hold persistence the reservation and payment services
// depend on.  *repository.HoldRepo is the production implementation.
type HoldStore interface {
	List(ctx context.Context, showtimeID uint64, now time.Time) ([]model.Hold, error)
	TryCreate(ctx context.Context, req model.HoldRequest, ttl time.Duration, now time.Time) (*model.Hold, error)
	TryCreateBulk(ctx context.Context, reqs []model.HoldRequest, ttl time.Duration, now time.Time) ([]model.Hold, error)
	CancelByOwner(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string) ([]uint64, error)
	PendingBySession(ctx context.Context, sessionID string, now time.Time) ([]model.Hold, error)
	PendingByPayment(ctx context.Context, paymentID uint64) ([]model.Hold, error)
	BindPayment(ctx context.Context, sessionID string, paymentID uint64, now time.Time) (int64, error)
}

// Catalog reads showtime and seat rows.  *repository.CatalogRepo is the
// production implementation.
type Catalog interface {
	ShowtimeByID(ctx context.Context, id uint64) (*model.Showtime, error)
	SeatByID(ctx context.Context, id uint64) (*model.Seat, error)
	SeatsByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Seat, error)
}

// Publisher pushes seat events to subscribers.  *bus.Bus is the production
// implementation.
type Publisher interface {
	Publish(ctx context.Context, e bus.Event) error
}

// ReservationService places, cancels and lists seat holds.  Broadcasts
// happen after the database commit and are best-effort: a lost event
// costs a UI refresh, never a booking.
type ReservationService struct {
	holds   HoldStore
	catalog Catalog
	bus     Publisher
	ttl     time.Duration
	now     func() time.Time
}

// NewReservationService wires the reservation service.  ttl is how long a
// pending hold lives before the reaper may remove it.
func NewReservationService(holds HoldStore, catalog Catalog, bus Publisher, ttl time.Duration) *ReservationService {
	return &ReservationService{
		holds:   holds,
		catalog: catalog,
		bus:     bus,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Reserve places one pending hold.  The seat must exist and belong to the
// showtime's room; conflicts surface as repository.ErrSeatHeld or
// repository.ErrSeatSold.
func (s *ReservationService) Reserve(ctx context.Context, req model.HoldRequest) (*model.Hold, error) {
	if err := s.validateSeats(ctx, req.ShowtimeID, []uint64{req.SeatID}); err != nil {
		return nil, err
	}
	hold, err := s.holds.TryCreate(ctx, req, s.ttl, s.now())
	if err != nil {
		return nil, err
	}
	s.broadcastReserved(ctx, req.ShowtimeID, []uint64{req.SeatID}, req.SessionID, hold.ExpiresAt)
	return hold, nil
}

// ReserveBulk places holds on several seats of one showtime atomically:
// either every seat is held or none is.
func (s *ReservationService) ReserveBulk(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string, userID *uint64) ([]model.Hold, error) {
	if err := s.validateSeats(ctx, showtimeID, seatIDs); err != nil {
		return nil, err
	}
	reqs := make([]model.HoldRequest, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		reqs = append(reqs, model.HoldRequest{
			ShowtimeID: showtimeID,
			SeatID:     seatID,
			SessionID:  sessionID,
			UserID:     userID,
		})
	}
	holds, err := s.holds.TryCreateBulk(ctx, reqs, s.ttl, s.now())
	if err != nil {
		return nil, err
	}
	if len(holds) > 0 {
		s.broadcastReserved(ctx, showtimeID, seatIDs, sessionID, holds[0].ExpiresAt)
	}
	return holds, nil
}

// Cancel releases the pending holds a session owns on the given seats.
// Seats held by other sessions make the whole call fail with
// repository.ErrForbidden.
func (s *ReservationService) Cancel(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string) ([]uint64, error) {
	released, err := s.holds.CancelByOwner(ctx, showtimeID, seatIDs, sessionID)
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		s.publish(ctx, bus.Event{
			Type:       bus.EventSeatReleased,
			ShowtimeID: showtimeID,
			Data: map[string]any{
				"seat_ids": released,
				"reason":   "user_cancelled",
			},
		})
	}
	return released, nil
}

// Snapshot returns the live holds of a showtime at this instant.
func (s *ReservationService) Snapshot(ctx context.Context, showtimeID uint64) ([]model.Hold, error) {
	if _, err := s.catalog.ShowtimeByID(ctx, showtimeID); err != nil {
		return nil, err
	}
	return s.holds.List(ctx, showtimeID, s.now())
}

// validateSeats checks the showtime exists and every seat belongs to its
// room, so a hold can never reference a seat from another auditorium.
func (s *ReservationService) validateSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) error {
	showtime, err := s.catalog.ShowtimeByID(ctx, showtimeID)
	if err != nil {
		return err
	}
	seats, err := s.catalog.SeatsByIDs(ctx, seatIDs)
	if err != nil {
		return err
	}
	for _, seat := range seats {
		if seat.RoomID != showtime.RoomID {
			return repository.ErrNotFound
		}
	}
	return nil
}

func (s *ReservationService) broadcastReserved(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string, expiresAt time.Time) {
	s.publish(ctx, bus.Event{
		Type:       bus.EventSeatsReserved,
		ShowtimeID: showtimeID,
		Data: map[string]any{
			"seat_ids":     seatIDs,
			"user_session": sessionID,
			"expires_at":   expiresAt,
		},
	})
}

func (s *ReservationService) publish(ctx context.Context, e bus.Event) {
	if err := s.bus.Publish(ctx, e); err != nil {
		log.Printf("[reservation] broadcast %s showtime=%d failed: %v", e.Type, e.ShowtimeID, err)
	}
}
