package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		showtimes: map[uint64]model.Showtime{
			10: {ID: 10, MovieID: 3, RoomID: 1, BasePrice: 90000, StartsAt: time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)},
		},
		seats: map[uint64]model.Seat{
			101: {ID: 101, RoomID: 1, SeatCode: "A1", SeatType: model.SeatRegular},
			102: {ID: 102, RoomID: 1, SeatCode: "A2", SeatType: model.SeatVIP},
			201: {ID: 201, RoomID: 2, SeatCode: "B1", SeatType: model.SeatRegular},
		},
	}
}

func TestReserveBroadcastsHold(t *testing.T) {
	expires := time.Now().UTC().Add(10 * time.Minute)
	holds := &fakeHoldStore{
		tryCreateFn: func(_ context.Context, req model.HoldRequest, ttl time.Duration, now time.Time) (*model.Hold, error) {
			assert.Equal(t, 10*time.Minute, ttl)
			return &model.Hold{ID: 1, ShowtimeID: req.ShowtimeID, SeatID: req.SeatID,
				SessionID: req.SessionID, Status: model.StatusPending, ExpiresAt: expires}, nil
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	hold, err := svc.Reserve(context.Background(), model.HoldRequest{ShowtimeID: 10, SeatID: 101, SessionID: "sess-a"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, hold.Status)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, bus.EventSeatsReserved, events[0].Type)
	assert.Equal(t, uint64(10), events[0].ShowtimeID)
	assert.Equal(t, []uint64{101}, events[0].Data["seat_ids"])
	assert.Equal(t, "sess-a", events[0].Data["user_session"])
}

func TestReserveRejectsSeatFromAnotherRoom(t *testing.T) {
	holds := &fakeHoldStore{
		tryCreateFn: func(context.Context, model.HoldRequest, time.Duration, time.Time) (*model.Hold, error) {
			t.Fatal("store must not be touched for an invalid seat")
			return nil, nil
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	_, err := svc.Reserve(context.Background(), model.HoldRequest{ShowtimeID: 10, SeatID: 201, SessionID: "sess-a"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, pub.published())
}

func TestReserveConflictDoesNotBroadcast(t *testing.T) {
	holds := &fakeHoldStore{
		tryCreateFn: func(context.Context, model.HoldRequest, time.Duration, time.Time) (*model.Hold, error) {
			return nil, repository.ErrSeatHeld
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	_, err := svc.Reserve(context.Background(), model.HoldRequest{ShowtimeID: 10, SeatID: 101, SessionID: "sess-b"})
	assert.ErrorIs(t, err, repository.ErrSeatHeld)
	assert.Empty(t, pub.published())
}

func TestReserveBulkBroadcastsAllSeats(t *testing.T) {
	expires := time.Now().UTC().Add(10 * time.Minute)
	holds := &fakeHoldStore{
		tryCreateBulkFn: func(_ context.Context, reqs []model.HoldRequest, _ time.Duration, _ time.Time) ([]model.Hold, error) {
			out := make([]model.Hold, 0, len(reqs))
			for i, r := range reqs {
				out = append(out, model.Hold{ID: uint64(i + 1), ShowtimeID: r.ShowtimeID, SeatID: r.SeatID,
					SessionID: r.SessionID, Status: model.StatusPending, ExpiresAt: expires})
			}
			return out, nil
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	got, err := svc.ReserveBulk(context.Background(), 10, []uint64{101, 102}, "sess-a", nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, bus.EventSeatsReserved, events[0].Type)
	assert.Equal(t, []uint64{101, 102}, events[0].Data["seat_ids"])
	assert.Equal(t, "sess-a", events[0].Data["user_session"])
}

func TestCancelBroadcastsReleasedSeats(t *testing.T) {
	holds := &fakeHoldStore{
		cancelByOwnerFn: func(_ context.Context, showtimeID uint64, seatIDs []uint64, sessionID string) ([]uint64, error) {
			assert.Equal(t, "sess-a", sessionID)
			return seatIDs, nil
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	released, err := svc.Cancel(context.Background(), 10, []uint64{101}, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, []uint64{101}, released)

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, bus.EventSeatReleased, events[0].Type)
	assert.Equal(t, "user_cancelled", events[0].Data["reason"])
	assert.Equal(t, []uint64{101}, events[0].Data["seat_ids"])
}

func TestCancelNothingReleasedStaysQuiet(t *testing.T) {
	holds := &fakeHoldStore{
		cancelByOwnerFn: func(context.Context, uint64, []uint64, string) ([]uint64, error) {
			return []uint64{}, nil
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	released, err := svc.Cancel(context.Background(), 10, []uint64{101}, "sess-a")
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Empty(t, pub.published())
}

func TestCancelForbiddenPropagates(t *testing.T) {
	holds := &fakeHoldStore{
		cancelByOwnerFn: func(context.Context, uint64, []uint64, string) ([]uint64, error) {
			return nil, repository.ErrForbidden
		},
	}
	pub := &fakePublisher{}
	svc := NewReservationService(holds, testCatalog(), pub, 10*time.Minute)

	_, err := svc.Cancel(context.Background(), 10, []uint64{101}, "sess-b")
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Empty(t, pub.published())
}

func TestSnapshotUnknownShowtime(t *testing.T) {
	holds := &fakeHoldStore{
		listFn: func(context.Context, uint64, time.Time) ([]model.Hold, error) {
			t.Fatal("list must not run for an unknown showtime")
			return nil, nil
		},
	}
	svc := NewReservationService(holds, testCatalog(), &fakePublisher{}, 10*time.Minute)

	_, err := svc.Snapshot(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
