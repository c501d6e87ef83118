// Package reaper removes expired seat holds in the background.  Exactly
// one reaper runs per deployment; hold reads filter on expiry themselves,
// so the reaper is garbage collection, not correctness.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/cinema-booking/internal/bus"
)

// Store is the subset of hold persistence the reaper needs.
// *repository.HoldRepo is the production implementation.
type Store interface {
	SweepExpired(ctx context.Context, now time.Time) (map[uint64][]uint64, error)
}

// PaymentSweeper cancels pending payments whose checkout window has
// passed.  *repository.PaymentRepo is the production implementation; may
// be nil to skip payment expiry.
type PaymentSweeper interface {
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}

// Publisher pushes release events to subscribers.  *bus.Bus is the
// production implementation.
type Publisher interface {
	Publish(ctx context.Context, e bus.Event) error
}

// Reaper periodically sweeps expired pending holds and broadcasts the
// released seats per showtime.
type Reaper struct {
	store      Store
	payments   PaymentSweeper
	bus        Publisher
	period     time.Duration
	errBackoff time.Duration
	now        func() time.Time
}

// New returns a Reaper sweeping every period.  After a failed sweep the
// next attempt waits errBackoff instead, so a struggling database is not
// hammered on the regular cadence.
func New(store Store, payments PaymentSweeper, bus Publisher, period, errBackoff time.Duration) *Reaper {
	return &Reaper{
		store:      store,
		payments:   payments,
		bus:        bus,
		period:     period,
		errBackoff: errBackoff,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	log.Printf("[reaper] started, period=%s", r.period)
	wait := r.period
	for {
		select {
		case <-ctx.Done():
			log.Printf("[reaper] stopped")
			return
		case <-time.After(wait):
		}
		if err := r.Tick(ctx); err != nil {
			log.Printf("[reaper] sweep failed: %v", err)
			wait = r.errBackoff
		} else {
			wait = r.period
		}
	}
}

// Tick performs one sweep.  Exported so tests can drive the reaper
// without timers.
func (r *Reaper) Tick(ctx context.Context) error {
	now := r.now()
	if r.payments != nil {
		// Abandoned checkouts expire on the same cadence as holds.
		if n, err := r.payments.ExpirePending(ctx, now); err != nil {
			log.Printf("[reaper] payment expiry failed: %v", err)
		} else if n > 0 {
			log.Printf("[reaper] cancelled %d abandoned payments", n)
		}
	}
	released, err := r.store.SweepExpired(ctx, now)
	if err != nil {
		return err
	}
	for showtimeID, seats := range released {
		log.Printf("[reaper] released %d expired holds showtime=%d", len(seats), showtimeID)
		if err := r.bus.Publish(ctx, bus.Event{
			Type:       bus.EventSeatReleased,
			ShowtimeID: showtimeID,
			Data: map[string]any{
				"seat_ids": seats,
				"reason":   "expired",
			},
		}); err != nil {
			log.Printf("[reaper] broadcast showtime=%d failed: %v", showtimeID, err)
		}
	}
	return nil
}
