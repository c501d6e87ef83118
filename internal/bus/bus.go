package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "seats."

// Deliverer receives decoded events for local fan-out.  The WebSocket hub
// implements it; the indirection keeps this package free of connection
// concerns.
type Deliverer interface {
	Deliver(showtimeID uint64, payload []byte)
}

// Bus publishes seat events.  With a Redis client it routes every event
// through pub/sub so all nodes see it; without one it delivers straight to
// the local hub, which is the single-node mode.
type Bus struct {
	hub Deliverer
	rdb *redis.Client
}

// New returns a Bus delivering to hub.  rdb may be nil for single-node
// deployments.
func New(hub Deliverer, rdb *redis.Client) *Bus {
	return &Bus{hub: hub, rdb: rdb}
}

// Publish stamps and dispatches an event.  Publishing never blocks on slow
// subscribers; local delivery drops per-client when buffers are full.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := e.Marshal()
	if err != nil {
		return err
	}
	if b.rdb != nil {
		return b.rdb.Publish(ctx, channelPrefix+strconv.FormatUint(e.ShowtimeID, 10), payload).Err()
	}
	b.hub.Deliver(e.ShowtimeID, payload)
	return nil
}

// Run subscribes to seats.* and feeds received events into the local hub.
// It blocks until ctx is cancelled and resubscribes after errors, so a
// Redis restart only delays events instead of killing the fan-out.  No-op
// without a Redis client.
func (b *Bus) Run(ctx context.Context) {
	if b.rdb == nil {
		return
	}
	for {
		if err := b.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[bus] subscription lost: %v, retrying in 3s", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bus) consume(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64)
			if err != nil {
				log.Printf("[bus] ignoring message on channel %q: %v", msg.Channel, err)
				continue
			}
			// Reject frames that are not events before handing them out.
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				log.Printf("[bus] dropping malformed payload on %q: %v", msg.Channel, err)
				continue
			}
			b.hub.Deliver(id, []byte(msg.Payload))
		}
	}
}
