// Package bus fans seat-state events out to WebSocket subscribers.  Events
// are scoped per showtime; with Redis configured they also travel between
// nodes over pub/sub channels named seats.{showtime_id}.
package bus

import (
	"encoding/json"
	"time"
)

// Event types carried on the bus and over the WebSocket wire.
const (
	EventInitialData   = "initial_data"
	EventSeatUpdate    = "seat_update"
	EventSeatsReserved = "seats_reserved"
	EventSeatReleased  = "seat_released"
	EventError         = "error"
	EventPing          = "ping"
	EventPong          = "pong"
	EventHeartbeat     = "heartbeat"
	EventHeartbeatAck  = "heartbeat_ack"
)

// Event is one seat-state change addressed to a showtime room.
type Event struct {
	Type       string         `json:"type"`
	ShowtimeID uint64         `json:"showtime_id"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Marshal encodes the event for the wire.
func (e Event) Marshal() ([]byte, error) { return json.Marshal(e) }
