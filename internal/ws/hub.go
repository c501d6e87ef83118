// Package ws serves the live seat-map over WebSocket.  Clients join a room
// per showtime; the hub fans bus events out to every room member without
// ever blocking a publisher on a slow reader.
package ws

import (
	"log"
	"sync"
)

// Hub tracks connected clients grouped by showtime.  It only moves bytes
// into per-client buffers; reading and writing the actual connections is
// the client pumps' job.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uint64]map[*Client]struct{}
	buffer int
}

// NewHub returns an empty hub.  buffer is the per-client send queue size;
// values below 1 fall back to the default.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = sendBuffer
	}
	return &Hub{
		rooms:  make(map[uint64]map[*Client]struct{}),
		buffer: buffer,
	}
}

// Register adds a client to its showtime room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.showtimeID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.showtimeID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a client and closes its send channel.  Safe to call
// more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *Client) {
	room, ok := h.rooms[c.showtimeID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.showtimeID)
	}
	close(c.send)
}

// Broadcast sends payload to every client in the showtime room except
// exclude (which may be nil).  Clients whose buffer is full are evicted
// rather than letting one stalled reader back-pressure the room.
func (h *Hub) Broadcast(showtimeID uint64, payload []byte, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[showtimeID] {
		if c == exclude {
			continue
		}
		select {
		case c.send <- payload:
		default:
			log.Printf("[ws] evicting slow client session=%s showtime=%d", c.sessionID, showtimeID)
			h.drop(c)
		}
	}
}

// SendPersonal sends payload to one client only, dropping it if the
// client's buffer is full.  Clients already unregistered are skipped, so
// a message racing a disconnect never hits a closed channel.
func (h *Hub) SendPersonal(c *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[c.showtimeID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// Count returns the number of clients watching a showtime.
func (h *Hub) Count(showtimeID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[showtimeID])
}

// Deliver routes a bus event to the showtime room.
func (h *Hub) Deliver(showtimeID uint64, payload []byte) {
	h.Broadcast(showtimeID, payload, nil)
}
