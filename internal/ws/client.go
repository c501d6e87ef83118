package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/model"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1024
	sendBuffer     = 64
)

// Reserver places a hold on behalf of a connected client.  Implemented by
// the reservation service.
type Reserver interface {
	Reserve(ctx context.Context, req model.HoldRequest) (*model.Hold, error)
}

// Client is one WebSocket subscriber in a showtime room.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	showtimeID uint64
	sessionID  string
	userID     *uint64
	reserver   Reserver
}

// inbound is the envelope clients send us.  Timestamp is opaque: the
// heartbeat ack echoes whatever the client sent.
type inbound struct {
	Type      string `json:"type"`
	SeatID    uint64 `json:"seat_id,omitempty"`
	Timestamp any    `json:"timestamp,omitempty"`
}

func newClient(hub *Hub, conn *websocket.Conn, showtimeID uint64, sessionID string, userID *uint64, reserver Reserver) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.buffer),
		showtimeID: showtimeID,
		sessionID:  sessionID,
		userID:     userID,
		reserver:   reserver,
	}
}

// readPump consumes client frames until the connection dies, answering
// keepalives inline and delegating reserve_seat to the reservation
// service.  It owns all reads on the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error session=%s: %v", c.sessionID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg inbound) {
	switch msg.Type {
	case bus.EventPing:
		c.sendEvent(bus.EventPong, nil)
	case bus.EventHeartbeat:
		var data map[string]any
		if msg.Timestamp != nil {
			data = map[string]any{"timestamp": msg.Timestamp}
		}
		c.sendEvent(bus.EventHeartbeatAck, data)
	case "reserve_seat":
		c.handleReserve(msg.SeatID)
	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) handleReserve(seatID uint64) {
	if seatID == 0 {
		c.sendError("seat_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.reserver.Reserve(ctx, model.HoldRequest{
		ShowtimeID: c.showtimeID,
		SeatID:     seatID,
		SessionID:  c.sessionID,
		UserID:     c.userID,
	})
	if err != nil {
		c.sendError(err.Error())
	}
	// Success is announced to the whole room by the reservation
	// service's broadcast, this client included.
}

// writePump drains the send channel onto the connection and keeps the
// peer alive with pings.  It owns all writes on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendEvent(eventType string, data map[string]any) {
	payload, err := bus.Event{
		Type:       eventType,
		ShowtimeID: c.showtimeID,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	}.Marshal()
	if err != nil {
		return
	}
	c.hub.SendPersonal(c, payload)
}

func (c *Client) sendError(message string) {
	c.sendEvent(bus.EventError, map[string]any{"message": message})
}
