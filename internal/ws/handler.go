package ws

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// SeatLister provides the hold snapshot pushed to a client right after it
// joins a room.  Implemented by the reservation service.
type SeatLister interface {
	Snapshot(ctx context.Context, showtimeID uint64) ([]model.Hold, error)
}

// Handler upgrades HTTP requests into showtime room subscriptions.
type Handler struct {
	hub      *Hub
	lister   SeatLister
	reserver Reserver
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler serving rooms from hub.
func NewHandler(hub *Hub, lister SeatLister, reserver Reserver) *Handler {
	return &Handler{
		hub:      hub,
		lister:   lister,
		reserver: reserver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers pick their own origin; access control lives in
			// the CORS middleware in front of the router.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Subscribe handles GET /ws/seats/:showtime_id.  The session identity
// comes from the session_id query parameter; anonymous connections get a
// fresh one.  The first frame the client receives is initial_data with
// the current holds for the showtime.
func (h *Handler) Subscribe(c echo.Context) error {
	showtimeID, err := strconv.ParseUint(c.Param("showtime_id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	var userID *uint64
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
		}
		userID = &id
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("[ws] upgrade failed showtime=%d: %v", showtimeID, err)
		return err
	}

	client := newClient(h.hub, conn, showtimeID, sessionID, userID, h.reserver)
	h.hub.Register(client)
	go client.writePump()
	h.sendInitial(client)
	go client.readPump()
	return nil
}

// Status handles GET /ws/status/:showtime_id with the live subscriber
// count, mostly for dashboards and smoke tests.
func (h *Handler) Status(c echo.Context) error {
	showtimeID, err := strconv.ParseUint(c.Param("showtime_id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id": showtimeID,
		"subscribers": h.hub.Count(showtimeID),
	})
}

func (h *Handler) sendInitial(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	holds, err := h.lister.Snapshot(ctx, client.showtimeID)
	if err != nil {
		log.Printf("[ws] snapshot failed showtime=%d: %v", client.showtimeID, err)
		client.sendError("could not load seat state")
		return
	}
	client.sendEvent(bus.EventInitialData, map[string]any{
		"user_session": client.sessionID,
		"holds":        holds,
	})
}
