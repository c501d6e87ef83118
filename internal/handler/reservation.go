package handler

import (
	"context" // context with cancellation for service calls
	"net/http"
	"strconv" // parsing path parameters
	"strings"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// ReservationHandler exposes the seat-hold endpoints.  Clients identify
// themselves by an opaque session_id; a logged-in client may also send its
// user_id so the hold survives into ticket ownership.
type ReservationHandler struct {
	Reservations *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{Reservations: svc}
}

// ----- DTOs -----

type reserveReq struct {
	ShowtimeID uint64  `json:"showtime_id"`
	SeatID     uint64  `json:"seat_id"`
	SessionID  string  `json:"session_id"`
	UserID     *uint64 `json:"user_id"`
}

type reserveBulkReq struct {
	ShowtimeID uint64   `json:"showtime_id"`
	SeatIDs    []uint64 `json:"seat_ids"`
	SessionID  string   `json:"session_id"`
	UserID     *uint64  `json:"user_id"`
}

type cancelReq struct {
	SeatIDs   []uint64 `json:"seat_ids"`
	SessionID string   `json:"session_id"`
}

// parseSeatIDs splits a comma-separated seat_ids query value.
func parseSeatIDs(raw string) ([]uint64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil || id == 0 {
			return nil, strconv.ErrSyntax
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Reserve places a hold on one seat.
// POST /reservations
func (h *ReservationHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ShowtimeID == 0 || req.SeatID == 0 || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id, seat_id and session_id are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hold, err := h.Reservations.Reserve(ctx, model.HoldRequest{
		ShowtimeID: req.ShowtimeID,
		SeatID:     req.SeatID,
		SessionID:  req.SessionID,
		UserID:     req.UserID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, hold)
}

// ReserveBulk places holds on several seats of one showtime, all or
// nothing.
// POST /reservations/multiple
func (h *ReservationHandler) ReserveBulk(c echo.Context) error {
	var req reserveBulkReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ShowtimeID == 0 || len(req.SeatIDs) == 0 || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id, seat_ids and session_id are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	holds, err := h.Reservations.ReserveBulk(ctx, req.ShowtimeID, req.SeatIDs, req.SessionID, req.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"holds": holds})
}

// Cancel releases the session's pending holds on the given seats.  Seats
// and session come from the query string (DELETE bodies are dropped by
// many proxies); a JSON body is accepted as a fallback.
// DELETE /reservations/:showtime_id?seat_ids=1,2,3&session_id=...
func (h *ReservationHandler) Cancel(c echo.Context) error {
	showtimeID, err := strconv.ParseUint(c.Param("showtime_id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var req cancelReq
	if raw := c.QueryParam("seat_ids"); raw != "" {
		req.SeatIDs, err = parseSeatIDs(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat_ids"})
		}
		req.SessionID = c.QueryParam("session_id")
	} else if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.SeatIDs) == 0 || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids and session_id are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	released, err := h.Reservations.Cancel(ctx, showtimeID, req.SeatIDs, req.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Snapshot returns the live holds of a showtime, the same view a fresh
// WebSocket subscriber gets as initial_data.
// GET /reservations/:showtime_id
func (h *ReservationHandler) Snapshot(c echo.Context) error {
	showtimeID, err := strconv.ParseUint(c.Param("showtime_id"), 10, 64)
	if err != nil || showtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	holds, err := h.Reservations.Snapshot(ctx, showtimeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": showtimeID, "holds": holds})
}
