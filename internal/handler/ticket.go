package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/service"
)

// TicketHandler exposes ticket lookups for customers: their purchase
// history and the QR payload shown at the door.
type TicketHandler struct {
	Tickets *service.TicketService
}

func NewTicketHandler(svc *service.TicketService) *TicketHandler {
	return &TicketHandler{Tickets: svc}
}

// My lists the tickets of one user, newest first.
// GET /tickets/my?user_id=...
func (h *TicketHandler) My(c echo.Context) error {
	userID, err := strconv.ParseUint(c.QueryParam("user_id"), 10, 64)
	if err != nil || userID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tickets, err := h.Tickets.ListByUser(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// QR returns the signed QR payload of one ticket.
// GET /tickets/:id/qr
func (h *TicketHandler) QR(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ticket, err := h.Tickets.ByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ticket_id":    ticket.ID,
		"booking_code": ticket.BookingCode,
		"qr_payload":   ticket.QRPayload,
	})
}
