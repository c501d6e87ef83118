package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/cinema-booking/internal/handler" // import the handlers that implement business logic
	"github.com/iliyamo/cinema-booking/internal/ws"      // WebSocket subscription handlers
)

// RegisterRoutes registers routes that do not belong to a feature group.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterReservations registers the seat-hold endpoints under /v1.
// Clients identify themselves by session_id, so no JWT middleware is
// applied; guests hold seats too.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler) {
	g := e.Group("/v1/reservations")
	// Hold a single seat.
	g.POST("", r.Reserve)
	// Hold several seats of one showtime atomically.
	g.POST("/multiple", r.ReserveBulk)
	// Release the session's holds on selected seats.
	g.DELETE("/:showtime_id", r.Cancel)
	// Current hold snapshot of a showtime (same view as initial_data).
	g.GET("/:showtime_id", r.Snapshot)
}

// RegisterPayments registers payment creation, the VNPay callbacks and
// status lookups under /v1/payments.  The return and IPN routes must stay
// publicly reachable; VNPay calls them directly.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler) {
	g := e.Group("/v1/payments")
	g.POST("/create", p.Create)
	g.GET("/vnpay/return", p.Return)
	g.GET("/vnpay/ipn", p.IPN)
	g.GET("/payment-status/:order_id", p.Status)
}

// RegisterTickets registers ticket lookups under /v1/tickets.
func RegisterTickets(e *echo.Echo, t *handler.TicketHandler) {
	g := e.Group("/v1/tickets")
	g.GET("/my", t.My)
	g.GET("/:id/qr", t.QR)
}

// RegisterWS registers the live seat-map subscription endpoints.
func RegisterWS(e *echo.Echo, h *ws.Handler) {
	e.GET("/ws/seats/:showtime_id", h.Subscribe)
	e.GET("/ws/status/:showtime_id", h.Status)
}
