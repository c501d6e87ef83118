package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// respondError translates the service and repository sentinel errors into
// HTTP responses.  Everything unmatched is a 500 with a generic message;
// internals never leak to clients.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrSeatSold):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat already sold"})
	case errors.Is(err, repository.ErrSeatHeld):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat temporarily held by another session"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "seats held by another session"})
	case errors.Is(err, repository.ErrNoReservations):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no reservations for this session"})
	case errors.Is(err, repository.ErrHoldsExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservations expired"})
	case errors.Is(err, service.ErrBusy):
		// Retryable: the settle lock is held by a concurrent callback.
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "settlement in progress, retry shortly"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
