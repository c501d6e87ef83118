package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking/internal/gateway"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
	"github.com/iliyamo/cinema-booking/internal/service"
)

// PaymentHandler exposes payment creation, the VNPay return/IPN callbacks
// and order status lookups.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: svc}
}

type createPaymentReq struct {
	SessionID string  `json:"session_id"`
	Method    string  `json:"method"`
	OrderDesc string  `json:"order_desc"`
	Language  string  `json:"language"`
	BankCode  string  `json:"bank_code"`
	UserID    *uint64 `json:"user_id"`
}

// Create opens a payment for the session's pending holds and, for VNPay,
// returns the redirect URL.
// POST /payments/create
func (h *PaymentHandler) Create(c echo.Context) error {
	var req createPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
	}
	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported payment method"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	resp, err := h.Payments.Create(ctx, model.PaymentRequest{
		SessionID: req.SessionID,
		Method:    method,
		OrderDesc: req.OrderDesc,
		Language:  req.Language,
		BankCode:  req.BankCode,
		UserID:    req.UserID,
	}, c.RealIP())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Return handles the browser redirect back from VNPay.  The customer sees
// the settlement outcome; the IPN may already have done the actual work.
// GET /payments/vnpay/return
func (h *PaymentHandler) Return(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 35*time.Second)
	defer cancel()

	result, err := h.Payments.HandleCallback(ctx, c.QueryParams())
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// IPN handles VNPay's server-to-server notification.  Per the gateway
// contract the HTTP status is always 200; the outcome travels in RspCode,
// and anything other than "00" makes VNPay retry later.
// GET /payments/vnpay/ipn
func (h *PaymentHandler) IPN(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 35*time.Second)
	defer cancel()

	if _, err := h.Payments.HandleCallback(ctx, c.QueryParams()); err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidSignature):
			return c.JSON(http.StatusOK, echo.Map{"RspCode": "97", "Message": "Invalid signature"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusOK, echo.Map{"RspCode": "01", "Message": "Order not found"})
		case errors.Is(err, service.ErrBusy):
			return c.JSON(http.StatusOK, echo.Map{"RspCode": "99", "Message": "Busy, retry later"})
		default:
			c.Logger().Error(err)
			return c.JSON(http.StatusOK, echo.Map{"RspCode": "99", "Message": "Unknown error"})
		}
	}
	// A recorded failure is still a processed notification.
	return c.JSON(http.StatusOK, echo.Map{"RspCode": "00", "Message": "Confirm success"})
}

// Status returns the current state of an order.
// GET /payments/payment-status/:order_id
func (h *PaymentHandler) Status(c echo.Context) error {
	orderID := c.Param("order_id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	payment, err := h.Payments.Status(ctx, orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_id":   payment.OrderID,
		"status":     payment.Status,
		"amount":     payment.Amount,
		"method":     payment.Method,
		"created_at": payment.CreatedAt,
		"expires_at": payment.ExpiresAt,
	})
}
