package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking/internal/gateway"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// paymentWindow is how long a customer has to finish checkout before the
// pending payment is considered abandoned.
const paymentWindow = 15 * time.Minute

// settleWait bounds how long a callback waits for a concurrent settlement
// of the same order before giving up with ErrBusy.
const settleWait = 30 * time.Second

// PaymentStore is the payment persistence the orchestrator depends on.
// *repository.PaymentRepo is the production implementation.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) (*model.Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	MarkFailed(ctx context.Context, orderID, transactionNo string) error
}

// Gateway builds checkout URLs and authenticates callbacks.
// *gateway.VNPay is the production implementation.
type Gateway interface {
	BuildPaymentURL(p gateway.BuildParams) (string, error)
	VerifyCallback(query url.Values) (*gateway.CallbackResult, error)
}

// Settler turns a successfully paid order into tickets and can recover
// the booking code of an already settled one.  *TicketService is the
// production implementation.
type Settler interface {
	Issue(ctx context.Context, payment *model.Payment, cb *gateway.CallbackResult) (string, error)
	BookingCode(ctx context.Context, paymentID uint64) (string, error)
}

// PaymentService owns the payment lifecycle: creating pending payments
// bound to a session's holds, and settling gateway callbacks exactly once
// per order no matter how often VNPay retries them.
type PaymentService struct {
	holds    HoldStore
	catalog  Catalog
	payments PaymentStore
	gateway  Gateway
	issuer   Settler
	locks    *orderLocks
	now      func() time.Time
}

// NewPaymentService wires the payment orchestrator.
func NewPaymentService(holds HoldStore, catalog Catalog, payments PaymentStore, gw Gateway, issuer Settler) *PaymentService {
	return &PaymentService{
		holds:    holds,
		catalog:  catalog,
		payments: payments,
		gateway:  gw,
		issuer:   issuer,
		locks:    newOrderLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create prices the session's pending holds, opens a pending payment with
// its ledger transaction, and binds the holds to it.  For VNPay the
// response carries the redirect URL.  Fails with
// repository.ErrNoReservations when the session holds nothing.
func (s *PaymentService) Create(ctx context.Context, req model.PaymentRequest, clientIP string) (*model.PaymentResponse, error) {
	now := s.now()
	holds, err := s.holds.PendingBySession(ctx, req.SessionID, now)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return nil, repository.ErrNoReservations
	}
	amount, err := s.priceHolds(ctx, holds)
	if err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	orderDesc := req.OrderDesc
	if orderDesc == "" {
		orderDesc = "Thanh toan ve xem phim " + orderID
	}

	payment := &model.Payment{
		OrderID:   orderID,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Amount:    amount,
		Method:    req.Method,
		OrderDesc: orderDesc,
		ClientIP:  clientIP,
		ExpiresAt: now.Add(paymentWindow),
	}
	if req.Method == model.MethodVNPay {
		payURL, err := s.gateway.BuildPaymentURL(gateway.BuildParams{
			OrderID:   orderID,
			Amount:    amount,
			OrderInfo: orderDesc,
			ClientIP:  clientIP,
			Locale:    req.Language,
			BankCode:  req.BankCode,
			CreatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		payment.GatewayURL = &payURL
	}

	if _, err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	bound, err := s.holds.BindPayment(ctx, req.SessionID, payment.ID, s.now())
	if err != nil {
		return nil, err
	}
	if bound == 0 {
		// The holds expired between pricing and binding.  Close the
		// payment so it can never settle against nothing.
		if err := s.payments.MarkFailed(ctx, orderID, ""); err != nil {
			log.Printf("[payment] could not fail unbacked order %s: %v", orderID, err)
		}
		return nil, repository.ErrNoReservations
	}

	resp := &model.PaymentResponse{
		OrderID: orderID,
		Amount:  amount,
		Method:  payment.Method,
		Status:  model.PaymentPending,
	}
	if payment.GatewayURL != nil {
		resp.PaymentURL = *payment.GatewayURL
	}
	return resp, nil
}

// Status returns the current state of an order.
func (s *PaymentService) Status(ctx context.Context, orderID string) (*model.Payment, error) {
	return s.payments.GetByOrderID(ctx, orderID)
}

// HandleCallback authenticates a gateway callback and settles it.  The
// return redirect and the IPN go through the same path, so whichever
// arrives first does the work and the other sees the settled state.
func (s *PaymentService) HandleCallback(ctx context.Context, query url.Values) (*model.PaymentResult, error) {
	cb, err := s.gateway.VerifyCallback(query)
	if err != nil {
		return nil, err
	}
	return s.Settle(ctx, cb)
}

// Settle applies one verified gateway result to its order, exactly once.
// Concurrent callbacks for the same order serialize on a per-order lock;
// later ones observe the terminal payment and echo the original outcome.
func (s *PaymentService) Settle(ctx context.Context, cb *gateway.CallbackResult) (*model.PaymentResult, error) {
	release, err := s.locks.acquire(cb.OrderID, settleWait)
	if err != nil {
		return nil, err
	}
	defer release()

	payment, err := s.payments.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	if payment.Terminal() {
		return s.replay(ctx, payment)
	}

	if cb.Amount != payment.Amount {
		log.Printf("[payment] amount mismatch order=%s charged=%d expected=%d", cb.OrderID, cb.Amount, payment.Amount)
		return s.fail(ctx, payment, cb.TransactionNo, "invalid amount")
	}
	if !cb.Success {
		return s.fail(ctx, payment, cb.TransactionNo, cb.Message)
	}

	bookingCode, err := s.issuer.Issue(ctx, payment, cb)
	if err != nil {
		switch {
		case isSettlementRejection(err):
			// The seats are gone; the charge is reconciled out-of-band
			// rather than fulfilled late.
			log.Printf("[payment] order %s paid but not fulfillable: %v", cb.OrderID, err)
			return s.fail(ctx, payment, cb.TransactionNo, err.Error())
		default:
			return nil, err
		}
	}
	return &model.PaymentResult{
		Success:       true,
		OrderID:       cb.OrderID,
		TransactionNo: cb.TransactionNo,
		Amount:        payment.Amount,
		BookingCode:   bookingCode,
		Status:        model.PaymentSuccess,
		Message:       cb.Message,
	}, nil
}

// replay rebuilds the result of an already settled order for duplicate
// callbacks.
func (s *PaymentService) replay(ctx context.Context, payment *model.Payment) (*model.PaymentResult, error) {
	result := &model.PaymentResult{
		OrderID: payment.OrderID,
		Amount:  payment.Amount,
		Status:  payment.Status,
	}
	if payment.VNPay != nil {
		result.TransactionNo = payment.VNPay.TransactionNo
	}
	if payment.Status == model.PaymentSuccess {
		result.Success = true
		result.Message = "already settled"
		code, err := s.issuer.BookingCode(ctx, payment.ID)
		if err != nil {
			log.Printf("[payment] booking code lookup for settled order %s failed: %v", payment.OrderID, err)
		} else {
			result.BookingCode = code
		}
	} else {
		result.Message = "payment " + payment.Status
	}
	return result, nil
}

func (s *PaymentService) fail(ctx context.Context, payment *model.Payment, transactionNo, message string) (*model.PaymentResult, error) {
	if err := s.payments.MarkFailed(ctx, payment.OrderID, transactionNo); err != nil {
		return nil, err
	}
	return &model.PaymentResult{
		OrderID:       payment.OrderID,
		TransactionNo: transactionNo,
		Amount:        payment.Amount,
		Status:        model.PaymentFailed,
		Message:       message,
	}, nil
}

// priceHolds totals the holds at current catalog prices.  Holds may span
// showtimes; each seat is priced off its own showtime's base price.
func (s *PaymentService) priceHolds(ctx context.Context, holds []model.Hold) (int64, error) {
	seatIDs := make([]uint64, 0, len(holds))
	for _, h := range holds {
		seatIDs = append(seatIDs, h.SeatID)
	}
	seats, err := s.catalog.SeatsByIDs(ctx, seatIDs)
	if err != nil {
		return 0, err
	}
	showtimes := make(map[uint64]*model.Showtime)
	var total int64
	for _, h := range holds {
		st, ok := showtimes[h.ShowtimeID]
		if !ok {
			st, err = s.catalog.ShowtimeByID(ctx, h.ShowtimeID)
			if err != nil {
				return 0, err
			}
			showtimes[h.ShowtimeID] = st
		}
		seat, ok := seats[h.SeatID]
		if !ok {
			return 0, fmt.Errorf("hold %d references unknown seat %d", h.ID, h.SeatID)
		}
		price, err := PriceFor(seat.SeatType, st.BasePrice)
		if err != nil {
			return 0, err
		}
		total += price
	}
	return total, nil
}

// isSettlementRejection reports whether an issuing error means the order
// can never be fulfilled, as opposed to a transient storage failure.
func isSettlementRejection(err error) bool {
	return errors.Is(err, repository.ErrNoReservations) || errors.Is(err, repository.ErrHoldsExpired)
}
