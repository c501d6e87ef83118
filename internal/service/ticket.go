package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/gateway"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/queue"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// bookingCodeAlphabet omits easily confused characters; codes get read
// over the phone at the counter.
const bookingCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// qrValidityAfterStart keeps the QR scannable through late admission and
// post-show checks.
const qrValidityAfterStart = 12 * time.Hour

// TicketStore is the ticket persistence the issuer depends on.
// *repository.TicketRepo is the production implementation.
type TicketStore interface {
	Issue(ctx context.Context, params repository.IssueParams) error
	BookingCodeByPayment(ctx context.Context, paymentID uint64) (string, error)
	BookingCodeExists(ctx context.Context, code string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Ticket, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
}

// TransactionSource resolves the ledger transaction paired with a payment.
// *repository.PaymentRepo is the production implementation.
type TransactionSource interface {
	TransactionByPayment(ctx context.Context, paymentID uint64) (*model.Transaction, error)
}

// TicketService issues tickets for settled payments and serves ticket
// lookups.  One booking code covers all tickets of an order; each ticket
// carries its own signed QR payload.
type TicketService struct {
	store     TicketStore
	holds     HoldStore
	catalog   Catalog
	txns      TransactionSource
	bus       Publisher
	jwtSecret []byte
	rabbitURL string
	now       func() time.Time
}

// NewTicketService wires the ticket issuer.  rabbitURL may be empty to
// disable the tickets.issued notifications.
func NewTicketService(store TicketStore, holds HoldStore, catalog Catalog, txns TransactionSource, bus Publisher, jwtSecret string, rabbitURL string) *TicketService {
	return &TicketService{
		store:     store,
		holds:     holds,
		catalog:   catalog,
		txns:      txns,
		bus:       bus,
		jwtSecret: []byte(jwtSecret),
		rabbitURL: rabbitURL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Issue converts the holds bound to a paid order into tickets and returns
// the booking code.  The database writes run in one transaction inside the
// store; broadcasts and broker notifications happen only after it commits
// and are best-effort.
func (s *TicketService) Issue(ctx context.Context, payment *model.Payment, cb *gateway.CallbackResult) (string, error) {
	holds, err := s.holds.PendingByPayment(ctx, payment.ID)
	if err != nil {
		return "", err
	}
	if len(holds) == 0 {
		return "", repository.ErrNoReservations
	}
	txn, err := s.txns.TransactionByPayment(ctx, payment.ID)
	if err != nil {
		return "", err
	}

	seatIDs := make([]uint64, 0, len(holds))
	for _, h := range holds {
		seatIDs = append(seatIDs, h.SeatID)
	}
	seats, err := s.catalog.SeatsByIDs(ctx, seatIDs)
	if err != nil {
		return "", err
	}
	showtimes := make(map[uint64]*model.Showtime)
	for _, h := range holds {
		if _, ok := showtimes[h.ShowtimeID]; !ok {
			st, err := s.catalog.ShowtimeByID(ctx, h.ShowtimeID)
			if err != nil {
				return "", err
			}
			showtimes[h.ShowtimeID] = st
		}
	}

	code, err := s.generateBookingCode(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	tickets := make([]model.Ticket, 0, len(holds))
	for _, h := range holds {
		seat := seats[h.SeatID]
		showtime := showtimes[h.ShowtimeID]
		price, err := PriceFor(seat.SeatType, showtime.BasePrice)
		if err != nil {
			return "", err
		}
		ticket := model.Ticket{
			ID:          uuid.NewString(),
			UserID:      payment.UserID,
			ShowtimeID:  h.ShowtimeID,
			SeatID:      h.SeatID,
			Price:       price,
			Status:      model.StatusConfirmed,
			BookingCode: code,
			BookingTime: now,
		}
		ticket.QRPayload, err = s.qrToken(ticket, showtime, seat, now)
		if err != nil {
			return "", err
		}
		tickets = append(tickets, ticket)
	}

	err = s.store.Issue(ctx, repository.IssueParams{
		PaymentID:     payment.ID,
		TransactionID: txn.ID,
		Tickets:       tickets,
		Gateway: model.VNPayDetails{
			TransactionNo: cb.TransactionNo,
			BankCode:      cb.BankCode,
			CardType:      cb.CardType,
			PayDate:       cb.PayDate,
			ResponseCode:  cb.ResponseCode,
		},
		Now: now,
	})
	if err != nil {
		return "", err
	}

	s.announce(ctx, payment, code, holds, showtimes, seats, now)
	return code, nil
}

// BookingCode returns the booking code of an already settled payment.
func (s *TicketService) BookingCode(ctx context.Context, paymentID uint64) (string, error) {
	return s.store.BookingCodeByPayment(ctx, paymentID)
}

// ByID fetches one ticket.
func (s *TicketService) ByID(ctx context.Context, id string) (*model.Ticket, error) {
	return s.store.GetByID(ctx, id)
}

// ListByUser returns a user's tickets.
func (s *TicketService) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	return s.store.ListByUser(ctx, userID)
}

// generateBookingCode produces a BK<yyyymmdd><4 chars> code, retrying on
// the rare collision with an existing one.
func (s *TicketService) generateBookingCode(ctx context.Context) (string, error) {
	prefix := "BK" + s.now().Format("20060102")
	for attempt := 0; attempt < 5; attempt++ {
		suffix := make([]byte, 4)
		for i := range suffix {
			suffix[i] = bookingCodeAlphabet[rand.Intn(len(bookingCodeAlphabet))]
		}
		code := prefix + string(suffix)
		taken, err := s.store.BookingCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique booking code")
}

// qrToken signs the per-ticket QR payload.  The token is what the scanner
// at the door validates; it stays valid well past the show start.
func (s *TicketService) qrToken(t model.Ticket, showtime *model.Showtime, seat model.Seat, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"type":         "ticket_qr",
		"ticket_id":    t.ID,
		"booking_code": t.BookingCode,
		"movie_id":     showtime.MovieID,
		"showtime_id":  t.ShowtimeID,
		"seat":         seat.SeatCode,
		"price":        t.Price,
		"iat":          now.Unix(),
		"exp":          showtime.StartsAt.Add(qrValidityAfterStart).Unix(),
	}
	if t.UserID != nil {
		claims["user_id"] = *t.UserID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// announce performs the post-commit side effects: a broker event per
// showtime for the notification pipeline, and a confirmed seat_update on
// the bus so seat maps flip from held to sold.  Failures are logged and
// swallowed; the tickets are already committed.
func (s *TicketService) announce(ctx context.Context, payment *model.Payment, code string, holds []model.Hold, showtimes map[uint64]*model.Showtime, seats map[uint64]model.Seat, now time.Time) {
	byShowtime := make(map[uint64][]model.Hold)
	for _, h := range holds {
		byShowtime[h.ShowtimeID] = append(byShowtime[h.ShowtimeID], h)
	}
	for showtimeID, group := range byShowtime {
		showtime := showtimes[showtimeID]
		seatIDs := make([]uint64, 0, len(group))
		seatCodes := make([]string, 0, len(group))
		var total int64
		for _, h := range group {
			seatIDs = append(seatIDs, h.SeatID)
			seatCodes = append(seatCodes, seats[h.SeatID].SeatCode)
			price, err := PriceFor(seats[h.SeatID].SeatType, showtime.BasePrice)
			if err == nil {
				total += price
			}
		}

		if s.rabbitURL != "" {
			event := queue.TicketsIssuedEvent{
				OrderID:     payment.OrderID,
				BookingCode: code,
				UserID:      payment.UserID,
				SessionID:   payment.SessionID,
				ShowtimeID:  showtimeID,
				MovieID:     showtime.MovieID,
				StartsAt:    showtime.StartsAt.Format(time.RFC3339),
				SeatCodes:   seatCodes,
				TotalAmount: total,
				IssuedAt:    now.Format(time.RFC3339),
			}
			if err := queue.PublishTicketsIssued(ctx, s.rabbitURL, event); err != nil {
				log.Printf("[ticket] broker notify order=%s failed: %v", payment.OrderID, err)
			}
		}

		// One seat_update per seat: subscribers track seats individually.
		for _, seatID := range seatIDs {
			if err := s.bus.Publish(ctx, bus.Event{
				Type:       bus.EventSeatUpdate,
				ShowtimeID: showtimeID,
				Data: map[string]any{
					"seat_id": seatID,
					"status":  model.StatusConfirmed,
				},
			}); err != nil {
				log.Printf("[ticket] broadcast seat_update showtime=%d failed: %v", showtimeID, err)
			}
		}
	}
}
