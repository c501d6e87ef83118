package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

const testJWTSecret = "test-secret"

var bookingCodePattern = regexp.MustCompile(`^BK\d{8}[A-Z2-9]{4}$`)

func boundHolds(paymentID uint64) []model.Hold {
	now := time.Now().UTC()
	return []model.Hold{
		{ID: 1, ShowtimeID: 10, SeatID: 101, SessionID: "sess-a", Status: model.StatusPending,
			ExpiresAt: now.Add(5 * time.Minute), PaymentID: &paymentID},
		{ID: 2, ShowtimeID: 10, SeatID: 102, SessionID: "sess-a", Status: model.StatusPending,
			ExpiresAt: now.Add(5 * time.Minute), PaymentID: &paymentID},
	}
}

func newTestTicketService(store *fakeTicketStore, holds *fakeHoldStore, pub *fakePublisher) *TicketService {
	txns := &fakeTxnSource{txn: &model.Transaction{ID: 70, PaymentID: 7, Status: model.StatusPending}}
	// Empty broker URL keeps the test off the network.
	return NewTicketService(store, holds, testCatalog(), txns, pub, testJWTSecret, "")
}

func TestIssueBuildsTicketsAndSettles(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	holds := &fakeHoldStore{
		pendingByPaymentFn: func(_ context.Context, paymentID uint64) ([]model.Hold, error) {
			return boundHolds(paymentID), nil
		},
	}
	var issued repository.IssueParams
	store := &fakeTicketStore{
		bookingCodeExistsFn: func(context.Context, string) (bool, error) { return false, nil },
		issueFn: func(_ context.Context, params repository.IssueParams) error {
			issued = params
			return nil
		},
	}
	pub := &fakePublisher{}
	svc := newTestTicketService(store, holds, pub)

	code, err := svc.Issue(context.Background(), payment, successCallback("order-1", 225000))
	require.NoError(t, err)
	assert.Regexp(t, bookingCodePattern, code)

	require.Len(t, issued.Tickets, 2)
	assert.Equal(t, uint64(7), issued.PaymentID)
	assert.Equal(t, uint64(70), issued.TransactionID)
	assert.Equal(t, "14567890", issued.Gateway.TransactionNo)

	var total int64
	for _, ticket := range issued.Tickets {
		assert.NotEmpty(t, ticket.ID)
		assert.Equal(t, code, ticket.BookingCode)
		assert.Equal(t, model.StatusConfirmed, ticket.Status)
		total += ticket.Price
	}
	assert.Equal(t, int64(225000), total, "regular 90000 + vip 135000")

	// Post-commit broadcasts flip each seat to confirmed individually.
	events := pub.published()
	require.Len(t, events, 2)
	var seatIDs []uint64
	for _, e := range events {
		assert.Equal(t, bus.EventSeatUpdate, e.Type)
		assert.Equal(t, uint64(10), e.ShowtimeID)
		assert.Equal(t, model.StatusConfirmed, e.Data["status"])
		seatIDs = append(seatIDs, e.Data["seat_id"].(uint64))
	}
	assert.ElementsMatch(t, []uint64{101, 102}, seatIDs)
}

func TestIssueQRPayloadIsVerifiable(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	holds := &fakeHoldStore{
		pendingByPaymentFn: func(_ context.Context, paymentID uint64) ([]model.Hold, error) {
			return boundHolds(paymentID)[:1], nil
		},
	}
	var issued repository.IssueParams
	store := &fakeTicketStore{
		bookingCodeExistsFn: func(context.Context, string) (bool, error) { return false, nil },
		issueFn: func(_ context.Context, params repository.IssueParams) error {
			issued = params
			return nil
		},
	}
	svc := newTestTicketService(store, holds, &fakePublisher{})

	cb := successCallback("order-1", 225000)
	_, err := svc.Issue(context.Background(), payment, cb)
	require.NoError(t, err)
	require.Len(t, issued.Tickets, 1)
	ticket := issued.Tickets[0]

	token, err := jwt.Parse(ticket.QRPayload, func(tok *jwt.Token) (any, error) {
		require.IsType(t, &jwt.SigningMethodHMAC{}, tok.Method)
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "ticket_qr", claims["type"])
	assert.Equal(t, ticket.ID, claims["ticket_id"])
	assert.Equal(t, ticket.BookingCode, claims["booking_code"])
	assert.Equal(t, "A1", claims["seat"])
	assert.Equal(t, float64(10), claims["showtime_id"])
	assert.Equal(t, float64(90000), claims["price"])
}

func TestIssueRetriesBookingCodeCollisions(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	holds := &fakeHoldStore{
		pendingByPaymentFn: func(_ context.Context, paymentID uint64) ([]model.Hold, error) {
			return boundHolds(paymentID)[:1], nil
		},
	}
	checks := 0
	store := &fakeTicketStore{
		bookingCodeExistsFn: func(context.Context, string) (bool, error) {
			checks++
			return checks == 1, nil // first candidate collides
		},
		issueFn: func(context.Context, repository.IssueParams) error { return nil },
	}
	svc := newTestTicketService(store, holds, &fakePublisher{})

	code, err := svc.Issue(context.Background(), payment, successCallback("order-1", 225000))
	require.NoError(t, err)
	assert.Regexp(t, bookingCodePattern, code)
	assert.Equal(t, 2, checks)
}

func TestIssueWithoutBoundHolds(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	holds := &fakeHoldStore{
		pendingByPaymentFn: func(context.Context, uint64) ([]model.Hold, error) { return nil, nil },
	}
	store := &fakeTicketStore{
		issueFn: func(context.Context, repository.IssueParams) error {
			t.Fatal("nothing to issue without holds")
			return nil
		},
	}
	svc := newTestTicketService(store, holds, &fakePublisher{})

	_, err := svc.Issue(context.Background(), payment, successCallback("order-1", 225000))
	assert.ErrorIs(t, err, repository.ErrNoReservations)
}

func TestIssuePropagatesSettlementRejection(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	holds := &fakeHoldStore{
		pendingByPaymentFn: func(_ context.Context, paymentID uint64) ([]model.Hold, error) {
			return boundHolds(paymentID), nil
		},
	}
	store := &fakeTicketStore{
		bookingCodeExistsFn: func(context.Context, string) (bool, error) { return false, nil },
		issueFn: func(context.Context, repository.IssueParams) error {
			return repository.ErrHoldsExpired
		},
	}
	pub := &fakePublisher{}
	svc := newTestTicketService(store, holds, pub)

	_, err := svc.Issue(context.Background(), payment, successCallback("order-1", 225000))
	assert.ErrorIs(t, err, repository.ErrHoldsExpired)
	assert.Empty(t, pub.published(), "no broadcast when the transaction rolled back")
}
