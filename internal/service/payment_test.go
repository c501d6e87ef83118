package service

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking/internal/gateway"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

func pendingPayment(orderID string, amount int64) *model.Payment {
	return &model.Payment{
		ID:        7,
		OrderID:   orderID,
		SessionID: "sess-a",
		Amount:    amount,
		Method:    model.MethodVNPay,
		Status:    model.PaymentPending,
	}
}

func successCallback(orderID string, amount int64) *gateway.CallbackResult {
	return &gateway.CallbackResult{
		OrderID:       orderID,
		TransactionNo: "14567890",
		ResponseCode:  "00",
		Amount:        amount,
		Success:       true,
		Message:       "Giao dich thanh cong",
	}
}

func TestCreateOpensPendingPaymentWithGatewayURL(t *testing.T) {
	now := time.Now().UTC()
	holds := &fakeHoldStore{
		pendingBySessionFn: func(_ context.Context, sessionID string, _ time.Time) ([]model.Hold, error) {
			return []model.Hold{
				{ID: 1, ShowtimeID: 10, SeatID: 101, SessionID: sessionID, ExpiresAt: now.Add(5 * time.Minute)},
				{ID: 2, ShowtimeID: 10, SeatID: 102, SessionID: sessionID, ExpiresAt: now.Add(5 * time.Minute)},
			}, nil
		},
		bindPaymentFn: func(_ context.Context, _ string, paymentID uint64, _ time.Time) (int64, error) {
			assert.Equal(t, uint64(7), paymentID)
			return 2, nil
		},
	}
	var created *model.Payment
	payments := &fakePaymentStore{
		createFn: func(_ context.Context, p *model.Payment) (*model.Transaction, error) {
			p.ID = 7
			created = p
			return &model.Transaction{ID: 70, PaymentID: 7}, nil
		},
	}
	gw := &fakeGateway{
		buildFn: func(p gateway.BuildParams) (string, error) {
			// regular 90000 + vip 135000
			assert.Equal(t, int64(225000), p.Amount)
			return "https://sandbox.vnpayment.vn/pay?vnp_TxnRef=" + p.OrderID, nil
		},
	}
	svc := NewPaymentService(holds, testCatalog(), payments, gw, &fakeSettler{})

	resp, err := svc.Create(context.Background(), model.PaymentRequest{
		SessionID: "sess-a",
		Method:    model.MethodVNPay,
	}, "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, int64(225000), resp.Amount)
	assert.Equal(t, model.PaymentPending, resp.Status)
	assert.Contains(t, resp.PaymentURL, resp.OrderID)
	require.NotNil(t, created)
	assert.Equal(t, "203.0.113.9", created.ClientIP)
	assert.NotEmpty(t, created.OrderDesc)
}

func TestCreateWithoutHolds(t *testing.T) {
	holds := &fakeHoldStore{
		pendingBySessionFn: func(context.Context, string, time.Time) ([]model.Hold, error) {
			return nil, nil
		},
	}
	svc := NewPaymentService(holds, testCatalog(), &fakePaymentStore{}, &fakeGateway{}, &fakeSettler{})

	_, err := svc.Create(context.Background(), model.PaymentRequest{SessionID: "sess-a", Method: model.MethodVNPay}, "")
	assert.ErrorIs(t, err, repository.ErrNoReservations)
}

func TestCreateFailsWhenHoldsExpireBeforeBinding(t *testing.T) {
	now := time.Now().UTC()
	holds := &fakeHoldStore{
		pendingBySessionFn: func(context.Context, string, time.Time) ([]model.Hold, error) {
			return []model.Hold{{ID: 1, ShowtimeID: 10, SeatID: 101, ExpiresAt: now.Add(time.Minute)}}, nil
		},
		bindPaymentFn: func(context.Context, string, uint64, time.Time) (int64, error) {
			return 0, nil
		},
	}
	var failedOrder string
	payments := &fakePaymentStore{
		createFn: func(_ context.Context, p *model.Payment) (*model.Transaction, error) {
			p.ID = 7
			return &model.Transaction{ID: 70, PaymentID: 7}, nil
		},
		markFailedFn: func(_ context.Context, orderID, _ string) error {
			failedOrder = orderID
			return nil
		},
	}
	gw := &fakeGateway{
		buildFn: func(gateway.BuildParams) (string, error) { return "https://pay.example", nil },
	}
	svc := NewPaymentService(holds, testCatalog(), payments, gw, &fakeSettler{})

	_, err := svc.Create(context.Background(), model.PaymentRequest{SessionID: "sess-a", Method: model.MethodVNPay}, "")
	assert.ErrorIs(t, err, repository.ErrNoReservations)
	assert.NotEmpty(t, failedOrder, "the unbacked payment must be closed")
}

func TestSettleSuccessIssuesTickets(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	payments := &fakePaymentStore{
		getByOrderIDFn: func(context.Context, string) (*model.Payment, error) { return payment, nil },
	}
	issuer := &fakeSettler{
		issueFn: func(_ context.Context, p *model.Payment, cb *gateway.CallbackResult) (string, error) {
			assert.Equal(t, payment.ID, p.ID)
			assert.Equal(t, "14567890", cb.TransactionNo)
			return "BK20260901ABCD", nil
		},
	}
	svc := NewPaymentService(&fakeHoldStore{}, testCatalog(), payments, &fakeGateway{}, issuer)

	result, err := svc.Settle(context.Background(), successCallback("order-1", 225000))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "BK20260901ABCD", result.BookingCode)
	assert.Equal(t, model.PaymentSuccess, result.Status)
}

func TestSettleDuplicateEchoesOriginalOutcome(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	payment.Status = model.PaymentSuccess
	payment.VNPay = &model.VNPayDetails{TransactionNo: "14567890"}

	payments := &fakePaymentStore{
		getByOrderIDFn: func(context.Context, string) (*model.Payment, error) { return payment, nil },
	}
	issuer := &fakeSettler{
		issueFn: func(context.Context, *model.Payment, *gateway.CallbackResult) (string, error) {
			t.Fatal("a settled order must not be issued twice")
			return "", nil
		},
		bookingCodeFn: func(context.Context, uint64) (string, error) { return "BK20260901ABCD", nil },
	}
	svc := NewPaymentService(&fakeHoldStore{}, testCatalog(), payments, &fakeGateway{}, issuer)

	result, err := svc.Settle(context.Background(), successCallback("order-1", 225000))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "BK20260901ABCD", result.BookingCode)
	assert.Equal(t, "14567890", result.TransactionNo)
}

func TestSettleGatewayFailureMarksPaymentFailed(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	var failedOrder, failedTxn string
	payments := &fakePaymentStore{
		getByOrderIDFn: func(context.Context, string) (*model.Payment, error) { return payment, nil },
		markFailedFn: func(_ context.Context, orderID, transactionNo string) error {
			failedOrder, failedTxn = orderID, transactionNo
			return nil
		},
	}
	svc := NewPaymentService(&fakeHoldStore{}, testCatalog(), payments, &fakeGateway{}, &fakeSettler{})

	cb := successCallback("order-1", 225000)
	cb.Success = false
	cb.ResponseCode = "24"
	cb.Message = "Khach hang huy giao dich"

	result, err := svc.Settle(context.Background(), cb)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.PaymentFailed, result.Status)
	assert.Equal(t, "order-1", failedOrder)
	assert.Equal(t, "14567890", failedTxn)
}

func TestSettleExpiredHoldsMarksPaymentFailed(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	var failed bool
	payments := &fakePaymentStore{
		getByOrderIDFn: func(context.Context, string) (*model.Payment, error) { return payment, nil },
		markFailedFn: func(context.Context, string, string) error {
			failed = true
			return nil
		},
	}
	issuer := &fakeSettler{
		issueFn: func(context.Context, *model.Payment, *gateway.CallbackResult) (string, error) {
			return "", repository.ErrHoldsExpired
		},
	}
	svc := NewPaymentService(&fakeHoldStore{}, testCatalog(), payments, &fakeGateway{}, issuer)

	result, err := svc.Settle(context.Background(), successCallback("order-1", 225000))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, model.PaymentFailed, result.Status)
	assert.True(t, failed, "a paid but unfulfillable order must be marked failed")
}

func TestSettleAmountMismatchMarksPaymentFailed(t *testing.T) {
	payment := pendingPayment("order-1", 225000)
	var failed bool
	payments := &fakePaymentStore{
		getByOrderIDFn: func(context.Context, string) (*model.Payment, error) { return payment, nil },
		markFailedFn: func(context.Context, string, string) error {
			failed = true
			return nil
		},
	}
	issuer := &fakeSettler{
		issueFn: func(context.Context, *model.Payment, *gateway.CallbackResult) (string, error) {
			t.Fatal("mismatched amounts must never issue tickets")
			return "", nil
		},
	}
	svc := NewPaymentService(&fakeHoldStore{}, testCatalog(), payments, &fakeGateway{}, issuer)

	result, err := svc.Settle(context.Background(), successCallback("order-1", 1))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, failed)
}

func TestHandleCallbackRejectsBadSignature(t *testing.T) {
	gw := &fakeGateway{
		verifyFn: func(url.Values) (*gateway.CallbackResult, error) {
			return nil, gateway.ErrInvalidSignature
		},
	}
	svc := NewPaymentService(&fakeHoldStore{}, testCatalog(), &fakePaymentStore{}, gw, &fakeSettler{})

	_, err := svc.HandleCallback(context.Background(), url.Values{})
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
}
