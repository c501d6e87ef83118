package service

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/iliyamo/cinema-booking/internal/bus"
	"github.com/iliyamo/cinema-booking/internal/gateway"
	"github.com/iliyamo/cinema-booking/internal/model"
	"github.com/iliyamo/cinema-booking/internal/repository"
)

// Function-field fakes: each test fills in only the calls it expects.

type fakeHoldStore struct {
	listFn             func(ctx context.Context, showtimeID uint64, now time.Time) ([]model.Hold, error)
	tryCreateFn        func(ctx context.Context, req model.HoldRequest, ttl time.Duration, now time.Time) (*model.Hold, error)
	tryCreateBulkFn    func(ctx context.Context, reqs []model.HoldRequest, ttl time.Duration, now time.Time) ([]model.Hold, error)
	cancelByOwnerFn    func(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string) ([]uint64, error)
	pendingBySessionFn func(ctx context.Context, sessionID string, now time.Time) ([]model.Hold, error)
	pendingByPaymentFn func(ctx context.Context, paymentID uint64) ([]model.Hold, error)
	bindPaymentFn      func(ctx context.Context, sessionID string, paymentID uint64, now time.Time) (int64, error)
}

func (f *fakeHoldStore) List(ctx context.Context, showtimeID uint64, now time.Time) ([]model.Hold, error) {
	return f.listFn(ctx, showtimeID, now)
}
func (f *fakeHoldStore) TryCreate(ctx context.Context, req model.HoldRequest, ttl time.Duration, now time.Time) (*model.Hold, error) {
	return f.tryCreateFn(ctx, req, ttl, now)
}
func (f *fakeHoldStore) TryCreateBulk(ctx context.Context, reqs []model.HoldRequest, ttl time.Duration, now time.Time) ([]model.Hold, error) {
	return f.tryCreateBulkFn(ctx, reqs, ttl, now)
}
func (f *fakeHoldStore) CancelByOwner(ctx context.Context, showtimeID uint64, seatIDs []uint64, sessionID string) ([]uint64, error) {
	return f.cancelByOwnerFn(ctx, showtimeID, seatIDs, sessionID)
}
func (f *fakeHoldStore) PendingBySession(ctx context.Context, sessionID string, now time.Time) ([]model.Hold, error) {
	return f.pendingBySessionFn(ctx, sessionID, now)
}
func (f *fakeHoldStore) PendingByPayment(ctx context.Context, paymentID uint64) ([]model.Hold, error) {
	return f.pendingByPaymentFn(ctx, paymentID)
}
func (f *fakeHoldStore) BindPayment(ctx context.Context, sessionID string, paymentID uint64, now time.Time) (int64, error) {
	return f.bindPaymentFn(ctx, sessionID, paymentID, now)
}

// fakeCatalog serves a fixed set of showtimes and seats.
type fakeCatalog struct {
	showtimes map[uint64]model.Showtime
	seats     map[uint64]model.Seat
}

func (f *fakeCatalog) ShowtimeByID(_ context.Context, id uint64) (*model.Showtime, error) {
	st, ok := f.showtimes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}
func (f *fakeCatalog) SeatByID(_ context.Context, id uint64) (*model.Seat, error) {
	s, ok := f.seats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}
func (f *fakeCatalog) SeatsByIDs(_ context.Context, ids []uint64) (map[uint64]model.Seat, error) {
	out := make(map[uint64]model.Seat, len(ids))
	for _, id := range ids {
		s, ok := f.seats[id]
		if !ok {
			return nil, repository.ErrNotFound
		}
		out[id] = s
	}
	return out, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []bus.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e bus.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) published() []bus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bus.Event, len(f.events))
	copy(out, f.events)
	return out
}

type fakePaymentStore struct {
	createFn       func(ctx context.Context, p *model.Payment) (*model.Transaction, error)
	getByOrderIDFn func(ctx context.Context, orderID string) (*model.Payment, error)
	markFailedFn   func(ctx context.Context, orderID, transactionNo string) error
}

func (f *fakePaymentStore) Create(ctx context.Context, p *model.Payment) (*model.Transaction, error) {
	return f.createFn(ctx, p)
}
func (f *fakePaymentStore) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	return f.getByOrderIDFn(ctx, orderID)
}
func (f *fakePaymentStore) MarkFailed(ctx context.Context, orderID, transactionNo string) error {
	return f.markFailedFn(ctx, orderID, transactionNo)
}

type fakeGateway struct {
	buildFn  func(p gateway.BuildParams) (string, error)
	verifyFn func(query url.Values) (*gateway.CallbackResult, error)
}

func (f *fakeGateway) BuildPaymentURL(p gateway.BuildParams) (string, error) { return f.buildFn(p) }
func (f *fakeGateway) VerifyCallback(query url.Values) (*gateway.CallbackResult, error) {
	return f.verifyFn(query)
}

type fakeSettler struct {
	issueFn       func(ctx context.Context, payment *model.Payment, cb *gateway.CallbackResult) (string, error)
	bookingCodeFn func(ctx context.Context, paymentID uint64) (string, error)
}

func (f *fakeSettler) Issue(ctx context.Context, payment *model.Payment, cb *gateway.CallbackResult) (string, error) {
	return f.issueFn(ctx, payment, cb)
}
func (f *fakeSettler) BookingCode(ctx context.Context, paymentID uint64) (string, error) {
	return f.bookingCodeFn(ctx, paymentID)
}

type fakeTicketStore struct {
	issueFn                func(ctx context.Context, params repository.IssueParams) error
	bookingCodeByPaymentFn func(ctx context.Context, paymentID uint64) (string, error)
	bookingCodeExistsFn    func(ctx context.Context, code string) (bool, error)
	getByIDFn              func(ctx context.Context, id string) (*model.Ticket, error)
	listByUserFn           func(ctx context.Context, userID uint64) ([]model.Ticket, error)
}

func (f *fakeTicketStore) Issue(ctx context.Context, params repository.IssueParams) error {
	return f.issueFn(ctx, params)
}
func (f *fakeTicketStore) BookingCodeByPayment(ctx context.Context, paymentID uint64) (string, error) {
	return f.bookingCodeByPaymentFn(ctx, paymentID)
}
func (f *fakeTicketStore) BookingCodeExists(ctx context.Context, code string) (bool, error) {
	return f.bookingCodeExistsFn(ctx, code)
}
func (f *fakeTicketStore) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	return f.getByIDFn(ctx, id)
}
func (f *fakeTicketStore) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	return f.listByUserFn(ctx, userID)
}

type fakeTxnSource struct {
	txn *model.Transaction
	err error
}

func (f *fakeTxnSource) TransactionByPayment(context.Context, uint64) (*model.Transaction, error) {
	return f.txn, f.err
}
