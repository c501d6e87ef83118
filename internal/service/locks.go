package service

import (
	"sync"
	"time"
)

// orderLocks serializes settlement per order ID.  Entries are reference
// counted and removed as soon as nobody waits on them, so the map stays
// proportional to in-flight settlements, not to order history.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	sem  chan struct{}
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*orderLock)}
}

// acquire blocks until the order's lock is free or the timeout elapses.
// On success it returns a release function; on timeout it returns ErrBusy.
func (l *orderLocks) acquire(orderID string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[orderID]
	if !ok {
		lock = &orderLock{sem: make(chan struct{}, 1)}
		l.locks[orderID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case lock.sem <- struct{}{}:
		return func() {
			<-lock.sem
			l.release(orderID, lock)
		}, nil
	case <-timer.C:
		l.release(orderID, lock)
		return nil, ErrBusy
	}
}

func (l *orderLocks) release(orderID string, lock *orderLock) {
	l.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, orderID)
	}
	l.mu.Unlock()
}
