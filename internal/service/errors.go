package service

import "errors"

// ErrBusy is returned when a settlement for the same order is already in
// flight and did not finish within the wait window.  VNPay retries IPNs,
// so the caller can simply report a transient failure.
var ErrBusy = errors.New("settlement in progress")
