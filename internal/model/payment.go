package model

import "time"

// VNPayDetails carries the gateway-specific fields of a payment settled
// through VNPay.  They are populated from callback parameters during
// settlement and stay nil for cash and other offline methods, which keeps
// Payment a product type with an explicit variant instead of an
// inheritance-style hierarchy.
type VNPayDetails struct {
	TxnRef        string `json:"txn_ref"`        // payments.txn_ref, mirrors order_id on the wire
	TransactionNo string `json:"transaction_no"` // payments.transaction_no, gateway transaction number
	BankCode      string `json:"bank_code"`      // payments.bank_code
	CardType      string `json:"card_type"`      // payments.card_type
	PayDate       string `json:"pay_date"`       // payments.pay_date, gateway local time yyyymmddHHMMSS
	ResponseCode  string `json:"response_code"`  // payments.response_code, "00" means success
}

// Payment is one purchase attempt for the pending holds of a session.
// OrderID is the opaque identifier exchanged with the gateway; it is
// unique across all payments.  Amount is in VND (the gateway scales by 100
// on the wire).
type Payment struct {
	ID         uint64        `json:"id"`          // payments.id
	OrderID    string        `json:"order_id"`    // payments.order_id (UUID)
	UserID     *uint64       `json:"user_id"`     // payments.user_id (nullable)
	SessionID  string        `json:"session_id"`  // payments.session_id
	Amount     int64         `json:"amount"`      // payments.amount
	Method     string        `json:"method"`      // vnpay | cash | momo | bank | zalo
	Status     string        `json:"status"`      // pending | success | failed | cancelled
	GatewayURL *string       `json:"gateway_url"` // payments.gateway_url, nil unless method=vnpay
	OrderDesc  string        `json:"order_desc"`  // payments.order_desc
	ClientIP   string        `json:"client_ip"`   // payments.client_ip
	ExpiresAt  time.Time     `json:"expires_at"`  // payments.expires_at (UTC)
	CreatedAt  time.Time     `json:"created_at"`  // payments.created_at (UTC)
	UpdatedAt  time.Time     `json:"updated_at"`  // payments.updated_at (UTC)
	VNPay      *VNPayDetails `json:"vnpay,omitempty"`
}

// Terminal reports whether the payment has reached a state that later
// gateway callbacks must not rewrite.  Cancelled counts: a charge that
// lands after the checkout window closed is reconciled out-of-band, not
// fulfilled late.
func (p *Payment) Terminal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed || p.Status == PaymentCancelled
}

// PaymentRequest is the body of POST /payments/create.
type PaymentRequest struct {
	SessionID string  `json:"session_id"`
	Method    string  `json:"method"`
	OrderDesc string  `json:"order_desc"`
	Language  string  `json:"language,omitempty"`
	BankCode  string  `json:"bank_code,omitempty"`
	UserID    *uint64 `json:"user_id,omitempty"`
}

// PaymentResponse is returned after a payment record has been created.
// PaymentURL is empty for methods without a redirect gateway.
type PaymentResponse struct {
	PaymentURL string `json:"payment_url,omitempty"`
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Method     string `json:"method"`
	Status     string `json:"status"`
}

// PaymentResult is the transport-independent outcome of a settlement
// attempt, returned to both the gateway IPN and the browser return path.
type PaymentResult struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"order_id"`
	TransactionNo string `json:"transaction_no,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	BookingCode   string `json:"booking_code,omitempty"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}
