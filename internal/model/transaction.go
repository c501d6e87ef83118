package model

import "time"

// Transaction is the ledger entry paired one-to-one with a payment.  It is
// created pending alongside the payment and follows it to success or
// failed during settlement.  GatewayRef records the gateway's transaction
// number once known.
type Transaction struct {
	ID          uint64    `json:"id"`           // transactions.id
	UserID      *uint64   `json:"user_id"`      // transactions.user_id (nullable)
	TotalAmount int64     `json:"total_amount"` // transactions.total_amount
	Method      string    `json:"method"`       // transactions.method
	Status      string    `json:"status"`       // pending | success | failed
	PaymentID   uint64    `json:"payment_id"`   // transactions.payment_id
	GatewayRef  string    `json:"gateway_ref"`  // transactions.gateway_ref
	CreatedAt   time.Time `json:"created_at"`   // transactions.created_at (UTC)
}
