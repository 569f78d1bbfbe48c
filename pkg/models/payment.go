package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusCancelled = "cancelled"
)

// Payment tracks a PIX top-up. The balance of the owning account is credited
// once, on the pending -> paid transition.
type Payment struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	AccountID  uuid.UUID  `db:"account_id"   json:"account_id"`
	ExternalID string     `db:"external_id"  json:"txid"`
	Amount     Credits    `db:"amount_cents" json:"valor"`
	Status     string     `db:"status"       json:"status"`
	PaidAt     *time.Time `db:"paid_at"      json:"paid_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}
