package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a billing entity holding a prepaid credit balance.
// Domain, when set, lets lookups from that site bill the account without a bound token.
type Account struct {
	ID        uuid.UUID `db:"id"            json:"id"`
	Name      string    `db:"name"          json:"name"`
	Domain    *string   `db:"domain"        json:"domain,omitempty"`
	Balance   Credits   `db:"balance_cents" json:"saldo"`
	CreatedAt time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt time.Time `db:"updated_at"    json:"updated_at"`
}
