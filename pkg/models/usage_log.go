package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLogEntry records one billed lookup. Rows are append-only.
type UsageLogEntry struct {
	ID           uuid.UUID  `db:"id"             json:"id"`
	AccountID    uuid.UUID  `db:"account_id"     json:"account_id"`
	TokenID      *uuid.UUID `db:"token_id"       json:"token_id,omitempty"`
	Document     string     `db:"document"       json:"document"`
	DocumentType string     `db:"document_type"  json:"document_type"`
	Domain       string     `db:"domain"         json:"domain"`
	Cost         Credits    `db:"cost_cents"     json:"custo"`
	CreatedAt    time.Time  `db:"created_at"     json:"created_at"`
}
