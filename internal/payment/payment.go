// Package payment applies PIX provider notifications to stored payments.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/consulta/internal/metrics"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/pkg/models"
)

var (
	ErrMissingTxID       = errors.New("missing txid")
	ErrUnknownStatus     = errors.New("unknown payment status")
	ErrNotFound          = store.ErrNotFound
	ErrInvalidTransition = store.ErrInvalidTransition
)

// statusMap translates provider status strings to payment statuses.
// Keys are upper-cased before lookup.
var statusMap = map[string]string{
	"ATIVA":                           models.PaymentStatusPending,
	"PENDING":                         models.PaymentStatusPending,
	"WAITING":                         models.PaymentStatusPending,
	"CONCLUIDA":                       models.PaymentStatusPaid,
	"PAID":                            models.PaymentStatusPaid,
	"APPROVED":                        models.PaymentStatusPaid,
	"COMPLETED":                       models.PaymentStatusPaid,
	"REMOVIDA_PELO_USUARIO_RECEBEDOR": models.PaymentStatusCancelled,
	"REMOVIDA_PELO_PSP":               models.PaymentStatusCancelled,
	"CANCELLED":                       models.PaymentStatusCancelled,
	"CANCELED":                        models.PaymentStatusCancelled,
	"EXPIRED":                         models.PaymentStatusCancelled,
}

// MapStatus returns the payment status for a provider status.
func MapStatus(provider string) (string, bool) {
	s, ok := statusMap[strings.ToUpper(strings.TrimSpace(provider))]
	return s, ok
}

// Notification is one provider event for one charge.
type Notification struct {
	TxID   string
	Status string
}

// Service applies notifications.
type Service struct {
	store   store.Store
	metrics *metrics.Metrics
}

func NewService(s store.Store, m *metrics.Metrics) *Service {
	return &Service{store: s, metrics: m}
}

// Apply moves the payment named by n.TxID to the mapped status. A paid
// notification credits the account exactly once; repeats are no-ops.
func (s *Service) Apply(ctx context.Context, n Notification) (*store.PaymentTransition, error) {
	if strings.TrimSpace(n.TxID) == "" {
		return nil, ErrMissingTxID
	}

	status, ok := MapStatus(n.Status)
	if !ok {
		s.metrics.RecordPaymentEvent("unknown", false)
		slog.Warn("ignoring payment notification with unknown status", "txid", n.TxID, "status", n.Status)
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, n.Status)
	}

	tr, err := s.store.ApplyPaymentStatus(ctx, n.TxID, status)
	if err != nil {
		s.metrics.RecordPaymentEvent(status, false)
		return nil, fmt.Errorf("applying payment %s: %w", n.TxID, err)
	}

	s.metrics.RecordPaymentEvent(status, tr.Changed)
	if tr.Changed {
		attrs := []any{"txid", n.TxID, "account_id", tr.Payment.AccountID, "from", tr.From, "to", status}
		if tr.Balance != nil {
			attrs = append(attrs, "amount", tr.Payment.Amount.String(), "balance", tr.Balance.String())
		}
		slog.Info("payment status changed", attrs...)
	}
	return tr, nil
}
