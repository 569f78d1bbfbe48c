package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/consulta/internal/api/response"
	"github.com/kiranshivaraju/consulta/internal/payment"
	"github.com/kiranshivaraju/consulta/internal/store"
)

// PaymentApplier defines the interface the webhook handler depends on.
type PaymentApplier interface {
	Apply(ctx context.Context, n payment.Notification) (*store.PaymentTransition, error)
}

// webhookBody accepts either a single {"txid","status"} event or the
// {"pix": [...]} batch sent for settled charges. Batch items are paid.
type webhookBody struct {
	TxID   string `json:"txid"`
	Status string `json:"status"`
	Pix    []struct {
		TxID string `json:"txid"`
	} `json:"pix"`
}

// NewPixWebhookHandler returns an http.HandlerFunc for POST /api/v1/webhooks/pix.
func NewPixWebhookHandler(svc PaymentApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body webhookBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Corpo da requisição inválido", nil)
			return
		}

		events := []payment.Notification{{TxID: body.TxID, Status: body.Status}}
		if len(body.Pix) > 0 {
			events = events[:0]
			for _, p := range body.Pix {
				events = append(events, payment.Notification{TxID: p.TxID, Status: "CONCLUIDA"})
			}
		}

		results := make([]map[string]any, 0, len(events))
		for _, ev := range events {
			tr, err := svc.Apply(r.Context(), ev)
			switch {
			case err == nil:
				results = append(results, map[string]any{
					"txid":    ev.TxID,
					"status":  tr.Payment.Status,
					"applied": tr.Changed,
				})
			case errors.Is(err, payment.ErrUnknownStatus):
				results = append(results, map[string]any{
					"txid":    ev.TxID,
					"status":  "ignored",
					"applied": false,
				})
			case errors.Is(err, payment.ErrMissingTxID):
				response.Error(w, http.StatusBadRequest, "MISSING_TXID", "txid não informado", nil)
				return
			case errors.Is(err, payment.ErrNotFound):
				response.Error(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "Pagamento não encontrado", map[string]any{"txid": ev.TxID})
				return
			case errors.Is(err, payment.ErrInvalidTransition):
				response.Error(w, http.StatusConflict, "INVALID_TRANSITION", "Transição de status inválida", map[string]any{"txid": ev.TxID})
				return
			default:
				slog.Error("payment webhook failed", "txid", ev.TxID, "error", err)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Erro interno", nil)
				return
			}
		}

		response.OK(w, map[string]any{"payments": results})
	}
}
