package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/kiranshivaraju/consulta/internal/api/response"
)

// WebhookSecretHeader carries the shared secret on payment notifications.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuth rejects requests whose X-Webhook-Secret does not match secret.
// With an empty secret every request is rejected.
func WebhookAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				response.Error(w, http.StatusServiceUnavailable, "WEBHOOK_DISABLED", "Webhook não configurado", nil)
				return
			}
			got := r.Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.Error(w, http.StatusUnauthorized, "INVALID_WEBHOOK_SECRET", "Assinatura do webhook inválida", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
