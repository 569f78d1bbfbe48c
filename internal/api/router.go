package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/consulta/internal/api/middleware"
	"github.com/kiranshivaraju/consulta/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit     *mw.RateLimit
	WebhookSecret string
	// TrustProxyHeaders enables chi's RealIP. Leave off unless a proxy
	// in front rewrites X-Forwarded-For and X-Real-IP.
	TrustProxyHeaders bool

	HealthHandler     http.HandlerFunc
	MetricsHandler    http.Handler
	LookupHandler     http.HandlerFunc
	BalanceHandler    http.HandlerFunc
	PixWebhookHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// RealIP runs first so every later layer sees the caller's address.
	if deps.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Rota não encontrada", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método não permitido", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Billed routes
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		lookup := orNotImplemented(deps.LookupHandler)
		r.Get("/api/v1/lookup", lookup)
		r.Post("/api/v1/lookup", lookup)
		r.Get("/proxy_api", lookup)
		r.Post("/proxy_api", lookup)

		r.Get("/api/v1/balance", orNotImplemented(deps.BalanceHandler))
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.WebhookAuth(deps.WebhookSecret))

		r.Post("/api/v1/webhooks/pix", orNotImplemented(deps.PixWebhookHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint não implementado", nil)
	}
}
