package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/consulta/internal/api/response"
	"github.com/kiranshivaraju/consulta/internal/lookup"
)

const maxBodyBytes = 64 << 10

// Lookuper defines the interface the lookup and balance handlers depend on.
type Lookuper interface {
	Lookup(ctx context.Context, req lookup.Request) (*lookup.Result, error)
	Balance(ctx context.Context, token string, origin lookup.OriginInput) (*lookup.BalanceResult, error)
}

// params are the caller-supplied lookup fields, from whichever source carried them.
type params struct {
	Token  string `json:"token"`
	CNPJ   string `json:"cnpj"`
	CPF    string `json:"cpf"`
	Domain string `json:"domain"`
}

// NewLookupHandler returns an http.HandlerFunc for GET|POST /api/v1/lookup.
// domainHeader names the request header a caller may use to declare its domain.
func NewLookupHandler(svc Lookuper, domainHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := readParams(w, r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Corpo da requisição inválido", nil)
			return
		}

		res, err := svc.Lookup(r.Context(), lookup.Request{
			Token:  p.Token,
			CNPJ:   p.CNPJ,
			CPF:    p.CPF,
			Origin: originInput(r, domainHeader, p.Domain),
		})
		if err != nil {
			writeLookupError(w, err, res)
			return
		}

		body := make(map[string]any, len(res.Payload)+1)
		for k, v := range res.Payload {
			body[k] = v
		}
		body["credito_restante"] = res.Remaining
		response.OK(w, body)
	}
}

// NewBalanceHandler returns an http.HandlerFunc for GET /api/v1/balance.
func NewBalanceHandler(svc Lookuper, domainHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := readParams(w, r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Corpo da requisição inválido", nil)
			return
		}

		res, err := svc.Balance(r.Context(), p.Token, originInput(r, domainHeader, p.Domain))
		if err != nil {
			writeLookupError(w, err, nil)
			return
		}

		response.OK(w, map[string]any{
			"dominio": res.Domain,
			"saldo":   res.Balance,
		})
	}
}

func writeLookupError(w http.ResponseWriter, err error, res *lookup.Result) {
	var credit *lookup.InsufficientCreditError

	switch {
	case errors.Is(err, lookup.ErrMissingToken):
		response.Error(w, http.StatusUnauthorized, "MISSING_TOKEN", "Token de acesso não informado", nil)
	case errors.Is(err, lookup.ErrInvalidToken):
		response.Error(w, http.StatusForbidden, "INVALID_TOKEN", "Token inválido ou expirado", nil)
	case errors.Is(err, lookup.ErrAccountNotFound):
		response.Error(w, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "Nenhuma conta configurada para este domínio", nil)
	case errors.Is(err, lookup.ErrMissingDocument):
		response.Error(w, http.StatusBadRequest, "MISSING_DOCUMENT", "Informe apenas um dos campos cnpj ou cpf", nil)
	case errors.Is(err, lookup.ErrInvalidDocumentFormat):
		response.Error(w, http.StatusBadRequest, "INVALID_DOCUMENT", "CNPJ deve ter 14 dígitos e CPF 11 dígitos", nil)
	case errors.As(err, &credit):
		response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDIT", "Saldo insuficiente", map[string]any{
			"saldo":      credit.Balance,
			"custo":      credit.Cost,
			"necessario": credit.Shortfall(),
		})
	case errors.Is(err, lookup.ErrUpstreamUnavailable):
		var extra map[string]any
		if res != nil {
			extra = map[string]any{"credito_restante": res.Remaining}
		}
		response.Error(w, http.StatusInternalServerError, "UPSTREAM_UNAVAILABLE", "Serviço de consulta indisponível", extra)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Erro interno", nil)
	}
}

// readParams merges the query string with a JSON or form body; body values
// win. The token falls back to an Authorization: Bearer header.
func readParams(w http.ResponseWriter, r *http.Request) (params, error) {
	q := r.URL.Query()
	p := params{
		Token:  q.Get("token"),
		CNPJ:   q.Get("cnpj"),
		CPF:    q.Get("cpf"),
		Domain: q.Get("domain"),
	}

	if r.Method == http.MethodPost && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

		switch mediaType {
		case "application/json":
			var body params
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				return params{}, err
			}
			p = overlay(p, body)
		case "application/x-www-form-urlencoded", "multipart/form-data":
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
				return params{}, err
			}
			p = overlay(p, params{
				Token:  r.PostFormValue("token"),
				CNPJ:   r.PostFormValue("cnpj"),
				CPF:    r.PostFormValue("cpf"),
				Domain: r.PostFormValue("domain"),
			})
		}
	}

	if p.Token == "" {
		p.Token = bearerToken(r)
	}
	return p, nil
}

func overlay(base, top params) params {
	if top.Token != "" {
		base.Token = top.Token
	}
	if top.CNPJ != "" {
		base.CNPJ = top.CNPJ
	}
	if top.CPF != "" {
		base.CPF = top.CPF
	}
	if top.Domain != "" {
		base.Domain = top.Domain
	}
	return base
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func originInput(r *http.Request, domainHeader, paramDomain string) lookup.OriginInput {
	return lookup.OriginInput{
		Origin:       r.Header.Get("Origin"),
		Referer:      r.Header.Get("Referer"),
		HeaderDomain: r.Header.Get(domainHeader),
		ParamDomain:  paramDomain,
		ClientIP:     r.RemoteAddr,
	}
}
