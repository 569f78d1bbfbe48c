// Package lookup runs a billed registry lookup: token check, origin and
// account resolution, pricing, debit, and the upstream call.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consulta/internal/metrics"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/internal/upstream"
	"github.com/kiranshivaraju/consulta/pkg/document"
	"github.com/kiranshivaraju/consulta/pkg/models"
)

// Request is one inbound lookup as received from the HTTP layer.
type Request struct {
	Token  string
	CNPJ   string
	CPF    string
	Origin OriginInput
}

// Result is the outcome of a lookup. On upstream failure it is returned
// alongside the error so the caller can still report the remaining balance.
type Result struct {
	Document  document.Document
	Domain    string
	AccountID uuid.UUID
	Charged   models.Credits
	Remaining models.Credits
	Payload   map[string]any
}

// BalanceResult is the outcome of a balance query.
type BalanceResult struct {
	Domain    string
	AccountID uuid.UUID
	Balance   models.Credits
}

// Service executes lookups. It holds no per-request state.
type Service struct {
	tokens   *TokenValidator
	accounts *AccountResolver
	store    store.Store
	upstream upstream.Client
	metrics  *metrics.Metrics
}

// NewService wires a Service. m may be nil.
func NewService(st store.Store, up upstream.Client, m *metrics.Metrics, opts ...TokenOption) *Service {
	return &Service{
		tokens:   NewTokenValidator(st, opts...),
		accounts: NewAccountResolver(st),
		store:    st,
		upstream: up,
		metrics:  m,
	}
}

// Lookup validates, prices and debits the request, then calls the upstream
// provider. The debit is committed before the upstream call and is not
// refunded if that call fails.
func (s *Service) Lookup(ctx context.Context, req Request) (*Result, error) {
	token, err := s.tokens.Validate(ctx, req.Token)
	if err != nil {
		s.metrics.RecordLookup("", outcome(err))
		return nil, err
	}

	domain := ResolveOrigin(req.Origin)

	account, err := s.accounts.Resolve(ctx, domain, token.AccountID)
	if err != nil {
		s.metrics.RecordLookup("", outcome(err))
		if !errors.Is(err, ErrAccountNotFound) {
			slog.Error("account resolution failed", "domain", domain, "error", err)
		}
		return nil, err
	}

	doc, err := document.Parse(req.CNPJ, req.CPF)
	if err != nil {
		s.metrics.RecordLookup("", outcome(err))
		return nil, err
	}
	docType := string(doc.Type)

	debit, err := s.store.DebitAndLog(ctx, store.DebitParams{
		AccountID:    account.ID,
		TokenID:      &token.ID,
		Document:     doc.Number,
		DocumentType: docType,
		Domain:       domain,
		Cost:         doc.Cost(),
	})
	if err != nil {
		err = s.debitError(err)
		s.metrics.RecordLookup(docType, outcome(err))
		if errors.Is(err, ErrStorageFailure) {
			slog.Error("debit failed", "account_id", account.ID, "document_type", docType, "error", err)
		}
		return nil, err
	}
	s.metrics.RecordDebit(docType, doc.Cost().Float64())

	result := &Result{
		Document:  doc,
		Domain:    domain,
		AccountID: account.ID,
		Charged:   doc.Cost(),
		Remaining: debit.BalanceAfter,
	}

	start := time.Now()
	payload, err := s.upstream.Lookup(ctx, doc)
	s.metrics.ObserveUpstream(docType, err == nil, time.Since(start))
	if err != nil {
		s.metrics.RecordLookup(docType, metrics.OutcomeUpstreamFailed)
		slog.Error("upstream lookup failed after debit",
			"account_id", account.ID,
			"domain", domain,
			"document_type", docType,
			"charged", result.Charged.String(),
			"error", err,
		)
		return result, err
	}

	result.Payload = payload
	s.metrics.RecordLookup(docType, metrics.OutcomeSuccess)
	slog.Info("lookup served",
		"account_id", account.ID,
		"domain", domain,
		"document_type", docType,
		"remaining", result.Remaining.String(),
	)
	return result, nil
}

// Balance reports the balance of the account the request resolves to.
// It passes the same token and account gates as Lookup but charges nothing.
func (s *Service) Balance(ctx context.Context, token string, origin OriginInput) (*BalanceResult, error) {
	tok, err := s.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	domain := ResolveOrigin(origin)
	account, err := s.accounts.Resolve(ctx, domain, tok.AccountID)
	if err != nil {
		return nil, err
	}

	return &BalanceResult{Domain: domain, AccountID: account.ID, Balance: account.Balance}, nil
}

func (s *Service) debitError(err error) error {
	switch {
	case errors.Is(err, ErrDebitRaceLost):
		s.metrics.RecordDebitRaceLost()
		return err
	case errors.Is(err, ErrInsufficientCredit):
		return err
	case errors.Is(err, store.ErrNotFound):
		return ErrAccountNotFound
	default:
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken):
		return metrics.OutcomeInvalidToken
	case errors.Is(err, ErrAccountNotFound):
		return metrics.OutcomeAccountNotFound
	case errors.Is(err, ErrMissingDocument), errors.Is(err, ErrInvalidDocumentFormat):
		return metrics.OutcomeInvalidDocument
	case errors.Is(err, ErrInsufficientCredit):
		return metrics.OutcomeInsufficientCredit
	case errors.Is(err, ErrUpstreamUnavailable):
		return metrics.OutcomeUpstreamFailed
	default:
		return metrics.OutcomeStorageFailure
	}
}
