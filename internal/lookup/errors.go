package lookup

import (
	"errors"

	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/internal/upstream"
	"github.com/kiranshivaraju/consulta/pkg/document"
)

var (
	ErrMissingToken    = errors.New("missing api token")
	ErrInvalidToken    = errors.New("invalid or expired api token")
	ErrAccountNotFound = errors.New("no account configured for this domain")
	ErrStorageFailure  = errors.New("storage failure")
)

// Errors raised by collaborators, re-exported so callers need only this package.
var (
	ErrMissingDocument       = document.ErrMissingDocument
	ErrInvalidDocumentFormat = document.ErrInvalidFormat
	ErrInsufficientCredit    = store.ErrInsufficientCredit
	ErrDebitRaceLost         = store.ErrDebitRaceLost
	ErrUpstreamUnavailable   = upstream.ErrUnavailable
)

// InsufficientCreditError carries balance, cost and shortfall for 402 responses.
type InsufficientCreditError = store.InsufficientCreditError
