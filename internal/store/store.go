package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consulta/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

var (
	// ErrInsufficientCredit matches every *InsufficientCreditError.
	ErrInsufficientCredit = errors.New("insufficient credit")
	// ErrDebitRaceLost matches an *InsufficientCreditError whose guarded update
	// affected no rows because a concurrent debit spent the balance first.
	ErrDebitRaceLost = errors.New("debit race lost")
	// ErrInvalidTransition is returned when a payment cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

// InsufficientCreditError reports a debit refused because the balance does not cover the cost.
type InsufficientCreditError struct {
	Balance  models.Credits
	Cost     models.Credits
	RaceLost bool
}

func (e *InsufficientCreditError) Error() string {
	if e.RaceLost {
		return fmt.Sprintf("insufficient credit: concurrent debit left balance %s below cost %s", e.Balance, e.Cost)
	}
	return fmt.Sprintf("insufficient credit: balance %s, cost %s", e.Balance, e.Cost)
}

func (e *InsufficientCreditError) Is(target error) bool {
	return target == ErrInsufficientCredit || (e.RaceLost && target == ErrDebitRaceLost)
}

// Shortfall is the extra credit needed for the debit to succeed.
func (e *InsufficientCreditError) Shortfall() models.Credits {
	if e.Cost > e.Balance {
		return e.Cost - e.Balance
	}
	return 0
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*models.APIToken, error)
	UpdateAPITokenLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIToken(ctx context.Context, token *models.APIToken) error
	DeactivateAPIToken(ctx context.Context, id uuid.UUID) error

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByDomain(ctx context.Context, domain string) (*models.Account, error)
	CreditAccount(ctx context.Context, id uuid.UUID, amount models.Credits) (models.Credits, error)

	DebitAndLog(ctx context.Context, params DebitParams) (*DebitResult, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	ApplyPaymentStatus(ctx context.Context, externalID, status string) (*PaymentTransition, error)
}

// DebitParams describes one billed lookup.
type DebitParams struct {
	AccountID    uuid.UUID
	TokenID      *uuid.UUID
	Document     string
	DocumentType string
	Domain       string
	Cost         models.Credits
}

// DebitResult is the committed outcome of DebitAndLog.
type DebitResult struct {
	Entry         *models.UsageLogEntry
	BalanceBefore models.Credits
	BalanceAfter  models.Credits
}

// PaymentTransition is the outcome of ApplyPaymentStatus.
type PaymentTransition struct {
	Payment *models.Payment
	From    string
	// Changed is false when the payment already had the requested status.
	Changed bool
	// Balance is the account balance after crediting; set only on pending -> paid.
	Balance *models.Credits
}
