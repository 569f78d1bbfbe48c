package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/consulta/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Tokens ---

func (s *PostgresStore) GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*models.APIToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, name, token_hash, token_prefix, active, expires_at, last_used_at, created_at, updated_at
		 FROM api_tokens WHERE token_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api tokens by prefix: %w", err)
	}
	defer rows.Close()

	var tokens []*models.APIToken
	for rows.Next() {
		var t models.APIToken
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.TokenHash, &t.TokenPrefix, &t.Active,
			&t.ExpiresAt, &t.LastUsedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (s *PostgresStore) UpdateAPITokenLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_tokens SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api token last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIToken(ctx context.Context, token *models.APIToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_tokens (id, account_id, name, token_hash, token_prefix, active, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		token.ID, token.AccountID, token.Name, token.TokenHash, token.TokenPrefix, token.Active,
		token.ExpiresAt, token.CreatedAt, token.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api token: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeactivateAPIToken(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_tokens SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivate api token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Accounts ---

func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, domain, balance_cents, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID, account.Name, account.Domain, int64(account.Balance), account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.getAccount(ctx,
		`SELECT id, name, domain, balance_cents, created_at, updated_at FROM accounts WHERE id = $1`, id)
}

func (s *PostgresStore) GetAccountByDomain(ctx context.Context, domain string) (*models.Account, error) {
	return s.getAccount(ctx,
		`SELECT id, name, domain, balance_cents, created_at, updated_at FROM accounts WHERE domain = $1`, domain)
}

func (s *PostgresStore) getAccount(ctx context.Context, query string, arg any) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&a.ID, &a.Name, &a.Domain, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// CreditAccount adds amount to the account balance and returns the new balance.
func (s *PostgresStore) CreditAccount(ctx context.Context, id uuid.UUID, amount models.Credits) (models.Credits, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit account: amount must be positive, got %s", amount)
	}
	var balance models.Credits
	err := s.pool.QueryRow(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + $2, updated_at = NOW()
		 WHERE id = $1 RETURNING balance_cents`, id, int64(amount)).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	return balance, nil
}

// --- Billing ---

// DebitAndLog charges params.Cost to the account and appends a usage_log row
// in a single transaction. The usage row is inserted before the guarded
// balance update so that either both writes commit or neither does.
// Concurrent debits against one account serialize on the row lock taken by
// the UPDATE; a loser sees zero affected rows and gets an
// *InsufficientCreditError with RaceLost set.
func (s *PostgresStore) DebitAndLog(ctx context.Context, p DebitParams) (*DebitResult, error) {
	if p.Cost <= 0 {
		return nil, fmt.Errorf("debit: cost must be positive, got %s", p.Cost)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin debit: %w", err)
	}
	defer tx.Rollback(ctx)

	var before models.Credits
	err = tx.QueryRow(ctx, `SELECT balance_cents FROM accounts WHERE id = $1`, p.AccountID).Scan(&before)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	if before < p.Cost {
		return nil, &InsufficientCreditError{Balance: before, Cost: p.Cost}
	}

	entry := &models.UsageLogEntry{
		ID:           uuid.New(),
		AccountID:    p.AccountID,
		TokenID:      p.TokenID,
		Document:     p.Document,
		DocumentType: p.DocumentType,
		Domain:       p.Domain,
		Cost:         p.Cost,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO usage_log (id, account_id, token_id, document, document_type, domain, cost_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.AccountID, entry.TokenID, entry.Document, entry.DocumentType,
		entry.Domain, int64(entry.Cost), entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert usage log: %w", err)
	}

	var after models.Credits
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET balance_cents = balance_cents - $2, updated_at = NOW()
		 WHERE id = $1 AND balance_cents >= $2 RETURNING balance_cents`,
		p.AccountID, int64(p.Cost)).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		// Roll back the usage row before reporting the balance the winner left behind.
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return nil, fmt.Errorf("rollback lost debit: %w", rbErr)
		}
		current, getErr := s.GetAccount(ctx, p.AccountID)
		if getErr != nil {
			return nil, fmt.Errorf("read balance after lost debit: %w", getErr)
		}
		return nil, &InsufficientCreditError{Balance: current.Balance, Cost: p.Cost, RaceLost: true}
	}
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit debit: %w", err)
	}

	return &DebitResult{Entry: entry, BalanceBefore: before, BalanceAfter: after}, nil
}

// --- Payments ---

func (s *PostgresStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO payments (id, account_id, external_id, amount_cents, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		payment.ID, payment.AccountID, payment.ExternalID, int64(payment.Amount), payment.Status,
		payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

var validPaymentTransitions = map[string][]string{
	models.PaymentStatusPending: {models.PaymentStatusPaid, models.PaymentStatusCancelled},
}

// ApplyPaymentStatus moves a payment to status and, on pending -> paid, credits
// the owning account in the same transaction. Re-applying the current status
// is a no-op, so repeated webhook deliveries credit at most once.
func (s *PostgresStore) ApplyPaymentStatus(ctx context.Context, externalID, status string) (*PaymentTransition, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin payment update: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Payment
	err = tx.QueryRow(ctx,
		`SELECT id, account_id, external_id, amount_cents, status, paid_at, created_at, updated_at
		 FROM payments WHERE external_id = $1 FOR UPDATE`, externalID,
	).Scan(&p.ID, &p.AccountID, &p.ExternalID, &p.Amount, &p.Status, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}

	result := &PaymentTransition{Payment: &p, From: p.Status}
	if p.Status == status {
		return result, nil
	}

	allowed := false
	for _, next := range validPaymentTransitions[p.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, status)
	}

	now := time.Now().UTC()
	p.Status = status
	p.UpdatedAt = now
	if status == models.PaymentStatusPaid {
		p.PaidAt = &now
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $2, paid_at = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Status, p.PaidAt, p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	if status == models.PaymentStatusPaid {
		var balance models.Credits
		if err := tx.QueryRow(ctx,
			`UPDATE accounts SET balance_cents = balance_cents + $2, updated_at = NOW()
			 WHERE id = $1 RETURNING balance_cents`, p.AccountID, int64(p.Amount)).Scan(&balance); err != nil {
			return nil, fmt.Errorf("credit account for payment: %w", err)
		}
		result.Balance = &balance
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit payment update: %w", err)
	}

	result.Changed = true
	return result, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
