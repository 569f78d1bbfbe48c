package lookup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/pkg/document"
	"github.com/kiranshivaraju/consulta/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// --- mock store ---

type mockStore struct {
	mu       sync.Mutex
	tokens   []*models.APIToken
	accounts map[uuid.UUID]*models.Account
	lastUsed map[uuid.UUID]int
	usage    []*models.UsageLogEntry

	prefixErr   error
	lastUsedErr error
	domainErr   error
	debitErr    error
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: make(map[uuid.UUID]*models.Account),
		lastUsed: make(map[uuid.UUID]int),
	}
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }

func (m *mockStore) GetAPITokensByPrefix(ctx context.Context, prefix string) ([]*models.APIToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefixErr != nil {
		return nil, m.prefixErr
	}
	var out []*models.APIToken
	for _, t := range m.tokens {
		if t.TokenPrefix == prefix {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateAPITokenLastUsed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUsed[id]++
	return m.lastUsedErr
}

func (m *mockStore) CreateAPIToken(ctx context.Context, token *models.APIToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *mockStore) DeactivateAPIToken(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id {
			t.Active = false
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *mockStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) GetAccountByDomain(ctx context.Context, domain string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.domainErr != nil {
		return nil, m.domainErr
	}
	for _, a := range m.accounts {
		if a.Domain != nil && *a.Domain == domain {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockStore) CreditAccount(ctx context.Context, id uuid.UUID, amount models.Credits) (models.Credits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	a.Balance += amount
	return a.Balance, nil
}

func (m *mockStore) DebitAndLog(ctx context.Context, p store.DebitParams) (*store.DebitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debitErr != nil {
		return nil, m.debitErr
	}
	a, ok := m.accounts[p.AccountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if a.Balance < p.Cost {
		return nil, &store.InsufficientCreditError{Balance: a.Balance, Cost: p.Cost}
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
	m.usage = append(m.usage, entry)
	before := a.Balance
	a.Balance -= p.Cost
	return &store.DebitResult{Entry: entry, BalanceBefore: before, BalanceAfter: a.Balance}, nil
}

func (m *mockStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (m *mockStore) ApplyPaymentStatus(ctx context.Context, externalID, status string) (*store.PaymentTransition, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) usageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usage)
}

func (m *mockStore) balance(id uuid.UUID) models.Credits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Balance
}

// --- mock upstream ---

type mockUpstream struct {
	mu    sync.Mutex
	calls []document.Document
	fn    func(doc document.Document) (map[string]any, error)
}

func (m *mockUpstream) Lookup(ctx context.Context, doc document.Document) (map[string]any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, doc)
	m.mu.Unlock()
	if m.fn == nil {
		return map[string]any{"razao_social": "ACME LTDA", "numero": doc.Number}, nil
	}
	return m.fn(doc)
}

// --- helpers ---

func addAccount(t *testing.T, s *mockStore, domain string, balance models.Credits) *models.Account {
	t.Helper()
	a := &models.Account{ID: uuid.New(), Name: "acct " + domain, Balance: balance}
	if domain != "" {
		a.Domain = &domain
	}
	_ = s.CreateAccount(context.Background(), a)
	return a
}

// addToken stores a token and returns its raw value. MinCost keeps hashing fast.
func addToken(t *testing.T, s *mockStore, accountID *uuid.UUID, mutate func(*models.APIToken)) (string, *models.APIToken) {
	t.Helper()
	raw := "ck_" + uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	tok := &models.APIToken{
		ID:          uuid.New(),
		AccountID:   accountID,
		Name:        "test",
		TokenHash:   string(hash),
		TokenPrefix: raw[:tokenPrefixLen],
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if mutate != nil {
		mutate(tok)
	}
	_ = s.CreateAPIToken(context.Background(), tok)
	return raw, tok
}
