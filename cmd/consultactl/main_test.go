package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	store.Store
	accounts []*models.Account
	tokens   []*models.APIToken
	payments []*models.Payment
	revoked  []uuid.UUID
	credited models.Credits
}

func (f *fakeStore) CreateAccount(_ context.Context, a *models.Account) error {
	f.accounts = append(f.accounts, a)
	return nil
}

func (f *fakeStore) CreateAPIToken(_ context.Context, t *models.APIToken) error {
	f.tokens = append(f.tokens, t)
	return nil
}

func (f *fakeStore) DeactivateAPIToken(_ context.Context, id uuid.UUID) error {
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeStore) CreditAccount(_ context.Context, _ uuid.UUID, amount models.Credits) (models.Credits, error) {
	f.credited += amount
	return f.credited, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	f.payments = append(f.payments, p)
	return nil
}

func run(t *testing.T, fs *fakeStore, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(func(_ context.Context, url string) (store.Store, func(), error) {
		assert.Equal(t, "postgres://test", url)
		return fs, func() {}, nil
	})
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(context.Background(), append([]string{"consultactl", "--database-url", "postgres://test"}, args...))
	return out.String(), err
}

func TestAccountCreate(t *testing.T) {
	fs := &fakeStore{}

	out, err := run(t, fs, "account", "create", "--name", "Loja", "--domain", "https://WWW.Loja.com.br/", "--balance", "25,50")
	require.NoError(t, err)

	require.Len(t, fs.accounts, 1)
	a := fs.accounts[0]
	assert.Equal(t, "Loja", a.Name)
	require.NotNil(t, a.Domain)
	assert.Equal(t, "loja.com.br", *a.Domain)
	assert.Equal(t, models.Credits(2550), a.Balance)
	assert.Contains(t, out, "balance 25.50")
}

func TestAccountCreate_NegativeBalance(t *testing.T) {
	fs := &fakeStore{}

	_, err := run(t, fs, "account", "create", "--name", "Loja", "--balance=-1")
	assert.Error(t, err)
	assert.Empty(t, fs.accounts)
}

func TestTokenIssue(t *testing.T) {
	fs := &fakeStore{}
	accountID := uuid.New()

	out, err := run(t, fs, "token", "issue", "--name", "site", "--account", accountID.String(), "--expires-in", "24h")
	require.NoError(t, err)

	require.Len(t, fs.tokens, 1)
	tok := fs.tokens[0]
	require.NotNil(t, tok.AccountID)
	assert.Equal(t, accountID, *tok.AccountID)
	assert.True(t, tok.Active)
	require.NotNil(t, tok.ExpiresAt)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	raw := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(raw, "ck_"))
	assert.Equal(t, raw[:8], tok.TokenPrefix)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(tok.TokenHash), []byte(raw)))
}

func TestTokenIssue_InvalidAccount(t *testing.T) {
	_, err := run(t, &fakeStore{}, "token", "issue", "--name", "site", "--account", "nope")
	assert.Error(t, err)
}

func TestTokenRevoke(t *testing.T) {
	fs := &fakeStore{}
	id := uuid.New()

	_, err := run(t, fs, "token", "revoke", "--id", id.String())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, fs.revoked)
}

func TestCreditAdd(t *testing.T) {
	fs := &fakeStore{}

	out, err := run(t, fs, "credit", "add", "--account", uuid.NewString(), "--amount", "10.5")
	require.NoError(t, err)
	assert.Equal(t, models.Credits(1050), fs.credited)
	assert.Contains(t, out, "balance 10.50")
}

func TestPaymentRegister(t *testing.T) {
	fs := &fakeStore{}
	accountID := uuid.New()

	_, err := run(t, fs, "payment", "register", "--account", accountID.String(), "--txid", "tx-1", "--amount", "50")
	require.NoError(t, err)

	require.Len(t, fs.payments, 1)
	p := fs.payments[0]
	assert.Equal(t, "tx-1", p.ExternalID)
	assert.Equal(t, models.Credits(5000), p.Amount)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
}

func TestPaymentRegister_ZeroAmount(t *testing.T) {
	fs := &fakeStore{}

	_, err := run(t, fs, "payment", "register", "--account", uuid.NewString(), "--txid", "tx-1", "--amount", "0")
	assert.Error(t, err)
	assert.Empty(t, fs.payments)
}
