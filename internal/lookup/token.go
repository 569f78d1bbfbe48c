package lookup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenPrefix    = "ck_"
	tokenPrefixLen = 8
)

// TokenValidator checks caller tokens against the token store.
type TokenValidator struct {
	store store.Store
	now   func() time.Time
}

// TokenOption configures a TokenValidator.
type TokenOption func(*TokenValidator)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(v *TokenValidator) {
		v.now = now
	}
}

// NewTokenValidator creates a TokenValidator.
func NewTokenValidator(s store.Store, opts ...TokenOption) *TokenValidator {
	v := &TokenValidator{store: s, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the stored token matching raw. It fails with ErrInvalidToken
// when nothing matches, the token is inactive, or it has expired. On success
// last_used_at is refreshed; a failure there is logged and otherwise ignored.
func (v *TokenValidator) Validate(ctx context.Context, raw string) (*models.APIToken, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	if len(raw) < tokenPrefixLen {
		return nil, ErrInvalidToken
	}

	candidates, err := v.store.GetAPITokensByPrefix(ctx, raw[:tokenPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	var matched *models.APIToken
	for _, t := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(t.TokenHash), []byte(raw)) == nil {
			matched = t
			break
		}
	}
	if matched == nil || !matched.Usable(v.now()) {
		return nil, ErrInvalidToken
	}

	if err := v.store.UpdateAPITokenLastUsed(ctx, matched.ID); err != nil {
		slog.Warn("update token last_used failed", "token_id", matched.ID, "error", err)
	}

	return matched, nil
}

// IssuedToken is a freshly generated token. Raw is shown to the operator once.
type IssuedToken struct {
	Raw    string
	Prefix string
	Hash   string
}

// GenerateToken creates a random token and its bcrypt hash.
func GenerateToken() (*IssuedToken, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	raw := tokenPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &IssuedToken{Raw: raw, Prefix: raw[:tokenPrefixLen], Hash: string(hash)}, nil
}
