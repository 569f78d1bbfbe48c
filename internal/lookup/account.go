package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/kiranshivaraju/consulta/pkg/models"
)

// AccountResolver maps a resolved domain, or a token's bound account, to a billing account.
type AccountResolver struct {
	store store.Store
}

func NewAccountResolver(s store.Store) *AccountResolver {
	return &AccountResolver{store: s}
}

// Resolve tries an exact domain match first and falls back to boundID.
func (r *AccountResolver) Resolve(ctx context.Context, domain string, boundID *uuid.UUID) (*models.Account, error) {
	if domain != "" {
		acct, err := r.store.GetAccountByDomain(ctx, domain)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}

	if boundID != nil {
		acct, err := r.store.GetAccount(ctx, *boundID)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}

	return nil, ErrAccountNotFound
}
