package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kiranshivaraju/consulta/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestInsufficientCreditError_Is(t *testing.T) {
	plain := &store.InsufficientCreditError{Balance: 10, Cost: 12}
	assert.ErrorIs(t, plain, store.ErrInsufficientCredit)
	assert.False(t, errors.Is(plain, store.ErrDebitRaceLost))
	assert.Equal(t, "insufficient credit: balance 0.10, cost 0.12", plain.Error())

	raced := &store.InsufficientCreditError{Balance: 4, Cost: 12, RaceLost: true}
	wrapped := fmt.Errorf("debit: %w", raced)
	assert.ErrorIs(t, wrapped, store.ErrInsufficientCredit)
	assert.ErrorIs(t, wrapped, store.ErrDebitRaceLost)
}

func TestInsufficientCreditError_Shortfall(t *testing.T) {
	assert.EqualValues(t, 2, (&store.InsufficientCreditError{Balance: 10, Cost: 12}).Shortfall())
	assert.EqualValues(t, 0, (&store.InsufficientCreditError{Balance: 20, Cost: 12, RaceLost: true}).Shortfall())
}
