package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAccount_ByDomain(t *testing.T) {
	s := newMockStore()
	byDomain := addAccount(t, s, "a.com", 100)
	bound := addAccount(t, s, "", 100)

	got, err := NewAccountResolver(s).Resolve(context.Background(), "a.com", &bound.ID)
	require.NoError(t, err)
	assert.Equal(t, byDomain.ID, got.ID)
}

func TestResolveAccount_FallsBackToBoundAccount(t *testing.T) {
	s := newMockStore()
	bound := addAccount(t, s, "", 100)

	got, err := NewAccountResolver(s).Resolve(context.Background(), "unknown.com", &bound.ID)
	require.NoError(t, err)
	assert.Equal(t, bound.ID, got.ID)
}

func TestResolveAccount_NotFound(t *testing.T) {
	s := newMockStore()
	missing := uuid.New()

	_, err := NewAccountResolver(s).Resolve(context.Background(), "unknown.com", &missing)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = NewAccountResolver(s).Resolve(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestResolveAccount_StorageFailure(t *testing.T) {
	s := newMockStore()
	s.domainErr = errors.New("timeout")

	_, err := NewAccountResolver(s).Resolve(context.Background(), "a.com", nil)
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.NotErrorIs(t, err, ErrAccountNotFound)
}
