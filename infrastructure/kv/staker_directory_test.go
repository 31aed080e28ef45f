package kv

import (
	"context"
	"errors"
	"testing"

	"stakehouse/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
	err error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, s.err
}

func TestStakerDirectory(t *testing.T) {
	ctx := context.Background()
	directory := NewStakerDirectory(NewMemoryStore())

	require.NoError(t, directory.SetDisplayName(ctx, "u1", "  Alice "))
	require.NoError(t, directory.SetDisplayName(ctx, "u2", "Bob"))

	names, err := directory.ResolveDisplayNames(ctx, []string{"u1", "u2", "u3", "u1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Alice", "u2": "Bob"}, names)

	require.NoError(t, directory.RemoveUser(ctx, "u2"))
	names, err = directory.ResolveDisplayNames(ctx, []string{"u2"})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStakerDirectory_Validation(t *testing.T) {
	directory := NewStakerDirectory(NewMemoryStore())

	assert.ErrorIs(t, directory.SetDisplayName(context.Background(), "", "Alice"), entities.ErrValidation)
	assert.ErrorIs(t, directory.SetDisplayName(context.Background(), "u1", "   "), entities.ErrValidation)
}

func TestStakerDirectory_StoreFailure(t *testing.T) {
	storeErr := errors.New("bucket offline")
	directory := NewStakerDirectory(&failingStore{MemoryStore: NewMemoryStore(), err: storeErr})

	_, err := directory.ResolveDisplayNames(context.Background(), []string{"u1"})
	assert.ErrorIs(t, err, storeErr)
}
