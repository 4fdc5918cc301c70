package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ref, err := store.Put(ctx, []byte("jpeg-bytes"), Meta{
		ContentType: "image/jpeg",
		Kind:        "avatar",
		ProfileRef:  "u-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	meta, ok := store.MetaFor(ref)
	require.True(t, ok)
	assert.Equal(t, "avatar", meta.Kind)
	assert.Equal(t, "u-1", meta.ProfileRef)
}

func TestMemoryStoreRefsAreUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.Put(ctx, []byte("a"), Meta{})
	require.NoError(t, err)
	b, err := store.Put(ctx, []byte("b"), Meta{})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ref, err := store.Put(ctx, []byte{1, 2, 3}, Meta{})
	require.NoError(t, err)

	data, err := store.Get(ctx, ref)
	require.NoError(t, err)
	data[0] = 99

	fresh, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, byte(1), fresh[0])
}
