package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparisonName(t *testing.T) {
	p := &Profile{FullName: "Иванов Иван Иванович", LastName: "Сидоров"}
	assert.Equal(t, "Иванов Иван Иванович", p.ComparisonName())

	p = &Profile{LastName: "Иванов", FirstName: "Иван", MiddleName: "Иванович"}
	assert.Equal(t, "Иванов Иван Иванович", p.ComparisonName())

	p = &Profile{LastName: "Иванов", FirstName: "Иван"}
	assert.Equal(t, "Иванов Иван", p.ComparisonName())

	p = &Profile{}
	assert.Empty(t, p.ComparisonName())
}

func TestMergeIfAbsent(t *testing.T) {
	existing := map[string]string{"passportSeries": "4512", "sex": "M"}
	incoming := map[string]string{
		"passportSeries": "9999", // already present, must not clobber
		"passportNumber": "123456",
		"empty":          "", // empty values are never merged
	}

	merged := MergeIfAbsent(existing, incoming)
	assert.Equal(t, "4512", merged["passportSeries"])
	assert.Equal(t, "M", merged["sex"])
	assert.Equal(t, "123456", merged["passportNumber"])
	_, ok := merged["empty"]
	assert.False(t, ok)
}

func TestMergeIfAbsentNilExisting(t *testing.T) {
	merged := MergeIfAbsent(nil, map[string]string{"a": "1"})
	assert.Equal(t, map[string]string{"a": "1"}, merged)
}

func TestMemoryStoreFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(&Profile{Ref: "u-1", FullName: "Иванов Иван", Birthday: "12.05.1990"})

	p, err := store.FindByRef(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Иванов Иван", p.FullName)

	birthday := "13.05.1990"
	updated, err := store.Update(ctx, "u-1", Update{
		Birthday: &birthday,
		Data:     map[string]string{"passportSeries": "4512"},
	})
	require.NoError(t, err)
	assert.Equal(t, "13.05.1990", updated.Birthday)
	assert.Equal(t, "4512", updated.Data["passportSeries"])

	// Merge is if-absent: a second update with a new value must not win.
	_, err = store.Update(ctx, "u-1", Update{Data: map[string]string{"passportSeries": "0000"}})
	require.NoError(t, err)
	p, err = store.FindByRef(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "4512", p.Data["passportSeries"])
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.FindByRef(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Update(ctx, "missing", Update{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(&Profile{Ref: "u-1", Data: map[string]string{"k": "v"}})

	p, err := store.FindByRef(ctx, "u-1")
	require.NoError(t, err)
	p.Data["k"] = "mutated"
	p.FullName = "mutated"

	fresh, err := store.FindByRef(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "v", fresh.Data["k"])
	assert.Empty(t, fresh.FullName)
}
