package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func vec(vals ...float32) []float32 {
	return vals
}

func TestMemoryStore_UserIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(3)
	require.NoError(t, store.Upsert(ctx, []Record{
		{ID: "a1", Values: vec(1, 0, 0), Metadata: Metadata{UserID: "A", Source: "text", Text: "alpha"}},
		{ID: "b1", Values: vec(1, 0, 0), Metadata: Metadata{UserID: "B", Source: "text", Text: "bravo"}},
	}))

	results, err := store.Query(ctx, vec(1, 0, 0), 10, Filter{UserID: "B"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b1", results[0].ID)
	require.Equal(t, "B", results[0].Metadata.UserID)
}

func TestMemoryStore_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(3)
	require.NoError(t, store.Upsert(ctx, []Record{
		{ID: "r1", Values: vec(1, 0, 0), Metadata: Metadata{UserID: "A", Text: "old"}},
	}))
	require.NoError(t, store.Upsert(ctx, []Record{
		{ID: "r1", Values: vec(0, 1, 0), Metadata: Metadata{UserID: "A", Text: "new"}},
	}))

	results, err := store.Query(ctx, vec(0, 1, 0), 10, Filter{UserID: "A"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "new", results[0].Metadata.Text)
	require.InDelta(t, 1.0, float64(results[0].Score), 1e-6, "latest vector must be the stored one")
}

func TestMemoryStore_NearestFirstAndTopK(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2)
	require.NoError(t, store.Upsert(ctx, []Record{
		{ID: "far", Values: vec(0, 1), Metadata: Metadata{UserID: "A", Text: "far"}},
		{ID: "near", Values: vec(1, 0.01), Metadata: Metadata{UserID: "A", Text: "near"}},
		{ID: "mid", Values: vec(1, 1), Metadata: Metadata{UserID: "A", Text: "mid"}},
	}))

	results, err := store.Query(ctx, vec(1, 0), 2, Filter{UserID: "A"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "near", results[0].ID)
	require.Equal(t, "mid", results[1].ID)
}

func TestMemoryStore_DeleteByDocumentFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(2)
	require.NoError(t, store.Upsert(ctx, []Record{
		{ID: "d1c1", Values: vec(1, 0), Metadata: Metadata{UserID: "A", DocumentID: "d1"}},
		{ID: "d1c2", Values: vec(0, 1), Metadata: Metadata{UserID: "A", DocumentID: "d1"}},
		{ID: "d2c1", Values: vec(1, 1), Metadata: Metadata{UserID: "A", DocumentID: "d2"}},
	}))

	require.NoError(t, store.Delete(ctx, Filter{UserID: "A", DocumentID: "d1"}))

	results, err := store.Query(ctx, vec(1, 0), 10, Filter{UserID: "A"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "d2c1", results[0].ID)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(3)
	err := store.Upsert(ctx, []Record{{ID: "bad", Values: vec(1, 0), Metadata: Metadata{UserID: "A"}}})
	require.Error(t, err)
}
