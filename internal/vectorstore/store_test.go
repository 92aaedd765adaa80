package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{ID: fmt.Sprintf("r%d", i), Values: []float32{1}, Metadata: Metadata{UserID: "A"}}
	}
	return records
}

func TestUpsertInBatches_SplitsAtBatchSize(t *testing.T) {
	var sizes []int
	err := upsertInBatches(context.Background(), makeRecords(250), func(_ context.Context, batch []Record) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{100, 100, 50}, sizes)
}

func TestUpsertInBatches_FirstBatchFailureIsPlainError(t *testing.T) {
	boom := errors.New("boom")
	err := upsertInBatches(context.Background(), makeRecords(150), func(_ context.Context, _ []Record) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	var partial *PartialUpsertError
	require.False(t, errors.As(err, &partial), "nothing written, so not a partial failure")
}

func TestUpsertInBatches_MidwayFailureIsPartial(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := upsertInBatches(context.Background(), makeRecords(250), func(_ context.Context, _ []Record) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	var partial *PartialUpsertError
	require.True(t, errors.As(err, &partial))
	require.Equal(t, 100, partial.Written)
	require.Equal(t, []int{1, 2}, partial.FailedBatches)
	require.ErrorIs(t, err, boom)
}

func TestFilter_Matches(t *testing.T) {
	meta := Metadata{UserID: "A", Source: "notes.txt", DocumentID: "d1"}
	require.True(t, Filter{}.Matches(meta))
	require.True(t, Filter{UserID: "A"}.Matches(meta))
	require.True(t, Filter{UserID: "A", DocumentID: "d1"}.Matches(meta))
	require.False(t, Filter{UserID: "B"}.Matches(meta))
	require.False(t, Filter{UserID: "A", DocumentID: "d2"}.Matches(meta))
}

func TestNew_UnknownTypeAndBadDimension(t *testing.T) {
	_, err := New("milvus", 8, nil)
	require.Error(t, err)
	_, err = New("memory", 0, nil)
	require.Error(t, err)
}
