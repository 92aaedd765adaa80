package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]Record
}

func init() {
	Register("memory", createMemoryStore)
}

func createMemoryStore(dimension int, args interface{}) (Store, error) {
	_ = args
	return NewMemory(dimension), nil
}

// NewMemory returns a process-local store: a flat cosine scan over a map.
// It backs tests and small single-node deployments.
func NewMemory(dimension int) Store {
	return &memoryStore{
		dimension: dimension,
		records:   make(map[string]Record),
	}
}

func (s *memoryStore) Init(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *memoryStore) Upsert(ctx context.Context, records []Record) error {
	return upsertInBatches(ctx, records, func(_ context.Context, batch []Record) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, rec := range batch {
			if len(rec.Values) != s.dimension {
				return fmt.Errorf("record %s has dimension %d, store expects %d", rec.ID, len(rec.Values), s.dimension)
			}
			values := make([]float32, len(rec.Values))
			copy(values, rec.Values)
			rec.Values = values
			s.records[rec.ID] = rec
		}
		return nil
	})
}

func (s *memoryStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	_ = ctx
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]Result, 0, len(s.records))
	for _, rec := range s.records {
		if !filter.Matches(rec.Metadata) {
			continue
		}
		results = append(results, Result{
			ID:       rec.ID,
			Score:    cosineSimilarity(vector, rec.Values),
			Metadata: rec.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *memoryStore) Delete(ctx context.Context, filter Filter) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if filter.Matches(rec.Metadata) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	_ = ctx
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
