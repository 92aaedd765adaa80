package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnavailable = errors.New("vector store unavailable")
	ErrRateLimited = errors.New("vector store rate limited")
)

// upsertBatchSize is the largest record batch handed to a backend in one
// remote call; larger inputs are split transparently.
const upsertBatchSize = 100

// Metadata is the closed schema attached to every stored vector. UserID is
// mandatory on ingestion and on every query filter; the index itself has no
// tenancy, isolation is enforced by callers through these fields. Text is
// the chunk content denormalized so retrieval needs no second lookup.
type Metadata struct {
	UserID     string `json:"user_id"`
	Source     string `json:"source"`
	DocumentID string `json:"document_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

type Result struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Filter is a conjunctive equality filter over metadata; zero-value fields
// do not constrain. The zero Filter matches every record.
type Filter struct {
	UserID     string
	DocumentID string
}

func (f Filter) IsZero() bool {
	return f.UserID == "" && f.DocumentID == ""
}

func (f Filter) Matches(m Metadata) bool {
	if f.UserID != "" && f.UserID != m.UserID {
		return false
	}
	if f.DocumentID != "" && f.DocumentID != m.DocumentID {
		return false
	}
	return true
}

type Store interface {
	// Init prepares the backend (creates the remote index or table) and
	// validates that its dimension matches the configured one.
	Init(ctx context.Context) error
	// Upsert writes records, overwriting any existing record with the same
	// id. Inputs larger than one provider batch are split internally; a
	// failure after the first batch surfaces as *PartialUpsertError.
	Upsert(ctx context.Context, records []Record) error
	// Query returns up to topK records nearest to vector among those
	// matching the filter, nearest first.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error)
	// Delete removes every record matching the filter. A partial delete is
	// surfaced as an error so callers never assume the set is gone.
	Delete(ctx context.Context, filter Filter) error
	// Ping probes backend liveness.
	Ping(ctx context.Context) error
}

// PartialUpsertError reports an upsert that wrote some batches before
// failing. Written is the count of records durably stored; FailedBatches
// holds the zero-based indices of the batches that were not.
type PartialUpsertError struct {
	Written       int
	FailedBatches []int
	Err           error
}

func (e *PartialUpsertError) Error() string {
	return fmt.Sprintf("partial upsert: %d records written, batches %v failed: %v", e.Written, e.FailedBatches, e.Err)
}

func (e *PartialUpsertError) Unwrap() error {
	return e.Err
}

// upsertInBatches drives the shared batch-splitting policy for backends.
func upsertInBatches(ctx context.Context, records []Record, fn func(ctx context.Context, batch []Record) error) error {
	total := (len(records) + upsertBatchSize - 1) / upsertBatchSize
	for i := 0; i < total; i++ {
		start := i * upsertBatchSize
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := fn(ctx, records[start:end]); err != nil {
			if i == 0 {
				return err
			}
			failed := make([]int, 0, total-i)
			for j := i; j < total; j++ {
				failed = append(failed, j)
			}
			return &PartialUpsertError{Written: start, FailedBatches: failed, Err: err}
		}
	}
	return nil
}

type Factory func(dimension int, args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(typ string, dimension int, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vector_store.dimension must be positive")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", typ)
	}
	return factory(dimension, args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
