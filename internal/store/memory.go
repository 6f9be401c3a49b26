package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

// MemoryStore implements DocumentStore in process memory. It backs tests
// and local development without a MongoDB deployment.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]map[string]string // tenant id -> username -> secret
	documents map[string]map[string][]model.Record
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]map[string]string),
		documents: make(map[string]map[string][]model.Record),
	}
}

// EnsureTenantDatabase records the tenant account
func (s *MemoryStore) EnsureTenantDatabase(ctx context.Context, tenantID, username, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accounts[tenantID] == nil {
		s.accounts[tenantID] = make(map[string]string)
	}
	s.accounts[tenantID][username] = secret
	if s.documents[tenantID] == nil {
		s.documents[tenantID] = make(map[string][]model.Record)
	}
	return nil
}

// HasAccount reports whether EnsureTenantDatabase ran for the tenant account
func (s *MemoryStore) HasAccount(tenantID, username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[tenantID][username]
	return ok
}

// InsertOne stores a single document
func (s *MemoryStore) InsertOne(ctx context.Context, handle model.TenantHandle, doc model.Record) (string, error) {
	summary, err := s.InsertMany(ctx, handle, []model.Record{doc})
	if err != nil {
		return "", err
	}
	return summary.InsertedIDs[0], nil
}

// InsertMany stores docs in order, generating ids where absent
func (s *MemoryStore) InsertMany(ctx context.Context, handle model.TenantHandle, docs []model.Record) (*model.InsertSummary, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.documents[handle.TenantID] == nil {
		s.documents[handle.TenantID] = make(map[string][]model.Record)
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		stored := make(model.Record, 0, len(doc)+1)
		id, ok := doc.Get(IDField)
		if !ok {
			id = uuid.NewString()
			stored = append(stored, model.Field{Key: IDField, Value: id})
		}
		stored = append(stored, doc...)

		ids[i] = formatID(id)
		s.documents[handle.TenantID][handle.Collection] = append(s.documents[handle.TenantID][handle.Collection], stored)
	}

	return &model.InsertSummary{InsertedCount: len(docs), InsertedIDs: ids}, nil
}

// FindOne returns the first stored document matching filter
func (s *MemoryStore) FindOne(ctx context.Context, handle model.TenantHandle, filter model.Record) (model.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents[handle.TenantID][handle.Collection] {
		if matches(doc, filter) {
			out := make(model.Record, len(doc))
			copy(out, doc)
			return out, true, nil
		}
	}
	return nil, false, nil
}

// Count returns the number of documents in a collection
func (s *MemoryStore) Count(handle model.TenantHandle) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents[handle.TenantID][handle.Collection])
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func matches(doc, filter model.Record) bool {
	for _, f := range filter {
		v, ok := doc.Get(f.Key)
		if !ok || !valuesEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// valuesEqual compares numbers by value regardless of their Go type, the
// way the document database does
func valuesEqual(a, b interface{}) bool {
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}

	ra, aok := a.(model.Record)
	rb, bok := b.(model.Record)
	if aok && bok {
		return len(ra) == len(rb) && matches(ra, rb)
	}

	la, aok := a.([]interface{})
	lb, bok := b.([]interface{})
	if aok && bok {
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !valuesEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
