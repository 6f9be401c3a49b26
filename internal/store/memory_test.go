package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

func TestMemoryStore_EnsureTenantDatabase(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.EnsureTenantDatabase(ctx, "acme", "admin", "pw"))
	require.NoError(t, s.EnsureTenantDatabase(ctx, "acme", "admin", "pw"))
	assert.True(t, s.HasAccount("acme", "admin"))
	assert.False(t, s.HasAccount("acme", "other"))
}

func TestMemoryStore_InsertManyGeneratesIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	handle := model.TenantHandle{TenantID: "acme", Collection: "users"}

	summary, err := s.InsertMany(ctx, handle, []model.Record{
		{{Key: "name", Value: "Sam"}},
		{{Key: "_id", Value: "fixed"}, {Key: "name", Value: "Ann"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.InsertedCount)
	require.Len(t, summary.InsertedIDs, 2)
	assert.NotEmpty(t, summary.InsertedIDs[0])
	assert.Equal(t, "fixed", summary.InsertedIDs[1])
	assert.Equal(t, 2, s.Count(handle))

	doc, found, err := s.FindOne(ctx, handle, model.Record{{Key: "name", Value: "Sam"}})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"_id", "name"}, doc.Keys())
	id, _ := doc.Get("_id")
	assert.Equal(t, summary.InsertedIDs[0], id)
}

func TestMemoryStore_InsertManyEmpty(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.InsertMany(context.Background(), model.TenantHandle{TenantID: "acme", Collection: "users"}, nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestMemoryStore_FindOne(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	handle := model.TenantHandle{TenantID: "acme", Collection: "users"}

	_, err := s.InsertOne(ctx, handle, model.Record{
		{Key: "username", Value: "sam"},
		{Key: "age", Value: int64(30)},
		{Key: "address", Value: model.Record{{Key: "city", Value: "Pune"}}},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter model.Record
		found  bool
	}{
		{"exact string", model.Record{{Key: "username", Value: "sam"}}, true},
		{"number across types", model.Record{{Key: "age", Value: float64(30)}}, true},
		{"nested document", model.Record{{Key: "address", Value: model.Record{{Key: "city", Value: "Pune"}}}}, true},
		{"all fields must match", model.Record{{Key: "username", Value: "sam"}, {Key: "age", Value: int64(31)}}, false},
		{"missing key", model.Record{{Key: "email", Value: "x"}}, false},
		{"empty filter matches first", model.Record{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, found, err := s.FindOne(ctx, handle, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestMemoryStore_TenantIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.InsertOne(ctx, model.TenantHandle{TenantID: "a", Collection: "users"}, model.Record{{Key: "name", Value: "Sam"}})
	require.NoError(t, err)

	_, found, err := s.FindOne(ctx, model.TenantHandle{TenantID: "b", Collection: "users"}, model.Record{{Key: "name", Value: "Sam"}})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.EnsureTenantDatabase(ctx, "acme", "admin", "pw")
	assert.ErrorIs(t, err, context.Canceled)
}
