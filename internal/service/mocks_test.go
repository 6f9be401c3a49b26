package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vmskonakanchi/ymts-crud-api/internal/ledger"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"github.com/vmskonakanchi/ymts-crud-api/internal/secret"
	"github.com/vmskonakanchi/ymts-crud-api/internal/store"
	"go.uber.org/zap"
)

// MockLedger is a mock implementation of ledger.Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Exists(ctx context.Context, tenantID string) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Insert(ctx context.Context, tenant *model.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockLedger) Get(ctx context.Context, tenantID string) (*model.Tenant, error) {
	args := m.Called(ctx, tenantID)
	tenant, _ := args.Get(0).(*model.Tenant)
	return tenant, args.Error(1)
}

func (m *MockLedger) UpdateStatus(ctx context.Context, tenantID string, status model.TenantStatus) error {
	args := m.Called(ctx, tenantID, status)
	return args.Error(0)
}

func (m *MockLedger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLedger) Close() error {
	return m.Called().Error(0)
}

// MockDocumentStore is a mock implementation of store.DocumentStore
type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) EnsureTenantDatabase(ctx context.Context, tenantID, username, secret string) error {
	args := m.Called(ctx, tenantID, username, secret)
	return args.Error(0)
}

func (m *MockDocumentStore) InsertOne(ctx context.Context, handle model.TenantHandle, doc model.Record) (string, error) {
	args := m.Called(ctx, handle, doc)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) InsertMany(ctx context.Context, handle model.TenantHandle, docs []model.Record) (*model.InsertSummary, error) {
	args := m.Called(ctx, handle, docs)
	summary, _ := args.Get(0).(*model.InsertSummary)
	return summary, args.Error(1)
}

func (m *MockDocumentStore) FindOne(ctx context.Context, handle model.TenantHandle, filter model.Record) (model.Record, bool, error) {
	args := m.Called(ctx, handle, filter)
	doc, _ := args.Get(0).(model.Record)
	return doc, args.Bool(1), args.Error(2)
}

func (m *MockDocumentStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDocumentStore) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCipher(t *testing.T) *secret.Cipher {
	t.Helper()

	c, err := secret.New(testKey)
	require.NoError(t, err)
	return c
}

func newTestLedger(t *testing.T) *ledger.SQLiteLedger {
	t.Helper()

	l, err := ledger.NewSQLiteLedger(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func newTestCache(t *testing.T) *store.MemoryCache {
	t.Helper()

	c := store.NewMemoryCache(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	return c
}
