// Package ledger records which tenants have been provisioned and the
// credentials issued to them.
package ledger

import (
	"context"
	"errors"

	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

var (
	// ErrConflict is returned when a row for the tenant already exists
	ErrConflict = errors.New("tenant already recorded in ledger")
	// ErrNotFound is returned when the tenant has no row
	ErrNotFound = errors.New("tenant not found in ledger")
)

const tableName = "db_users"

// Ledger is the durable record of provisioned tenants. Insert is an atomic
// insert-if-absent; identity columns are never modified after it.
type Ledger interface {
	Exists(ctx context.Context, tenantID string) (bool, error)
	Insert(ctx context.Context, tenant *model.Tenant) error
	Get(ctx context.Context, tenantID string) (*model.Tenant, error)
	UpdateStatus(ctx context.Context, tenantID string, status model.TenantStatus) error

	Ping(ctx context.Context) error
	Close() error
}
