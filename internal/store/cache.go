package store

import (
	"context"

	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

// TenantCache holds recently resolved ledger rows. Cached tenants never
// carry the encrypted secret; anything that needs it reads the ledger.
type TenantCache interface {
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, bool)
	SetTenant(ctx context.Context, tenant *model.Tenant)
	DeleteTenant(ctx context.Context, tenantID string)
	Close() error
}
