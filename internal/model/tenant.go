package model

import "time"

// TenantStatus tracks how far provisioning of a tenant got
type TenantStatus string

const (
	TenantStatusPending     TenantStatus = "pending"
	TenantStatusProvisioned TenantStatus = "provisioned"
	TenantStatusFailed      TenantStatus = "failed"
)

// Tenant represents one row of the credential ledger
type Tenant struct {
	TenantID        string       `json:"tenant_id"`
	Username        string       `json:"username"`
	EncryptedSecret string       `json:"-"`
	Status          TenantStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Provisioned reports whether the tenant database and account exist
func (t *Tenant) Provisioned() bool {
	return t.Status == TenantStatusProvisioned
}

// TenantHandle addresses one collection inside a tenant database
type TenantHandle struct {
	TenantID   string
	Collection string
}

// ProvisionRequest carries everything needed to create a tenant
type ProvisionRequest struct {
	TenantID        string `validate:"required,tenantid"`
	Username        string `validate:"required"`
	Secret          string `validate:"required"`
	InitialSettings Record
}
