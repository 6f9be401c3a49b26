// Package store holds the per-tenant document databases and the tenant
// lookup caches in front of the ledger.
package store

import (
	"context"
	"errors"

	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

// IDField is the primary key every stored document carries
const IDField = "_id"

// ErrEmptyBatch is returned when InsertMany receives no documents
var ErrEmptyBatch = errors.New("no documents to insert")

// DocumentStore is the document database holding one logical database per
// tenant. Implementations must be safe for concurrent use.
type DocumentStore interface {
	// EnsureTenantDatabase creates the tenant database and grants the account
	// full ownership of it. Calling it again for the same tenant is safe.
	EnsureTenantDatabase(ctx context.Context, tenantID, username, secret string) error

	InsertOne(ctx context.Context, handle model.TenantHandle, doc model.Record) (string, error)
	InsertMany(ctx context.Context, handle model.TenantHandle, docs []model.Record) (*model.InsertSummary, error)

	// FindOne returns the first document whose fields equal every field of
	// filter. found is false when nothing matches.
	FindOne(ctx context.Context, handle model.TenantHandle, filter model.Record) (doc model.Record, found bool, err error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
