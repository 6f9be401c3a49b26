package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/ledger"
	"github.com/vmskonakanchi/ymts-crud-api/internal/metrics"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"github.com/vmskonakanchi/ymts-crud-api/internal/store"
	"go.uber.org/zap"
)

// Router runs document operations inside the database of a provisioned tenant
type Router struct {
	ledger  ledger.Ledger
	store   store.DocumentStore
	cache   store.TenantCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRouter creates a new document router
func NewRouter(
	tenantLedger ledger.Ledger,
	documentStore store.DocumentStore,
	cache store.TenantCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Router {
	return &Router{
		ledger:  tenantLedger,
		store:   documentStore,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// Insert stores records as one batch in the tenant collection
func (r *Router) Insert(ctx context.Context, tenantID, collection string, records []model.Record) (*model.InsertSummary, error) {
	if len(records) == 0 {
		return nil, apierrors.MissingField("Missing data to insert")
	}

	handle, err := r.resolve(ctx, tenantID, collection)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	summary, err := r.store.InsertMany(ctx, handle, records)
	r.metrics.RecordStoreOperation("insert_many", err, time.Since(start))
	if err != nil {
		return nil, apierrors.Store("Error occurred during data insertion", err)
	}

	r.logger.Debug("Inserted documents",
		zap.String("tenant_id", tenantID),
		zap.String("collection", collection),
		zap.Int("count", summary.InsertedCount))

	return summary, nil
}

// FindOne returns the first document equal to filter on every field.
// found is false when nothing matches.
func (r *Router) FindOne(ctx context.Context, tenantID, collection string, filter model.Record) (model.Record, bool, error) {
	handle, err := r.resolve(ctx, tenantID, collection)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	doc, found, err := r.store.FindOne(ctx, handle, filter)
	r.metrics.RecordStoreOperation("find_one", err, time.Since(start))
	if err != nil {
		return nil, false, apierrors.Store("Error occurred during data lookup", err)
	}

	return doc, found, nil
}

// resolve checks the tenant is provisioned and the collection name is legal
func (r *Router) resolve(ctx context.Context, tenantID, collection string) (model.TenantHandle, error) {
	if err := checkCollectionName(collection); err != nil {
		return model.TenantHandle{}, apierrors.InvalidRequest(err.Error(), nil).
			WithDetail("collection", collection)
	}

	tenant, ok := r.cache.GetTenant(ctx, tenantID)
	r.metrics.RecordCacheLookup(ok)
	if !ok {
		var err error
		tenant, err = r.ledger.Get(ctx, tenantID)
		if errors.Is(err, ledger.ErrNotFound) {
			return model.TenantHandle{}, apierrors.TenantNotFound(tenantID)
		}
		if err != nil {
			return model.TenantHandle{}, apierrors.NewAPIError(apierrors.ErrorCodeInternalError, "failed to read tenant ledger", err)
		}
		if tenant.Provisioned() {
			r.cache.SetTenant(ctx, tenant)
		}
	}

	if !tenant.Provisioned() {
		return model.TenantHandle{}, apierrors.TenantNotFound(tenantID).
			WithDetail("status", string(tenant.Status))
	}

	return model.TenantHandle{TenantID: tenant.TenantID, Collection: collection}, nil
}

func checkCollectionName(name string) error {
	switch {
	case name == "":
		return errors.New("collection name is required")
	case strings.ContainsAny(name, "$\x00"):
		return fmt.Errorf("collection name %q contains an illegal character", name)
	case strings.HasPrefix(name, "system."):
		return fmt.Errorf("collection name %q is reserved", name)
	}
	return nil
}
