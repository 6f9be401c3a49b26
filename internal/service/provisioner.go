package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/ledger"
	"github.com/vmskonakanchi/ymts-crud-api/internal/metrics"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"github.com/vmskonakanchi/ymts-crud-api/internal/store"
	"go.uber.org/zap"
)

// SettingsCollection receives the initial settings document of a tenant
const SettingsCollection = "settings"

// SecretCipher encrypts tenant secrets for the ledger
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Provisioner creates tenant databases and records their credentials
type Provisioner struct {
	ledger   ledger.Ledger
	store    store.DocumentStore
	cache    store.TenantCache
	cipher   SecretCipher
	validate *validator.Validate
	locks    *keyedMutex
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewProvisioner creates a new provisioner. timeout bounds the document
// store work of a single provisioning call.
func NewProvisioner(
	tenantLedger ledger.Ledger,
	documentStore store.DocumentStore,
	cache store.TenantCache,
	cipher SecretCipher,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Provisioner {
	return &Provisioner{
		ledger:   tenantLedger,
		store:    documentStore,
		cache:    cache,
		cipher:   cipher,
		validate: newRequestValidator(),
		locks:    newKeyedMutex(),
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// Provision creates the tenant database, its owner account and the initial
// settings document. A tenant left pending or failed by an earlier call is
// completed when the same credentials are presented again.
func (p *Provisioner) Provision(ctx context.Context, req *model.ProvisionRequest) error {
	if err := checkProvisionRequest(p.validate, req); err != nil {
		p.metrics.RecordProvisioning(metrics.OutcomeRejected, "")
		return err
	}

	unlock := p.locks.Lock(req.TenantID)
	defer unlock()

	logger := p.logger.With(zap.String("tenant_id", req.TenantID))

	exists, err := p.ledger.Exists(ctx, req.TenantID)
	if err != nil {
		p.metrics.RecordProvisioning(metrics.OutcomeFailed, string(apierrors.StageLedger))
		return apierrors.Provision(apierrors.StageLedger, false, err)
	}

	outcome := metrics.OutcomeCreated
	if exists {
		if err := p.checkRetry(ctx, req); err != nil {
			if apierrors.IsCode(err, apierrors.ErrorCodeTenantExists) {
				p.metrics.RecordProvisioning(metrics.OutcomeExists, "")
			} else {
				p.metrics.RecordProvisioning(metrics.OutcomeFailed, string(apierrors.StageLedger))
			}
			return err
		}
		outcome = metrics.OutcomeReconciled
		logger.Info("Resuming incomplete tenant provisioning")
	} else if err := p.record(ctx, req); err != nil {
		if apierrors.IsCode(err, apierrors.ErrorCodeTenantExists) {
			p.metrics.RecordProvisioning(metrics.OutcomeExists, "")
		} else {
			p.metrics.RecordProvisioning(metrics.OutcomeFailed, string(apierrors.StageLedger))
		}
		return err
	}

	if err := p.complete(ctx, req, exists); err != nil {
		var apiErr *apierrors.APIError
		if errors.As(err, &apiErr) {
			p.metrics.RecordProvisioning(metrics.OutcomeFailed, string(apiErr.Stage))
		}
		return err
	}

	p.metrics.RecordProvisioning(outcome, "")
	logger.Info("Tenant provisioned", zap.String("username", req.Username))
	return nil
}

// Status returns the ledger row of a tenant
func (p *Provisioner) Status(ctx context.Context, tenantID string) (*model.Tenant, error) {
	tenant, err := p.ledger.Get(ctx, tenantID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apierrors.TenantNotFound(tenantID)
	}
	if err != nil {
		return nil, apierrors.NewAPIError(apierrors.ErrorCodeInternalError, "failed to read tenant ledger", err)
	}
	return tenant, nil
}

// checkRetry allows a repeated call only for an unfinished tenant whose
// stored credentials match the request
func (p *Provisioner) checkRetry(ctx context.Context, req *model.ProvisionRequest) error {
	existing, err := p.ledger.Get(ctx, req.TenantID)
	if err != nil {
		return apierrors.Provision(apierrors.StageLedger, false, err)
	}
	if existing.Provisioned() || existing.Username != req.Username {
		return apierrors.TenantExists(req.TenantID)
	}

	secret, err := p.cipher.Decrypt(existing.EncryptedSecret)
	if err != nil {
		return apierrors.Decryption(err)
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(req.Secret)) != 1 {
		return apierrors.TenantExists(req.TenantID)
	}
	return nil
}

// record writes the pending ledger row for a new tenant
func (p *Provisioner) record(ctx context.Context, req *model.ProvisionRequest) error {
	token, err := p.cipher.Encrypt(req.Secret)
	if err != nil {
		return apierrors.Provision(apierrors.StageLedger, false, err)
	}

	err = p.ledger.Insert(ctx, &model.Tenant{
		TenantID:        req.TenantID,
		Username:        req.Username,
		EncryptedSecret: token,
		Status:          model.TenantStatusPending,
	})
	if errors.Is(err, ledger.ErrConflict) {
		return apierrors.TenantExists(req.TenantID)
	}
	if err != nil {
		return apierrors.Provision(apierrors.StageLedger, false, err)
	}
	return nil
}

// complete performs the document store steps and marks the row provisioned
func (p *Provisioner) complete(ctx context.Context, req *model.ProvisionRequest, resumed bool) error {
	storeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.store.EnsureTenantDatabase(storeCtx, req.TenantID, req.Username, req.Secret)
	p.metrics.RecordStoreOperation("ensure_tenant", err, time.Since(start))
	if err != nil {
		return p.fail(ctx, req.TenantID, apierrors.StageStoreAdmin, err)
	}

	if req.InitialSettings != nil {
		if err := p.insertSettings(storeCtx, req, resumed); err != nil {
			return p.fail(ctx, req.TenantID, apierrors.StageSettings, err)
		}
	}

	if err := p.ledger.UpdateStatus(ctx, req.TenantID, model.TenantStatusProvisioned); err != nil {
		return p.fail(ctx, req.TenantID, apierrors.StageLedgerStatus, err)
	}

	p.cache.SetTenant(ctx, &model.Tenant{
		TenantID: req.TenantID,
		Username: req.Username,
		Status:   model.TenantStatusProvisioned,
	})
	return nil
}

// insertSettings writes the settings document once. A resumed call skips
// the insert if an earlier attempt already stored it.
func (p *Provisioner) insertSettings(ctx context.Context, req *model.ProvisionRequest, resumed bool) error {
	handle := model.TenantHandle{TenantID: req.TenantID, Collection: SettingsCollection}

	if resumed {
		_, found, err := p.store.FindOne(ctx, handle, model.Record{})
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}

	start := time.Now()
	_, err := p.store.InsertOne(ctx, handle, req.InitialSettings)
	p.metrics.RecordStoreOperation("insert_settings", err, time.Since(start))
	return err
}

// fail marks the ledger row failed and wraps cause as a partial failure
func (p *Provisioner) fail(ctx context.Context, tenantID string, stage apierrors.ProvisionStage, cause error) error {
	logger := p.logger.With(zap.String("tenant_id", tenantID), zap.String("stage", string(stage)))
	logger.Error("Tenant provisioning failed", zap.Error(cause))

	// the request context may already be done
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := p.ledger.UpdateStatus(markCtx, tenantID, model.TenantStatusFailed); err != nil {
		logger.Error("Failed to mark tenant as failed", zap.Error(err))
	}
	// a shared cache may still hold an earlier provisioned entry
	p.cache.DeleteTenant(markCtx, tenantID)
	return apierrors.Provision(stage, true, cause)
}
