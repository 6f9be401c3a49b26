// Package handler provides HTTP request handlers for the data API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/metrics"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"github.com/vmskonakanchi/ymts-crud-api/internal/validation"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes = 10 << 20

// TenantProvisioner creates tenants and reports their status
type TenantProvisioner interface {
	Provision(ctx context.Context, req *model.ProvisionRequest) error
	Status(ctx context.Context, tenantID string) (*model.Tenant, error)
}

// DocumentRouter runs document operations for a tenant collection
type DocumentRouter interface {
	Insert(ctx context.Context, tenantID, collection string, records []model.Record) (*model.InsertSummary, error)
	FindOne(ctx context.Context, tenantID, collection string, filter model.Record) (model.Record, bool, error)
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	provisioner  TenantProvisioner
	router       DocumentRouter
	validator    *validation.Validator
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	provisioner TenantProvisioner,
	router DocumentRouter,
	validator *validation.Validator,
	errorHandler *apierrors.Handler,
	m *metrics.Metrics,
	logger *zap.Logger,
	maxBodyBytes int64,
) *Handlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handlers{
		provisioner:  provisioner,
		router:       router,
		validator:    validator,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// ProvisionResponse is returned by Initialize.
type ProvisionResponse struct {
	Msg string `json:"msg"`
}

// TenantStatusResponse is returned by TenantStatus.
type TenantStatusResponse struct {
	TenantID string             `json:"tenant_id"`
	Status   model.TenantStatus `json:"status"`
}

// InsertResponse is returned by InsertRecords.
type InsertResponse struct {
	Message string               `json:"message"`
	Result  *model.InsertSummary `json:"result"`
}

// FindResponse is returned by FindRecord.
type FindResponse struct {
	Message string       `json:"message"`
	Result  model.Record `json:"result"`
}

// Initialize handles POST /api/v1/initialize requests.
func (h *Handlers) Initialize(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, h.maxBodyBytes)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req, err := parseProvisionRequest(body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.provisioner.Provision(r.Context(), req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, r, http.StatusCreated, ProvisionResponse{Msg: "created"})
}

// TenantStatus handles GET /api/v1/tenants/{tenant_id}/status requests.
func (h *Handlers) TenantStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	tenant, err := h.provisioner.Status(r.Context(), tenantID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, r, http.StatusOK, TenantStatusResponse{
		TenantID: tenant.TenantID,
		Status:   tenant.Status,
	})
}

// InsertRecords handles POST /api/v1/{tenant_id}/{collection} requests.
func (h *Handlers) InsertRecords(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	records, ok := h.validatedRecords(w, r, "insert", "Missing data to insert")
	if !ok {
		return
	}

	summary, err := h.router.Insert(r.Context(), vars["tenant_id"], vars["collection"], records)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, r, http.StatusOK, InsertResponse{
		Message: "Data inserted successfully",
		Result:  summary,
	})
}

// FindRecord handles POST /api/v1/{tenant_id}/{collection}/login requests.
// The first row of the batch is the equality filter.
func (h *Handlers) FindRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collection := vars["collection"]

	records, ok := h.validatedRecords(w, r, "find", "Missing data to check")
	if !ok {
		return
	}

	doc, found, err := h.router.FindOne(r.Context(), vars["tenant_id"], collection, records[0])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if !found {
		h.errorHandler.HandleError(w, r, apierrors.RecordNotFound(collection))
		return
	}

	h.writeJSONResponse(w, r, http.StatusOK, FindResponse{
		Message: "Data Found successfully",
		Result:  doc,
	})
}

// validatedRecords parses and validates the data batch. It writes the error
// response itself and reports false when the request cannot proceed.
func (h *Handlers) validatedRecords(w http.ResponseWriter, r *http.Request, operation, missingMsg string) ([]model.Record, bool) {
	body, err := readBody(w, r, h.maxBodyBytes)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	batch, err := parseBatch(body, missingMsg)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return nil, false
	}

	records, errs := h.validator.ValidateAndProject(batch)
	if len(errs) > 0 {
		h.metrics.RecordValidationFailure(operation)
		h.errorHandler.HandleError(w, r, apierrors.Validation(errs))
		return nil, false
	}
	return records, true
}

// writeJSONResponse writes a JSON response. Encoding failures are reported as
// a 500 since nothing has been written yet.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewAPIError(apierrors.ErrorCodeInternalError, "failed to encode response", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body = append(body, '\n')
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}
