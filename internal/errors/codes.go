// Package errors defines the typed errors of the service and their HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	// Transport errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeServiceDown    ErrorCode = "SERVICE_UNAVAILABLE"

	// Input errors
	ErrorCodeMissingField     ErrorCode = "MISSING_FIELD"
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Tenant errors
	ErrorCodeTenantExists   ErrorCode = "TENANT_EXISTS"
	ErrorCodeTenantNotFound ErrorCode = "TENANT_NOT_FOUND"

	// Data errors
	ErrorCodeRecordNotFound   ErrorCode = "RECORD_NOT_FOUND"
	ErrorCodeDecryptionFailed ErrorCode = "DECRYPTION_FAILED"
	ErrorCodeStoreError       ErrorCode = "STORE_ERROR"
	ErrorCodeProvisionFailed  ErrorCode = "PROVISION_FAILED"
)

// HTTPStatus maps the code to the status written to clients.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrorCodeInvalidRequest, ErrorCodeMissingField, ErrorCodeValidationFailed,
		ErrorCodeTenantExists, ErrorCodeRecordNotFound:
		return http.StatusBadRequest
	case ErrorCodeTenantNotFound:
		return http.StatusNotFound
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrorCodeServiceDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ProvisionStage names the provisioning step that failed
type ProvisionStage string

const (
	StageLedger       ProvisionStage = "ledger"
	StageStoreAdmin   ProvisionStage = "store_admin"
	StageSettings     ProvisionStage = "settings"
	StageLedgerStatus ProvisionStage = "ledger_status"
)

// APIError is a structured error with code and context
type APIError struct {
	Code    ErrorCode
	Message string
	Errors  []string
	Details map[string]interface{}
	Cause   error

	// Set on provisioning failures once the ledger row exists
	Partial bool
	Stage   ProvisionStage
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewAPIError creates a new APIError
func NewAPIError(code ErrorCode, message string, cause error) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *APIError) WithDetail(key string, value interface{}) *APIError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func MissingField(message string) *APIError {
	return NewAPIError(ErrorCodeMissingField, message, nil)
}

func InvalidRequest(message string, cause error) *APIError {
	return NewAPIError(ErrorCodeInvalidRequest, message, cause)
}

func Validation(errs []string) *APIError {
	e := NewAPIError(ErrorCodeValidationFailed, "validation failed", nil)
	e.Errors = errs
	return e
}

func TenantExists(tenantID string) *APIError {
	return NewAPIError(ErrorCodeTenantExists, "Database already exists", nil).
		WithDetail("tenant_id", tenantID)
}

func TenantNotFound(tenantID string) *APIError {
	return NewAPIError(ErrorCodeTenantNotFound, fmt.Sprintf("tenant %s not found", tenantID), nil).
		WithDetail("tenant_id", tenantID)
}

func RecordNotFound(collection string) *APIError {
	return NewAPIError(ErrorCodeRecordNotFound, fmt.Sprintf("record in %s not found", collection), nil).
		WithDetail("collection", collection)
}

func Decryption(cause error) *APIError {
	return NewAPIError(ErrorCodeDecryptionFailed, "stored credential could not be decrypted", cause)
}

func Store(message string, cause error) *APIError {
	return NewAPIError(ErrorCodeStoreError, message, cause)
}

func Provision(stage ProvisionStage, partial bool, cause error) *APIError {
	e := NewAPIError(ErrorCodeProvisionFailed, "Error occurred during initialization", cause)
	e.Stage = stage
	e.Partial = partial
	return e
}

// GetCode extracts the error code from an error chain
func GetCode(err error) ErrorCode {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrorCodeInternalError
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
