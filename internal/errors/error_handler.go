package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string         `json:"status"`
	ErrorCode ErrorCode      `json:"error_code"`
	Msg       string         `json:"msg"`
	Errors    []string       `json:"errors,omitempty"`
	Details   string         `json:"details,omitempty"`
	Partial   bool           `json:"partial,omitempty"`
	Stage     ProvisionStage `json:"stage,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// HandleError processes an error and writes an appropriate HTTP response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := r.Header.Get("X-Request-ID")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		h.logger.Error("unclassified error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		apiErr = NewAPIError(ErrorCodeInternalError, "An unexpected error occurred", err)
	}

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: apiErr.Code,
		Msg:       apiErr.Message,
		Errors:    apiErr.Errors,
		Partial:   apiErr.Partial,
		Stage:     apiErr.Stage,
		RequestID: requestID,
	}
	if apiErr.Cause != nil {
		resp.Details = apiErr.Cause.Error()
	}

	statusCode := apiErr.Code.HTTPStatus()
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Int("status_code", statusCode),
			zap.String("error_code", string(apiErr.Code)),
			zap.Bool("partial", apiErr.Partial),
			zap.String("stage", string(apiErr.Stage)),
			zap.Any("details", apiErr.Details),
			zap.Error(err),
			zap.String("request_id", requestID),
		)
	}

	h.write(w, statusCode, resp)
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.write(w, statusCode, ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Msg:       message,
		RequestID: requestID,
	})
}

// WriteRateLimitedError writes a rate limit exceeded response.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded", requestID)
}

func (h *Handler) write(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(resp.ErrorCode)),
		zap.String("message", resp.Msg),
		zap.String("request_id", resp.RequestID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}
