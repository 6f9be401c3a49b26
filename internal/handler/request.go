package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"github.com/vmskonakanchi/ymts-crud-api/internal/validation"
)

// readBody reads at most limit bytes of the request body
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apierrors.InvalidRequest(fmt.Sprintf("request body exceeds %d bytes", limit), nil)
		}
		return nil, apierrors.InvalidRequest("failed to read request body", err)
	}
	return body, nil
}

// requireObject checks the body is a single JSON object
func requireObject(body []byte) error {
	_, dataType, _, err := jsonparser.Get(body)
	if err != nil {
		return apierrors.InvalidRequest("invalid JSON body", err)
	}
	if dataType != jsonparser.Object {
		return apierrors.InvalidRequest("request body must be a JSON object", nil)
	}
	return nil
}

// parseProvisionRequest reads the provisioning body. tenant_id and
// initial_settings may also be sent as database and data.
func parseProvisionRequest(body []byte) (*model.ProvisionRequest, error) {
	if err := requireObject(body); err != nil {
		return nil, err
	}

	req := &model.ProvisionRequest{}
	var err error
	if req.TenantID, err = stringField(body, "tenant_id", "database"); err != nil {
		return nil, err
	}
	if req.Username, err = stringField(body, "username"); err != nil {
		return nil, err
	}
	if req.Secret, err = stringField(body, "password"); err != nil {
		return nil, err
	}

	for _, key := range []string{"initial_settings", "data"} {
		value, dataType, _, err := jsonparser.Get(body, key)
		if errors.Is(err, jsonparser.KeyPathNotFoundError) || dataType == jsonparser.Null {
			continue
		}
		if err != nil {
			return nil, apierrors.InvalidRequest("invalid JSON body", err)
		}
		if dataType != jsonparser.Object {
			return nil, apierrors.InvalidRequest(fmt.Sprintf("%s must be a JSON object", key), nil)
		}
		if req.InitialSettings, err = validation.DecodeDocument(value); err != nil {
			return nil, apierrors.InvalidRequest(fmt.Sprintf("invalid %s", key), err)
		}
		break
	}

	return req, nil
}

// stringField returns the first of keys present in body. Absent or null
// fields read as empty.
func stringField(body []byte, keys ...string) (string, error) {
	for _, key := range keys {
		value, dataType, _, err := jsonparser.Get(body, key)
		if errors.Is(err, jsonparser.KeyPathNotFoundError) || dataType == jsonparser.Null {
			continue
		}
		if err != nil {
			return "", apierrors.InvalidRequest("invalid JSON body", err)
		}
		if dataType != jsonparser.String {
			return "", apierrors.InvalidRequest(fmt.Sprintf("%s must be a string", key), nil)
		}
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return "", apierrors.InvalidRequest(fmt.Sprintf("invalid %s", key), err)
		}
		return s, nil
	}
	return "", nil
}

// parseBatch reads the data array of an insert or lookup body.
// missingMsg is returned when data is absent or empty.
func parseBatch(body []byte, missingMsg string) (model.Batch, error) {
	if err := requireObject(body); err != nil {
		return nil, err
	}

	value, dataType, _, err := jsonparser.Get(body, "data")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || dataType == jsonparser.Null {
		return nil, apierrors.MissingField(missingMsg)
	}
	if err != nil {
		return nil, apierrors.InvalidRequest("invalid JSON body", err)
	}
	if dataType != jsonparser.Array {
		return nil, apierrors.InvalidRequest("data must be an array of rows", nil)
	}

	batch, err := validation.DecodeBatch(value)
	if err != nil {
		return nil, apierrors.InvalidRequest("invalid data", err)
	}
	if len(batch) == 0 {
		return nil, apierrors.MissingField(missingMsg)
	}
	return batch, nil
}
