package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apierrors "github.com/vmskonakanchi/ymts-crud-api/internal/errors"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"github.com/vmskonakanchi/ymts-crud-api/internal/validation"
	"go.uber.org/zap"
)

type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, req *model.ProvisionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockProvisioner) Status(ctx context.Context, tenantID string) (*model.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

type MockRouter struct {
	mock.Mock
}

func (m *MockRouter) Insert(ctx context.Context, tenantID, collection string, records []model.Record) (*model.InsertSummary, error) {
	args := m.Called(ctx, tenantID, collection, records)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InsertSummary), args.Error(1)
}

func (m *MockRouter) FindOne(ctx context.Context, tenantID, collection string, filter model.Record) (model.Record, bool, error) {
	args := m.Called(ctx, tenantID, collection, filter)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(model.Record), args.Bool(1), args.Error(2)
}

func newTestHandlers(p *MockProvisioner, r *MockRouter, maxBody int64) *Handlers {
	logger := zap.NewNop()
	return NewHandlers(p, r, validation.New(), apierrors.NewHandler(logger), nil, logger, maxBody)
}

func request(method, body string, vars map[string]string) *http.Request {
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	return mux.SetURLVars(req, vars)
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()

	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestInitialize_Success(t *testing.T) {
	p := new(MockProvisioner)
	h := newTestHandlers(p, new(MockRouter), 0)

	p.On("Provision", mock.Anything, mock.MatchedBy(func(req *model.ProvisionRequest) bool {
		theme, _ := req.InitialSettings.Get("theme")
		return req.TenantID == "acme" && req.Username == "admin" && req.Secret == "pw" && theme == "dark"
	})).Return(nil)

	rec := httptest.NewRecorder()
	h.Initialize(rec, request(http.MethodPost, `{"tenant_id":"acme","username":"admin","password":"pw","initial_settings":{"theme":"dark"}}`, nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"msg":"created"}`, rec.Body.String())
	p.AssertExpectations(t)
}

func TestInitialize_LegacyAliases(t *testing.T) {
	p := new(MockProvisioner)
	h := newTestHandlers(p, new(MockRouter), 0)

	p.On("Provision", mock.Anything, mock.MatchedBy(func(req *model.ProvisionRequest) bool {
		v, ok := req.InitialSettings.Get("k")
		return req.TenantID == "legacy" && ok && v == int64(1)
	})).Return(nil)

	rec := httptest.NewRecorder()
	h.Initialize(rec, request(http.MethodPost, `{"database":"legacy","username":"u","password":"p","data":{"k":1}}`, nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	p.AssertExpectations(t)
}

func TestInitialize_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"tenant_id":`},
		{"array body", `[1,2]`},
		{"numeric username", `{"tenant_id":"a","username":1,"password":"p"}`},
		{"settings not object", `{"tenant_id":"a","username":"u","password":"p","initial_settings":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockProvisioner)
			h := newTestHandlers(p, new(MockRouter), 0)

			rec := httptest.NewRecorder()
			h.Initialize(rec, request(http.MethodPost, tt.body, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apierrors.ErrorCodeInvalidRequest, errorBody(t, rec).ErrorCode)
			p.AssertNotCalled(t, "Provision", mock.Anything, mock.Anything)
		})
	}
}

func TestInitialize_PartialFailure(t *testing.T) {
	p := new(MockProvisioner)
	h := newTestHandlers(p, new(MockRouter), 0)

	p.On("Provision", mock.Anything, mock.Anything).
		Return(apierrors.Provision(apierrors.StageSettings, true, errors.New("write failed")))

	rec := httptest.NewRecorder()
	h.Initialize(rec, request(http.MethodPost, `{"tenant_id":"acme","username":"u","password":"p"}`, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := errorBody(t, rec)
	assert.Equal(t, apierrors.ErrorCodeProvisionFailed, resp.ErrorCode)
	assert.True(t, resp.Partial)
	assert.Equal(t, apierrors.StageSettings, resp.Stage)
}

func TestInitialize_BodyTooLarge(t *testing.T) {
	p := new(MockProvisioner)
	h := newTestHandlers(p, new(MockRouter), 16)

	rec := httptest.NewRecorder()
	h.Initialize(rec, request(http.MethodPost, `{"tenant_id":"`+strings.Repeat("a", 64)+`"}`, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec).Msg, "exceeds 16 bytes")
}

func TestTenantStatus(t *testing.T) {
	p := new(MockProvisioner)
	h := newTestHandlers(p, new(MockRouter), 0)

	p.On("Status", mock.Anything, "acme").
		Return(&model.Tenant{TenantID: "acme", Status: model.TenantStatusPending}, nil)

	rec := httptest.NewRecorder()
	h.TenantStatus(rec, request(http.MethodGet, "", map[string]string{"tenant_id": "acme"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tenant_id":"acme","status":"pending"}`, rec.Body.String())
}

func TestInsertRecords_ProjectsRows(t *testing.T) {
	r := new(MockRouter)
	h := newTestHandlers(new(MockProvisioner), r, 0)

	want := []model.Record{
		{{Key: "name", Value: "sam"}, {Key: "age", Value: int64(30)}},
	}
	r.On("Insert", mock.Anything, "acme", "users", want).
		Return(&model.InsertSummary{InsertedCount: 1, InsertedIDs: []string{"id-1"}}, nil)

	rec := httptest.NewRecorder()
	h.InsertRecords(rec, request(http.MethodPost,
		`{"data":[{"name":{"type":"string","value":"sam"},"age":{"type":"number","value":"30"}}]}`,
		map[string]string{"tenant_id": "acme", "collection": "users"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Data inserted successfully","result":{"inserted_count":1,"inserted_ids":["id-1"]}}`, rec.Body.String())
	r.AssertExpectations(t)
}

func TestInsertRecords_ValidationFailureSkipsStore(t *testing.T) {
	r := new(MockRouter)
	h := newTestHandlers(new(MockProvisioner), r, 0)

	rec := httptest.NewRecorder()
	h.InsertRecords(rec, request(http.MethodPost,
		`{"data":[{"age":{"type":"number","value":"abc"}}]}`,
		map[string]string{"tenant_id": "acme", "collection": "users"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := errorBody(t, rec)
	assert.Equal(t, apierrors.ErrorCodeValidationFailed, resp.ErrorCode)
	assert.Equal(t, []string{"Value abc is not a number for age"}, resp.Errors)
	r.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInsertRecords_MissingData(t *testing.T) {
	tests := []struct {
		name string
		body string
		code apierrors.ErrorCode
	}{
		{"absent", `{}`, apierrors.ErrorCodeMissingField},
		{"null", `{"data":null}`, apierrors.ErrorCodeMissingField},
		{"empty", `{"data":[]}`, apierrors.ErrorCodeMissingField},
		{"not array", `{"data":{"a":1}}`, apierrors.ErrorCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(new(MockProvisioner), new(MockRouter), 0)

			rec := httptest.NewRecorder()
			h.InsertRecords(rec, request(http.MethodPost, tt.body,
				map[string]string{"tenant_id": "acme", "collection": "users"}))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, errorBody(t, rec).ErrorCode)
		})
	}
}

func TestFindRecord_UsesFirstRow(t *testing.T) {
	r := new(MockRouter)
	h := newTestHandlers(new(MockProvisioner), r, 0)

	filter := model.Record{{Key: "username", Value: "sam"}}
	found := model.Record{{Key: "_id", Value: "abc"}, {Key: "username", Value: "sam"}}
	r.On("FindOne", mock.Anything, "acme", "users", filter).Return(found, true, nil)

	rec := httptest.NewRecorder()
	h.FindRecord(rec, request(http.MethodPost,
		`{"data":[{"username":{"type":"string","value":"sam"}},{"username":{"type":"string","value":"other"}}]}`,
		map[string]string{"tenant_id": "acme", "collection": "users"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Data Found successfully","result":{"_id":"abc","username":"sam"}}`, rec.Body.String())
	r.AssertExpectations(t)
}

func TestFindRecord_NotFound(t *testing.T) {
	r := new(MockRouter)
	h := newTestHandlers(new(MockProvisioner), r, 0)

	r.On("FindOne", mock.Anything, "acme", "users", mock.Anything).Return(nil, false, nil)

	rec := httptest.NewRecorder()
	h.FindRecord(rec, request(http.MethodPost,
		`{"data":[{"username":{"type":"string","value":"nobody"}}]}`,
		map[string]string{"tenant_id": "acme", "collection": "users"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.ErrorCodeRecordNotFound, errorBody(t, rec).ErrorCode)
}

func TestFindRecord_StoreError(t *testing.T) {
	r := new(MockRouter)
	h := newTestHandlers(new(MockProvisioner), r, 0)

	r.On("FindOne", mock.Anything, "acme", "users", mock.Anything).
		Return(nil, false, apierrors.Store("Error occurred during data lookup", errors.New("timeout")))

	rec := httptest.NewRecorder()
	h.FindRecord(rec, request(http.MethodPost,
		`{"data":[{"username":{"type":"string","value":"sam"}}]}`,
		map[string]string{"tenant_id": "acme", "collection": "users"}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := errorBody(t, rec)
	assert.Equal(t, apierrors.ErrorCodeStoreError, resp.ErrorCode)
	assert.Equal(t, "Error occurred during data lookup", resp.Msg)
}

func TestFindRecord_UnencodableResultIsInternalError(t *testing.T) {
	r := new(MockRouter)
	h := newTestHandlers(new(MockProvisioner), r, 0)

	found := model.Record{{Key: "_id", Value: "abc"}, {Key: "age", Value: math.Inf(1)}}
	r.On("FindOne", mock.Anything, "acme", "users", mock.Anything).Return(found, true, nil)

	rec := httptest.NewRecorder()
	h.FindRecord(rec, request(http.MethodPost,
		`{"data":[{"_id":{"type":"string","value":"abc"}}]}`,
		map[string]string{"tenant_id": "acme", "collection": "users"}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := errorBody(t, rec)
	assert.Equal(t, apierrors.ErrorCodeInternalError, resp.ErrorCode)
	assert.Equal(t, "failed to encode response", resp.Msg)
}
