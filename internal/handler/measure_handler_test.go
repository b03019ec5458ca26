package handler

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/measure-api/internal/dto"
	"github.com/noah-isme/measure-api/internal/middleware"
	"github.com/noah-isme/measure-api/internal/models"
	"github.com/noah-isme/measure-api/internal/validation"
	appErrors "github.com/noah-isme/measure-api/pkg/errors"
)

const customer = "0b7a1f9c-5a4e-4c1d-9d8e-1f2a3b4c5d6e"

type measureServiceMock struct {
	listResp    *dto.ListMeasuresResponse
	uploadResp  *dto.UploadMeasureResponse
	confirmResp *dto.ConfirmMeasureResponse
	exportResp  *dto.ExportFile
	err         error

	lastCustomer string
	lastType     string
	lastFormat   string
	lastBaseURL  string
	lastUpload   dto.UploadMeasureRequest
	lastConfirm  dto.ConfirmMeasureRequest
	calls        int
}

func (m *measureServiceMock) List(_ context.Context, customerCode, measureType string) (*dto.ListMeasuresResponse, error) {
	m.calls++
	m.lastCustomer, m.lastType = customerCode, measureType
	return m.listResp, m.err
}

func (m *measureServiceMock) Upload(_ context.Context, req dto.UploadMeasureRequest, baseURL string) (*dto.UploadMeasureResponse, error) {
	m.calls++
	m.lastUpload, m.lastBaseURL = req, baseURL
	return m.uploadResp, m.err
}

func (m *measureServiceMock) Confirm(_ context.Context, req dto.ConfirmMeasureRequest) (*dto.ConfirmMeasureResponse, error) {
	m.calls++
	m.lastConfirm = req
	return m.confirmResp, m.err
}

func (m *measureServiceMock) Export(_ context.Context, customerCode, measureType, format string) (*dto.ExportFile, error) {
	m.calls++
	m.lastCustomer, m.lastType, m.lastFormat = customerCode, measureType, format
	return m.exportResp, m.err
}

func newMeasureRouter(svc measureService, publicBaseURL string, maxBody int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if maxBody > 0 {
		r.Use(middleware.BodyLimit(maxBody))
	}
	NewMeasureHandler(svc, publicBaseURL).Register(r)
	return r
}

func perform(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	ErrorCode        string          `json:"error_code"`
	ErrorDescription json.RawMessage `json:"error_description"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMeasureHandlerList(t *testing.T) {
	svc := &measureServiceMock{listResp: &dto.ListMeasuresResponse{
		CustomerCode: customer,
		Measures:     []models.MeasureSummary{{UUID: "m-1", Type: models.MeasureTypeGas, ImageURL: "http://x/public/m-1.png"}},
	}}
	w := perform(newMeasureRouter(svc, "", 0), http.MethodGet, "/"+customer+"/list?measure_type=gas", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, customer, svc.lastCustomer)
	assert.Equal(t, "gas", svc.lastType)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, customer, body["customer_code"])
	measures := body["measures"].([]interface{})
	require.Len(t, measures, 1)
	assert.NotContains(t, measures[0], "measure_value")
}

func TestMeasureHandlerListNotFound(t *testing.T) {
	svc := &measureServiceMock{err: appErrors.ErrMeasuresNotFound}
	w := perform(newMeasureRouter(svc, "", 0), http.MethodGet, "/"+customer+"/list", "", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "MEASURES_NOT_FOUND", body.ErrorCode)
	assert.JSONEq(t, `"No readings found."`, string(body.ErrorDescription))
}

func TestMeasureHandlerUploadPassesRawFields(t *testing.T) {
	svc := &measureServiceMock{uploadResp: &dto.UploadMeasureResponse{ImageURL: "u", MeasureValue: 12.5, MeasureUUID: "m-1"}}
	payload := `{"image":"aGVsbG8=","customer_code":"` + customer + `","measure_datetime":"2024-05-10T14:30:00Z","measure_type":"WATER"}`
	w := perform(newMeasureRouter(svc, "", 0), http.MethodPost, "/upload", payload, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"image_url":"u","measure_value":12.5,"measure_uuid":"m-1"}`, w.Body.String())
	assert.Equal(t, "WATER", svc.lastUpload.MeasureType)
	assert.Equal(t, "http://example.com", svc.lastBaseURL)
}

func TestMeasureHandlerBaseURL(t *testing.T) {
	h := NewMeasureHandler(nil, "")

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Host = "meters.local:8080"
	assert.Equal(t, "http://meters.local:8080", h.baseURL(req))

	req.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	assert.Equal(t, "https://meters.local:8080", h.baseURL(req))

	req.Header.Del("X-Forwarded-Proto")
	req.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://meters.local:8080", h.baseURL(req))

	assert.Equal(t, "https://cdn.example.org", NewMeasureHandler(nil, "https://cdn.example.org/").baseURL(req))
}

func TestMeasureHandlerUploadKeepsNumbersExact(t *testing.T) {
	svc := &measureServiceMock{err: appErrors.ErrInvalidData}
	perform(newMeasureRouter(svc, "", 0), http.MethodPost, "/upload", `{"customer_code":12}`, nil)

	assert.Equal(t, json.Number("12"), svc.lastUpload.CustomerCode)
	assert.Nil(t, svc.lastUpload.Image)
}

func TestMeasureHandlerMalformedBody(t *testing.T) {
	for _, body := range []string{"", "{", `["image"]`, "not json"} {
		svc := &measureServiceMock{}
		w := perform(newMeasureRouter(svc, "", 0), http.MethodPost, "/upload", body, nil)

		require.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Zero(t, svc.calls)
		got := decodeError(t, w)
		assert.Equal(t, "INVALID_DATA", got.ErrorCode)
		var details []validation.FieldError
		require.NoError(t, json.Unmarshal(got.ErrorDescription, &details))
		require.Len(t, details, 1)
		assert.Empty(t, details[0].Field)
	}
}

func TestMeasureHandlerPayloadTooLarge(t *testing.T) {
	svc := &measureServiceMock{}
	big := `{"image":"` + strings.Repeat("A", 4096) + `"}`
	w := perform(newMeasureRouter(svc, "", 1024), http.MethodPost, "/upload", big, nil)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, w).ErrorCode)
	assert.Zero(t, svc.calls)
}

func TestMeasureHandlerConfirm(t *testing.T) {
	svc := &measureServiceMock{confirmResp: &dto.ConfirmMeasureResponse{Success: true}}
	w := perform(newMeasureRouter(svc, "", 0), http.MethodPatch, "/confirm", `{"measure_uuid":"`+customer+`","confirmed_value":42}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, json.Number("42"), svc.lastConfirm.ConfirmedValue)
}

func TestMeasureHandlerConfirmErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.WithDetails(appErrors.ErrInvalidData, []validation.FieldError{{Field: "measure_uuid", Message: "Invalid UUID format."}}), http.StatusBadRequest, "INVALID_DATA"},
		{appErrors.ErrMeasureNotFound, http.StatusNotFound, "MEASURE_NOT_FOUND"},
		{appErrors.ErrConfirmationDuplicate, http.StatusConflict, "CONFIRMATION_DUPLICATE"},
		{appErrors.WrapAs(appErrors.ErrServiceUnavailable, errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		svc := &measureServiceMock{err: tc.err}
		w := perform(newMeasureRouter(svc, "", 0), http.MethodPatch, "/confirm", `{}`, nil)
		require.Equal(t, tc.status, w.Code, tc.code)
		assert.Equal(t, tc.code, decodeError(t, w).ErrorCode)
		assert.NotContains(t, w.Body.String(), "refused")
	}
}

func TestMeasureHandlerExport(t *testing.T) {
	svc := &measureServiceMock{exportResp: &dto.ExportFile{Filename: "measures.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("a,b\n")}}
	w := perform(newMeasureRouter(svc, "", 0), http.MethodGet, "/"+customer+"/export?format=csv&measure_type=WATER", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", svc.lastFormat)
	assert.Equal(t, "WATER", svc.lastType)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="measures.csv"`)
	assert.True(t, bytes.Equal([]byte("a,b\n"), w.Body.Bytes()))
}
