package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/measure-api/internal/dto"
	"github.com/noah-isme/measure-api/internal/validation"
	appErrors "github.com/noah-isme/measure-api/pkg/errors"
	"github.com/noah-isme/measure-api/pkg/response"
)

type measureService interface {
	List(ctx context.Context, customerCode, measureType string) (*dto.ListMeasuresResponse, error)
	Upload(ctx context.Context, req dto.UploadMeasureRequest, baseURL string) (*dto.UploadMeasureResponse, error)
	Confirm(ctx context.Context, req dto.ConfirmMeasureRequest) (*dto.ConfirmMeasureResponse, error)
	Export(ctx context.Context, customerCode, measureType, format string) (*dto.ExportFile, error)
}

// MeasureHandler exposes the meter reading endpoints.
type MeasureHandler struct {
	service       measureService
	publicBaseURL string
}

// NewMeasureHandler builds a handler. When publicBaseURL is empty image URLs
// are derived from the upload request.
func NewMeasureHandler(service measureService, publicBaseURL string) *MeasureHandler {
	return &MeasureHandler{service: service, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Register mounts the endpoints on r.
func (h *MeasureHandler) Register(r gin.IRouter) {
	r.GET("/:customerCode/list", h.List)
	r.GET("/:customerCode/export", h.Export)
	r.POST("/upload", h.Upload)
	r.PATCH("/confirm", h.Confirm)
}

// List godoc
// @Summary List a customer's readings
// @Tags Measures
// @Produce json
// @Param customerCode path string true "Customer UUID"
// @Param measure_type query string false "WATER or GAS, any casing"
// @Success 200 {object} dto.ListMeasuresResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /{customerCode}/list [get]
func (h *MeasureHandler) List(c *gin.Context) {
	resp, err := h.service.List(c.Request.Context(), c.Param("customerCode"), c.Query("measure_type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Upload godoc
// @Summary Submit a meter photograph for recognition
// @Tags Measures
// @Accept json
// @Produce json
// @Param payload body dto.UploadMeasureRequest true "Reading"
// @Success 200 {object} dto.UploadMeasureResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /upload [post]
func (h *MeasureHandler) Upload(c *gin.Context) {
	var req dto.UploadMeasureRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.service.Upload(c.Request.Context(), req, h.baseURL(c.Request))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Confirm godoc
// @Summary Confirm or correct a recognised value
// @Tags Measures
// @Accept json
// @Produce json
// @Param payload body dto.ConfirmMeasureRequest true "Confirmation"
// @Success 200 {object} dto.ConfirmMeasureResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /confirm [patch]
func (h *MeasureHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmMeasureRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.service.Confirm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Export godoc
// @Summary Download a customer's readings
// @Tags Measures
// @Produce text/csv
// @Produce application/pdf
// @Param customerCode path string true "Customer UUID"
// @Param measure_type query string false "WATER or GAS, any casing"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /{customerCode}/export [get]
func (h *MeasureHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("customerCode"), c.Query("measure_type"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Content)
}

func (h *MeasureHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

// decodeJSON keeps numbers as json.Number so integer checks see the literal.
func decodeJSON(body io.Reader, dest interface{}) error {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return appErrors.ErrPayloadTooLarge
		}
		return appErrors.WithDetails(appErrors.ErrInvalidData, []validation.FieldError{{Field: "", Message: malformedMessage(err)}})
	}
	return nil
}

func malformedMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return "Request body is empty."
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return "Expected a JSON object."
	}
	return "Malformed JSON body."
}
