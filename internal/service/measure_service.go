package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/measure-api/internal/dto"
	"github.com/noah-isme/measure-api/internal/models"
	"github.com/noah-isme/measure-api/internal/recognizer"
	"github.com/noah-isme/measure-api/internal/validation"
	appErrors "github.com/noah-isme/measure-api/pkg/errors"
	"github.com/noah-isme/measure-api/pkg/events"
	"github.com/noah-isme/measure-api/pkg/export"
)

type measureRepository interface {
	List(ctx context.Context, filter models.MeasureFilter) ([]models.Measure, error)
	ExistsInMonth(ctx context.Context, customerCode string, measureType models.MeasureType, at time.Time) (bool, error)
	Create(ctx context.Context, measure *models.Measure) error
	FindByUUID(ctx context.Context, measureUUID string) (*models.Measure, error)
	Confirm(ctx context.Context, measureUUID string, value int64) (bool, error)
}

type meterRecognizer interface {
	Recognize(ctx context.Context, image []byte) (float64, error)
}

type imageStorage interface {
	Save(name string, data []byte) (string, error)
	Delete(name string) error
}

type eventDispatcher interface {
	Dispatch(event events.Event) error
}

// MeasureServiceParams groups the collaborators of MeasureService. Cache,
// Metrics, Events and Logger are optional.
type MeasureServiceParams struct {
	Repo       measureRepository
	Recognizer meterRecognizer
	Images     imageStorage
	Validator  *validation.Validator
	Cache      *CacheService
	Metrics    *MetricsService
	Events     eventDispatcher
	Logger     *zap.Logger
}

// MeasureService implements listing, upload, confirmation and export of readings.
type MeasureService struct {
	repo       measureRepository
	recognizer meterRecognizer
	images     imageStorage
	validator  *validation.Validator
	cache      *CacheService
	metrics    *MetricsService
	events     eventDispatcher
	logger     *zap.Logger
}

// NewMeasureService constructs a MeasureService.
func NewMeasureService(p MeasureServiceParams) *MeasureService {
	if p.Validator == nil {
		p.Validator = validation.New(nil)
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &MeasureService{
		repo:       p.Repo,
		recognizer: p.Recognizer,
		images:     p.Images,
		validator:  p.Validator,
		cache:      p.Cache,
		metrics:    p.Metrics,
		events:     p.Events,
		logger:     p.Logger,
	}
}

// List returns the customer's readings without their values. measureType may
// be empty or any casing of a meter type.
func (s *MeasureService) List(ctx context.Context, customerCode, measureType string) (*dto.ListMeasuresResponse, error) {
	filter, err := s.listFilter(customerCode, measureType)
	if err != nil {
		return nil, err
	}

	gen, cacheable := s.cache.ListGeneration(ctx, filter.CustomerCode)
	key := listCacheKey(filter, gen)
	var cached dto.ListMeasuresResponse
	if cacheable && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	measures, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	resp := &dto.ListMeasuresResponse{CustomerCode: filter.CustomerCode, Measures: make([]models.MeasureSummary, 0, len(measures))}
	for _, m := range measures {
		resp.Measures = append(resp.Measures, m.Summary())
	}
	if cacheable {
		s.cache.Set(ctx, key, resp)
	}
	return resp, nil
}

// Upload validates the payload, rejects a second reading in the same month,
// recognises the meter value and stores image and record. baseURL is the
// scheme and host images are served from.
func (s *MeasureService) Upload(ctx context.Context, req dto.UploadMeasureRequest, baseURL string) (*dto.UploadMeasureResponse, error) {
	in, fieldErrs := s.validator.ValidateUpload(req)
	if len(fieldErrs) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidData, fieldErrs)
	}

	start := time.Now()
	taken, err := s.repo.ExistsInMonth(ctx, in.CustomerCode, in.Type, in.Datetime)
	s.metrics.ObserveDBQuery("measure_exists_in_month", time.Since(start))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrServiceUnavailable, err)
	}
	if taken {
		return nil, appErrors.ErrDoubleReport
	}

	value, err := s.recognize(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	measure := &models.Measure{
		UUID:         uuid.NewString(),
		CustomerCode: in.CustomerCode,
		Datetime:     in.Datetime,
		Type:         in.Type,
		Value:        value,
	}
	name := measure.UUID + ".png"
	if _, err := s.images.Save(name, in.Image); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	measure.ImageURL = strings.TrimRight(baseURL, "/") + "/public/" + name

	start = time.Now()
	err = s.repo.Create(ctx, measure)
	s.metrics.ObserveDBQuery("measure_create", time.Since(start))
	if err != nil {
		if delErr := s.images.Delete(name); delErr != nil {
			s.logger.Error("failed to remove orphaned image", zap.String("image", name), zap.Error(delErr))
		}
		if errors.Is(err, models.ErrMeasureMonthTaken) {
			return nil, appErrors.ErrDoubleReport
		}
		return nil, appErrors.WrapAs(appErrors.ErrServiceUnavailable, err)
	}

	s.cache.InvalidateCustomer(ctx, measure.CustomerCode)
	s.metrics.CountMeasure("uploaded", string(measure.Type))
	s.publish(events.Event{
		Type:         events.MeasureUploaded,
		MeasureUUID:  measure.UUID,
		CustomerCode: measure.CustomerCode,
		MeasureType:  string(measure.Type),
		Value:        measure.Value,
	})
	s.logger.Info("measure uploaded", zap.String("measure_uuid", measure.UUID), zap.String("measure_type", string(measure.Type)))

	return &dto.UploadMeasureResponse{ImageURL: measure.ImageURL, MeasureValue: measure.Value, MeasureUUID: measure.UUID}, nil
}

// Confirm replaces the recognised value with the confirmed one, once per reading.
func (s *MeasureService) Confirm(ctx context.Context, req dto.ConfirmMeasureRequest) (*dto.ConfirmMeasureResponse, error) {
	in, fieldErrs := s.validator.ValidateConfirm(req)
	if len(fieldErrs) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidData, fieldErrs)
	}

	start := time.Now()
	measure, err := s.repo.FindByUUID(ctx, in.MeasureUUID)
	s.metrics.ObserveDBQuery("measure_find", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrMeasureNotFound
		}
		return nil, appErrors.WrapAs(appErrors.ErrServiceUnavailable, err)
	}
	if measure.Confirmed {
		return nil, appErrors.ErrConfirmationDuplicate
	}

	start = time.Now()
	updated, err := s.repo.Confirm(ctx, in.MeasureUUID, in.ConfirmedValue)
	s.metrics.ObserveDBQuery("measure_confirm", time.Since(start))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrServiceUnavailable, err)
	}
	if !updated {
		// confirmed concurrently
		return nil, appErrors.ErrConfirmationDuplicate
	}

	s.cache.InvalidateCustomer(ctx, measure.CustomerCode)
	s.metrics.CountMeasure("confirmed", string(measure.Type))
	s.publish(events.Event{
		Type:         events.MeasureConfirmed,
		MeasureUUID:  measure.UUID,
		CustomerCode: measure.CustomerCode,
		MeasureType:  string(measure.Type),
		Value:        float64(in.ConfirmedValue),
	})

	return &dto.ConfirmMeasureResponse{Success: true}, nil
}

// Export renders the customer's readings, values included, as csv or pdf.
func (s *MeasureService) Export(ctx context.Context, customerCode, measureType, format string) (*dto.ExportFile, error) {
	filter, err := s.listFilter(customerCode, measureType)
	if err != nil {
		return nil, err
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.ErrInvalidExportFormat
	}

	measures, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:   "Readings of customer " + filter.CustomerCode,
		Headers: []string{"measure_uuid", "measure_datetime", "measure_type", "measure_value", "has_confirmed", "image_url"},
		Rows:    make([][]string, 0, len(measures)),
	}
	for _, m := range measures {
		data.Rows = append(data.Rows, []string{
			m.UUID,
			m.Datetime.UTC().Format(time.RFC3339),
			string(m.Type),
			strconv.FormatFloat(m.Value, 'f', -1, 64),
			strconv.FormatBool(m.Confirmed),
			m.ImageURL,
		})
	}

	doc, err := export.Render(f, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{
		Filename:    "measures-" + filter.CustomerCode + "." + doc.Extension,
		ContentType: doc.ContentType,
		Content:     doc.Content,
	}, nil
}

func (s *MeasureService) listFilter(customerCode, measureType string) (models.MeasureFilter, error) {
	code, issue := s.validator.ValidateIdentifier(customerCode)
	if issue != nil {
		return models.MeasureFilter{}, appErrors.ErrInvalidCustomerCode
	}
	filter := models.MeasureFilter{CustomerCode: code}
	if measureType != "" {
		t, issue := s.validator.ValidateType(strings.ToUpper(measureType))
		if issue != nil {
			return models.MeasureFilter{}, appErrors.ErrInvalidType
		}
		filter.Type = t
	}
	return filter, nil
}

func (s *MeasureService) load(ctx context.Context, filter models.MeasureFilter) ([]models.Measure, error) {
	start := time.Now()
	measures, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("measure_list", time.Since(start))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrServiceUnavailable, err)
	}
	if len(measures) == 0 {
		return nil, appErrors.ErrMeasuresNotFound
	}
	return measures, nil
}

func (s *MeasureService) recognize(ctx context.Context, image []byte) (float64, error) {
	start := time.Now()
	value, err := s.recognizer.Recognize(ctx, image)
	switch {
	case err == nil:
		s.metrics.ObserveRecognition("ok", time.Since(start))
		return value, nil
	case errors.Is(err, recognizer.ErrUnreadable):
		s.metrics.ObserveRecognition("unreadable", time.Since(start))
		return 0, appErrors.WrapAs(appErrors.ErrUnreadableMeasure, err)
	default:
		s.metrics.ObserveRecognition("error", time.Since(start))
		s.logger.Error("meter recognition failed", zap.Error(err))
		return 0, appErrors.WrapAs(appErrors.ErrRecognitionFailed, err)
	}
}

func (s *MeasureService) publish(event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Dispatch(event); err != nil {
		s.logger.Warn("measure event not dispatched", zap.String("type", event.Type), zap.String("measure_uuid", event.MeasureUUID), zap.Error(err))
	}
}
