package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/measure-api/internal/models"
)

const measureColumns = "measure_read_id, measure_uuid, customer_code, measure_datetime, measure_type, measure_value, image_url, has_confirmed"

// pq code for unique_violation.
const uniqueViolation = "23505"

// MeasureRepository manages persistence for meter readings.
type MeasureRepository struct {
	db *sqlx.DB
}

// NewMeasureRepository constructs a MeasureRepository.
func NewMeasureRepository(db *sqlx.DB) *MeasureRepository {
	return &MeasureRepository{db: db}
}

// List returns the customer's readings, newest first, optionally narrowed to one meter type.
func (r *MeasureRepository) List(ctx context.Context, filter models.MeasureFilter) ([]models.Measure, error) {
	query := "SELECT " + measureColumns + " FROM measure_read WHERE customer_code = $1"
	args := []interface{}{filter.CustomerCode}
	if filter.Type != "" {
		query += " AND measure_type = $2"
		args = append(args, string(filter.Type))
	}
	query += " ORDER BY measure_datetime DESC, measure_read_id DESC"

	var measures []models.Measure
	if err := r.db.SelectContext(ctx, &measures, query, args...); err != nil {
		return nil, fmt.Errorf("list measures: %w", err)
	}
	return measures, nil
}

// ExistsInMonth reports whether the customer already has a reading of the type
// inside the UTC calendar month containing at.
func (r *MeasureRepository) ExistsInMonth(ctx context.Context, customerCode string, measureType models.MeasureType, at time.Time) (bool, error) {
	start, end := models.MonthBounds(at)
	const query = `SELECT EXISTS (SELECT 1 FROM measure_read WHERE customer_code = $1 AND measure_type = $2 AND measure_datetime >= $3 AND measure_datetime < $4)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, customerCode, string(measureType), start, end); err != nil {
		return false, fmt.Errorf("check monthly measure: %w", err)
	}
	return exists, nil
}

// Create inserts a reading and fills its surrogate key. A concurrent reading
// for the same month surfaces as models.ErrMeasureMonthTaken.
func (r *MeasureRepository) Create(ctx context.Context, measure *models.Measure) error {
	const query = `INSERT INTO measure_read (measure_uuid, customer_code, measure_datetime, measure_type, measure_value, image_url, has_confirmed)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING measure_read_id`
	err := r.db.QueryRowxContext(ctx, query,
		measure.UUID, measure.CustomerCode, measure.Datetime.UTC(), string(measure.Type), measure.Value, measure.ImageURL, measure.Confirmed,
	).Scan(&measure.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create measure: %w", models.ErrMeasureMonthTaken)
		}
		return fmt.Errorf("create measure: %w", err)
	}
	return nil
}

// FindByUUID fetches a reading by its public identifier.
func (r *MeasureRepository) FindByUUID(ctx context.Context, measureUUID string) (*models.Measure, error) {
	query := "SELECT " + measureColumns + " FROM measure_read WHERE measure_uuid = $1"
	var measure models.Measure
	if err := r.db.GetContext(ctx, &measure, query, measureUUID); err != nil {
		return nil, err
	}
	return &measure, nil
}

// Confirm stores the confirmed value and flips has_confirmed only when the
// reading is still unconfirmed. It returns false when nothing was updated.
func (r *MeasureRepository) Confirm(ctx context.Context, measureUUID string, value int64) (bool, error) {
	const query = `UPDATE measure_read SET measure_value = $1, has_confirmed = TRUE WHERE measure_uuid = $2 AND has_confirmed IS FALSE`
	res, err := r.db.ExecContext(ctx, query, value, measureUUID)
	if err != nil {
		return false, fmt.Errorf("confirm measure: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm measure rows: %w", err)
	}
	return affected == 1, nil
}

// Ping checks database reachability.
func (r *MeasureRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
