package models

import (
	"errors"
	"time"
)

// MeasureType enumerates the supported meters.
type MeasureType string

const (
	MeasureTypeWater MeasureType = "WATER"
	MeasureTypeGas   MeasureType = "GAS"
)

// MeasureTypes lists the accepted literals in display order.
var MeasureTypes = []MeasureType{MeasureTypeWater, MeasureTypeGas}

// Valid reports whether t is one of the accepted literals (case-sensitive).
func (t MeasureType) Valid() bool {
	switch t {
	case MeasureTypeWater, MeasureTypeGas:
		return true
	default:
		return false
	}
}

// ErrMeasureMonthTaken is returned by the store when a reading already exists
// for the customer, type and calendar month.
var ErrMeasureMonthTaken = errors.New("measure already reported for this month")

// Measure is one meter reading row in measure_read.
type Measure struct {
	ID           int64       `db:"measure_read_id" json:"-"`
	UUID         string      `db:"measure_uuid" json:"measure_uuid"`
	CustomerCode string      `db:"customer_code" json:"customer_code"`
	Datetime     time.Time   `db:"measure_datetime" json:"measure_datetime"`
	Type         MeasureType `db:"measure_type" json:"measure_type"`
	Value        float64     `db:"measure_value" json:"measure_value"`
	ImageURL     string      `db:"image_url" json:"image_url"`
	Confirmed    bool        `db:"has_confirmed" json:"has_confirmed"`
}

// MeasureSummary is the listing projection; the value is deliberately absent.
type MeasureSummary struct {
	UUID      string      `json:"measure_uuid"`
	Datetime  time.Time   `json:"measure_datetime"`
	Type      MeasureType `json:"measure_type"`
	Confirmed bool        `json:"has_confirmed"`
	ImageURL  string      `json:"image_url"`
}

// Summary projects the listing view of the reading.
func (m Measure) Summary() MeasureSummary {
	return MeasureSummary{
		UUID:      m.UUID,
		Datetime:  m.Datetime,
		Type:      m.Type,
		Confirmed: m.Confirmed,
		ImageURL:  m.ImageURL,
	}
}

// MeasureFilter narrows a customer listing. An empty Type means all meters.
type MeasureFilter struct {
	CustomerCode string
	Type         MeasureType
}

// MonthBounds returns the UTC calendar month [start, end) containing t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
