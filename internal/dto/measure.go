package dto

import "github.com/noah-isme/measure-api/internal/models"

// UploadMeasureRequest is the raw upload body. Fields stay untyped so the
// validator can report type mismatches per field instead of failing the decode.
type UploadMeasureRequest struct {
	Image           interface{} `json:"image"`
	CustomerCode    interface{} `json:"customer_code"`
	MeasureDatetime interface{} `json:"measure_datetime"`
	MeasureType     interface{} `json:"measure_type"`
}

// UploadMeasureResponse is returned after a reading is recognised and stored.
type UploadMeasureResponse struct {
	ImageURL     string  `json:"image_url"`
	MeasureValue float64 `json:"measure_value"`
	MeasureUUID  string  `json:"measure_uuid"`
}

// ConfirmMeasureRequest is the raw confirmation body.
type ConfirmMeasureRequest struct {
	MeasureUUID    interface{} `json:"measure_uuid"`
	ConfirmedValue interface{} `json:"confirmed_value"`
}

// ConfirmMeasureResponse acknowledges a confirmation.
type ConfirmMeasureResponse struct {
	Success bool `json:"success"`
}

// ListMeasuresResponse lists a customer's readings.
type ListMeasuresResponse struct {
	CustomerCode string                  `json:"customer_code"`
	Measures     []models.MeasureSummary `json:"measures"`
}

// ExportFile is a rendered listing export.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
