package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"error_code"`
	Message string      `json:"-"`
	Status  int         `json:"-"`
	Details interface{} `json:"-"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned sentinels still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Description is the user-visible error body: field details when present, otherwise the message.
func (e *Error) Description() interface{} {
	if e == nil {
		return nil
	}
	if e.Details != nil {
		return e.Details
	}
	return e.Message
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err keeping the code, status and message of the template error.
func WrapAs(template *Error, err error) *Error {
	return Wrap(err, template.Code, template.Status, template.Message)
}

// Predefined errors for the measurement workflow.
var (
	ErrInvalidData           = New("INVALID_DATA", http.StatusBadRequest, "invalid request data")
	ErrInvalidCustomerCode   = New("INVALID_CUSTOMER_CODE", http.StatusBadRequest, "Customer code is invalid.")
	ErrInvalidType           = New("INVALID_TYPE", http.StatusBadRequest, "Measure type is not allowed.")
	ErrInvalidExportFormat   = New("INVALID_EXPORT_FORMAT", http.StatusBadRequest, "Export format must be csv or pdf.")
	ErrMeasuresNotFound      = New("MEASURES_NOT_FOUND", http.StatusNotFound, "No readings found.")
	ErrMeasureNotFound       = New("MEASURE_NOT_FOUND", http.StatusNotFound, "Reading with this measure_uuid does not exist.")
	ErrDoubleReport          = New("DOUBLE_REPORT", http.StatusConflict, "Reading for this month already submitted.")
	ErrConfirmationDuplicate = New("CONFIRMATION_DUPLICATE", http.StatusConflict, "Reading for this month already confirmed.")
	ErrPayloadTooLarge       = New("PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "request body too large")
	ErrUnreadableMeasure     = New("UNREADABLE_MEASURE", http.StatusUnprocessableEntity, "No meter value could be read from the image.")
	ErrRecognitionFailed     = New("RECOGNITION_FAILED", http.StatusBadGateway, "Meter recognition service failed.")
	ErrServiceUnavailable    = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "Storage is temporarily unavailable.")
	ErrNotFound              = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrInternal              = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss             = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of err carrying field level details.
func WithDetails(err *Error, details interface{}) *Error {
	clone := Clone(err, "")
	if clone != nil {
		clone.Details = details
	}
	return clone
}
