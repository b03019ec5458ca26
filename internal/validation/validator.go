// Package validation checks the shape of measurement requests before any
// stateful work happens. Ordinary invalid input is reported as values, never
// as Go errors.
package validation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/measure-api/internal/dto"
	"github.com/noah-isme/measure-api/internal/models"
)

// Failure codes of the single-value checks.
const (
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeInvalidType     = "INVALID_TYPE"
	CodeInvalidDateTime = "INVALID_DATE_TIME"
	CodeInvalidBase64   = "INVALID_BASE64"
	CodeInvalidInteger  = "INVALID_INTEGER"
	CodeTypeMismatch    = "TYPE_MISMATCH"
)

const (
	msgInvalidUUID     = "Invalid UUID format."
	msgInvalidDateTime = "Invalid date time format."
	msgInvalidBase64   = "Invalid base64 string format."
)

// 2^53, the largest integer a JSON number round-trips exactly.
const maxSafeInteger = 1 << 53

var isoDateTime = regexp.MustCompile(`^(\d{4}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01]))T((?:[01]\d|2[0-3]):[0-5]\d)(?::([0-5]\d)(\.\d{1,9})?)?(Z|[+-](?:[01]\d|2[0-3]):?[0-5]\d)?$`)

// Issue is the failure of a single check.
type Issue struct {
	Code    string
	Message string
}

// FieldError is one entry of a user-visible validation error body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// UploadInput is a validated upload payload.
type UploadInput struct {
	Image        []byte
	CustomerCode string
	Datetime     time.Time
	Type         models.MeasureType
}

// ConfirmInput is a validated confirmation payload.
type ConfirmInput struct {
	MeasureUUID    string
	ConfirmedValue int64
}

// Validator bundles the per-field checks.
type Validator struct {
	validate *validator.Validate
}

// New registers the measurement tags on validate, creating one when nil. It
// panics if a tag cannot be registered.
func New(validate *validator.Validate) *Validator {
	if validate == nil {
		validate = validator.New()
	}
	mustRegister(validate, "measure_type", func(fl validator.FieldLevel) bool {
		return models.MeasureType(fl.Field().String()).Valid()
	})
	mustRegister(validate, "iso8601", func(fl validator.FieldLevel) bool {
		_, err := ParseISO8601(fl.Field().String())
		return err == nil
	})
	return &Validator{validate: validate}
}

func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// ValidateIdentifier accepts hyphenated UUIDs of any version and returns them unchanged.
func (v *Validator) ValidateIdentifier(s string) (string, *Issue) {
	if len(s) != 36 {
		return "", &Issue{Code: CodeInvalidFormat, Message: msgInvalidUUID}
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", &Issue{Code: CodeInvalidFormat, Message: msgInvalidUUID}
	}
	return s, nil
}

// ValidateType matches s against the meter literals exactly. Callers that
// accept any casing uppercase before calling.
func (v *Validator) ValidateType(s string) (models.MeasureType, *Issue) {
	if err := v.validate.Var(s, "measure_type"); err != nil {
		return "", &Issue{Code: CodeInvalidType, Message: expected(typeLiterals(), s)}
	}
	return models.MeasureType(s), nil
}

// ValidateTimestamp parses a strict ISO 8601 date-time.
func (v *Validator) ValidateTimestamp(s string) (time.Time, *Issue) {
	if err := v.validate.Var(s, "iso8601"); err != nil {
		return time.Time{}, &Issue{Code: CodeInvalidDateTime, Message: msgInvalidDateTime}
	}
	t, _ := ParseISO8601(s)
	return t, nil
}

// ValidateImagePayload decodes standard, padded base64.
func (v *Validator) ValidateImagePayload(s string) ([]byte, *Issue) {
	if err := v.validate.Var(s, "required,base64"); err != nil {
		return nil, &Issue{Code: CodeInvalidBase64, Message: msgInvalidBase64}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &Issue{Code: CodeInvalidBase64, Message: msgInvalidBase64}
	}
	return data, nil
}

// ValidateIntegerValue accepts JSON numbers with no fractional part. Numeric
// strings are a type mismatch.
func (v *Validator) ValidateIntegerValue(value interface{}) (int64, *Issue) {
	switch n := value.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, &Issue{Code: CodeTypeMismatch, Message: expected("number", value)}
		}
		return integral(f)
	case float64:
		return integral(n)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, &Issue{Code: CodeTypeMismatch, Message: expected("number", value)}
	}
}

// ValidateUpload runs every upload field check and collects all failures in
// payload order.
func (v *Validator) ValidateUpload(req dto.UploadMeasureRequest) (UploadInput, []FieldError) {
	var (
		in   UploadInput
		errs []FieldError
	)

	if s, issue := requireString(req.Image); issue != nil {
		errs = appendIssue(errs, "image", issue)
	} else if data, issue := v.ValidateImagePayload(s); issue != nil {
		errs = appendIssue(errs, "image", issue)
	} else {
		in.Image = data
	}

	if s, issue := requireString(req.CustomerCode); issue != nil {
		errs = appendIssue(errs, "customer_code", issue)
	} else if code, issue := v.ValidateIdentifier(s); issue != nil {
		errs = appendIssue(errs, "customer_code", issue)
	} else {
		in.CustomerCode = code
	}

	if s, issue := requireString(req.MeasureDatetime); issue != nil {
		errs = appendIssue(errs, "measure_datetime", issue)
	} else if t, issue := v.ValidateTimestamp(s); issue != nil {
		errs = appendIssue(errs, "measure_datetime", issue)
	} else {
		in.Datetime = t
	}

	if issue := v.requireMeasureType(req.MeasureType); issue != nil {
		errs = appendIssue(errs, "measure_type", issue)
	} else {
		in.Type = models.MeasureType(req.MeasureType.(string))
	}

	return in, errs
}

// ValidateConfirm runs the confirmation field checks.
func (v *Validator) ValidateConfirm(req dto.ConfirmMeasureRequest) (ConfirmInput, []FieldError) {
	var (
		in   ConfirmInput
		errs []FieldError
	)

	if s, issue := requireString(req.MeasureUUID); issue != nil {
		errs = appendIssue(errs, "measure_uuid", issue)
	} else if id, issue := v.ValidateIdentifier(s); issue != nil {
		errs = appendIssue(errs, "measure_uuid", issue)
	} else {
		in.MeasureUUID = id
	}

	if n, issue := v.ValidateIntegerValue(req.ConfirmedValue); issue != nil {
		errs = appendIssue(errs, "confirmed_value", issue)
	} else {
		in.ConfirmedValue = n
	}

	return in, errs
}

// The literal union reports any non-matching value the same way, strings or not.
func (v *Validator) requireMeasureType(value interface{}) *Issue {
	s, ok := value.(string)
	if !ok {
		return &Issue{Code: CodeInvalidType, Message: expected(typeLiterals(), value)}
	}
	_, issue := v.ValidateType(s)
	return issue
}

// ParseISO8601 parses YYYY-MM-DDTHH:MM[:SS[.fraction]][Z|±HH:MM|±HHMM].
// A missing offset means UTC.
func ParseISO8601(s string) (time.Time, error) {
	m := isoDateTime.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%q is not an ISO 8601 date-time", s)
	}
	seconds := m[3]
	if seconds == "" {
		seconds = "00"
	}
	zone := m[5]
	switch {
	case zone == "":
		zone = "Z"
	case len(zone) == 5:
		zone = zone[:3] + ":" + zone[3:]
	}
	return time.Parse(time.RFC3339Nano, m[1]+"T"+m[2]+":"+seconds+m[4]+zone)
}

func requireString(value interface{}) (string, *Issue) {
	s, ok := value.(string)
	if !ok {
		return "", &Issue{Code: CodeTypeMismatch, Message: expected("string", value)}
	}
	return s, nil
}

func integral(f float64) (int64, *Issue) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxSafeInteger {
		return 0, &Issue{Code: CodeInvalidInteger, Message: "Invalid integer: Received " + strconv.FormatFloat(f, 'f', -1, 64)}
	}
	return int64(f), nil
}

func appendIssue(errs []FieldError, field string, issue *Issue) []FieldError {
	return append(errs, FieldError{Field: field, Message: issue.Message})
}

func typeLiterals() string {
	quoted := make([]string, 0, len(models.MeasureTypes))
	for _, t := range models.MeasureTypes {
		quoted = append(quoted, strconv.Quote(string(t)))
	}
	return strings.Join(quoted, " | ")
}

func expected(want string, got interface{}) string {
	return fmt.Sprintf("Invalid type: Expected %s but received %s", want, describe(got))
}

func describe(value interface{}) string {
	switch x := value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]interface{}:
		return "Object"
	case []interface{}:
		return "Array"
	default:
		return fmt.Sprintf("%v", x)
	}
}
