package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneMatchesSentinel(t *testing.T) {
	cloned := Clone(ErrDoubleReport, "")
	wrapped := fmt.Errorf("upload: %w", cloned)
	assert.True(t, errors.Is(wrapped, ErrDoubleReport))
	assert.False(t, errors.Is(wrapped, ErrConfirmationDuplicate))
	assert.Equal(t, ErrDoubleReport, FromError(ErrDoubleReport))
}

func TestDescriptionPrefersDetails(t *testing.T) {
	details := []map[string]string{{"field": "measure_type", "message": "bad"}}
	withDetails := WithDetails(ErrInvalidData, details)
	assert.Equal(t, details, withDetails.Description())
	assert.Nil(t, ErrInvalidData.Details)
	assert.Equal(t, ErrMeasuresNotFound.Message, ErrMeasuresNotFound.Description())
}

func TestWrapAsKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapAs(ErrServiceUnavailable, cause)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "refused")
}
