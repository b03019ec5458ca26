// Package recognizer turns a meter photograph into a numeric reading using an
// external vision model.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prompt is sent with every image.
const Prompt = "There is a utility meter in the image. Which numbers does the meter show? " +
	"Answer only with digits, and with a decimal point if the value is fractional."

// ErrUnreadable means the model answered but no digits could be extracted.
var ErrUnreadable = errors.New("recognizer: no digits in model response")

// Model is the external vision model: image plus prompt in, raw text out.
type Model interface {
	Name() string
	GenerateText(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Recognizer reduces model answers to numbers. It never retries.
type Recognizer struct {
	model   Model
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a recognizer bounded by timeout per call.
func New(model Model, timeout time.Duration, logger *zap.Logger) *Recognizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recognizer{model: model, timeout: timeout, logger: logger}
}

// Recognize asks the model for the meter value shown in image.
func (r *Recognizer) Recognize(ctx context.Context, image []byte) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	mimeType := http.DetectContentType(image)
	text, err := r.model.GenerateText(ctx, Prompt, image, mimeType)
	if err != nil {
		return 0, fmt.Errorf("%s generate: %w", r.model.Name(), err)
	}

	value, err := ParseReading(text)
	if err != nil {
		r.logger.Warn("unreadable model answer", zap.String("model", r.model.Name()), zap.String("answer", truncate(text, 120)))
		return 0, err
	}
	return value, nil
}

// ParseReading keeps the digits of text and its first decimal separator. A
// comma is accepted as the separator when it comes first. Everything else,
// including later separators, is dropped.
func ParseReading(text string) (float64, error) {
	var (
		b         strings.Builder
		digits    int
		separator bool
	)
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case (r == '.' || r == ',') && !separator:
			if digits == 0 {
				b.WriteByte('0')
			}
			b.WriteByte('.')
			separator = true
		}
	}
	if digits == 0 {
		return 0, ErrUnreadable
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(b.String(), "."), 64)
	if err != nil {
		// only strconv.ErrRange is possible here
		return 0, ErrUnreadable
	}
	return value, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
