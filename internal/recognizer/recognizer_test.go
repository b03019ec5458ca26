package recognizer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeModel struct {
	answer   string
	err      error
	block    bool
	prompt   string
	mimeType string
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) GenerateText(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	f.prompt = prompt
	f.mimeType = mimeType
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

func TestParseReading(t *testing.T) {
	cases := map[string]float64{
		"12345":               12345,
		"00123":               123,
		"123.45":              123.45,
		" 123.45\n":           123.45,
		"The meter shows 87":  87,
		"1,234":               1.234,
		"12.34.56":            12.3456,
		"m³ 0042.7":           42.7,
		".5":                  0.5,
		"99.":                 99,
		"Reading: 7 (approx)": 7,
	}
	for in, want := range cases {
		got, err := ParseReading(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, in := range []string{"", "no digits here", "...", "N/A", strings.Repeat("9", 400)} {
		_, err := ParseReading(in)
		assert.ErrorIs(t, err, ErrUnreadable, in)
	}
}

func TestRecognizeSendsPromptAndMime(t *testing.T) {
	model := &fakeModel{answer: "00451.2"}
	r := New(model, time.Second, zap.NewNop())

	value, err := r.Recognize(context.Background(), []byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	assert.InDelta(t, 451.2, value, 1e-9)
	assert.Equal(t, Prompt, model.prompt)
	assert.Equal(t, "image/png", model.mimeType)
}

func TestRecognizePropagatesModelFailure(t *testing.T) {
	cause := errors.New("quota exceeded")
	r := New(&fakeModel{err: cause}, time.Second, nil)

	_, err := r.Recognize(context.Background(), []byte("img"))
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnreadable)
}

func TestRecognizeUnreadable(t *testing.T) {
	r := New(&fakeModel{answer: "I cannot see a meter"}, time.Second, nil)

	_, err := r.Recognize(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestRecognizeOverflowingAnswerIsUnreadable(t *testing.T) {
	r := New(&fakeModel{answer: strings.Repeat("8", 512)}, time.Second, nil)

	_, err := r.Recognize(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestRecognizeTimesOut(t *testing.T) {
	r := New(&fakeModel{block: true}, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := r.Recognize(context.Background(), []byte("img"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFirstText(t *testing.T) {
	assert.Empty(t, firstText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("1234")}}},
	}}
	assert.Equal(t, "1234", firstText(resp))
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "  ", "")
	assert.Error(t, err)
}
