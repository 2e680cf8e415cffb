// Package extract turns free-form prose (forwarded emails, meeting notes,
// call summaries) into a reviewable ExtractionPlan.
//
// Every recognizer is a pure function of the input text. The engine never
// persists, never resolves entities against storage and never decides
// whether a suggested action runs; those belong to the caller.
package extract

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/ianpcook/agent-crm/internal/model"
)

// ErrEmptyInput is returned by ValidateInput for blank text.
var ErrEmptyInput = eris.New("extract: input text is empty")

// ValidateInput rejects text the engine should not be run on. Callers
// check this before Extract; the engine itself accepts any string.
func ValidateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	return nil
}

var quoteReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
)

// Normalize folds compatibility characters (NFKC), line endings and curly
// quotes so pasted text from mail clients reads like typed text.
func Normalize(text string) string {
	return quoteReplacer.Replace(norm.NFKC.String(text))
}

// Engine assembles extraction plans. The zero value is not usable; call New.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for ExtractedAt. Nothing else in a plan
// depends on time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Extract runs the default engine over text.
func Extract(text string, source model.SourceType) *model.ExtractionPlan {
	return defaultEngine.Extract(text, source)
}
