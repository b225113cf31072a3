package scoring

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultGradeTimeout bounds a single model call.
const DefaultGradeTimeout = 45 * time.Second

const (
	summaryTimeout     = "Grading timed out; neutral score pending re-score"
	summaryModelFailed = "Grading model unavailable; neutral score pending re-score"
)

// Model generates raw text for a grading prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Grade calls the model with a bounded timeout and parses its output. Timeouts and model errors
// degrade to the neutral default; the returned string is the raw model output (or error text).
func Grade(ctx context.Context, model Model, prompt string, timeout time.Duration, logger *zap.Logger) (Result, string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultGradeTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := model.Generate(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("grading model timed out", zap.Duration("timeout", timeout))
			return NeutralDefault(summaryTimeout), err.Error()
		}
		logger.Warn("grading model failed", zap.Error(err))
		return NeutralDefault(summaryModelFailed), err.Error()
	}

	res := Parse(raw)
	if res.Fallback {
		logger.Warn("grading output unparsable", zap.Int("bytes", len(raw)))
	}
	return res, string(raw)
}
