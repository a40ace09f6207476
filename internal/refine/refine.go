package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vitaeforge/internal/llm"
	"vitaeforge/internal/shared/metrics"
	"vitaeforge/internal/shared/telemetry"
)

// ErrRefineFailed wraps every provider failure, including an empty answer.
var ErrRefineFailed = errors.New("refine failed")

// Refiner improves free-text CV fields through an LLM provider.
type Refiner struct {
	Client  llm.Client
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// New constructs a Refiner. A nil client behaves as an unconfigured provider.
func New(client llm.Client, m *metrics.Metrics) *Refiner {
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	return &Refiner{Client: client, Metrics: m, Timeout: 60 * time.Second}
}

// Refine returns an improved version of text. Blank input returns "" without
// calling the provider.
func (r *Refiner) Refine(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		r.Metrics.IncRefine(metrics.ResultSkip)
		return "", nil
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.Client.RefineText(ctx, llm.RefineInput{Text: text})
	if err != nil {
		r.Metrics.IncRefine(metrics.ResultError)
		telemetry.Warn("refine.failed", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return "", fmt.Errorf("%w: %w", ErrRefineFailed, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		r.Metrics.IncRefine(metrics.ResultError)
		return "", fmt.Errorf("%w: empty response", ErrRefineFailed)
	}
	r.Metrics.IncRefine(metrics.ResultOK)
	telemetry.Info("refine.complete", map[string]any{
		"input_chars":  len(text),
		"output_chars": len(out),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return out, nil
}
