package llm

import (
	"context"
	"errors"
)

// Client abstracts text generation providers.
type Client interface {
	RefineText(ctx context.Context, input RefineInput) (string, error)
}

// RefineInput is the text of one CV field to improve.
type RefineInput struct {
	Text string
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM provider not configured")

// PlaceholderClient is used when no provider key is set.
type PlaceholderClient struct{}

// RefineText returns ErrNotConfigured.
func (PlaceholderClient) RefineText(ctx context.Context, input RefineInput) (string, error) {
	_ = ctx
	_ = input
	return "", ErrNotConfigured
}
