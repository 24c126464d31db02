package ai

import (
	"context"
	"fmt"
)

// AnthropicConfig placeholder for anthropic integration configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AnthropicDrafter is a stub implementation that can be expanded once the SDK is available.
type AnthropicDrafter struct{}

// NewAnthropicDrafter constructs a new stub drafter.
func NewAnthropicDrafter(cfg AnthropicConfig) (*AnthropicDrafter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicDrafter{}, nil
}

// Draft is not yet implemented for Anthropic models.
func (a *AnthropicDrafter) Draft(ctx context.Context, input DraftInput) (DraftResult, error) {
	return DraftResult{}, fmt.Errorf("anthropic drafter not implemented")
}
