// Package inference routes pipeline model calls to configured
// providers, either through vendor SDK bindings or a raw
// OpenAI-compatible chat-completions endpoint.
package inference

import (
	"context"
	"strings"

	"github.com/buche/contentgen/internal/config"
	"github.com/buche/contentgen/internal/pkg/apperr"
	"go.uber.org/zap"
)

// Pipeline step names, used to pick per-step model assignments.
const (
	StepCharacters = "characters"
	StepSummary    = "summary"
	StepTags       = "tags"
	StepGeneration = "generation"
)

// Request is one model invocation.
type Request struct {
	Step        string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Gateway selects a provider per request and dispatches to the right
// transport.
type Gateway struct {
	cfg    config.InferenceConfig
	logger *zap.Logger
}

func NewGateway(cfg config.InferenceConfig, logger *zap.Logger) *Gateway {
	return &Gateway{cfg: cfg, logger: logger}
}

// Complete runs a buffered invocation and returns the full text.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	provider := selectProvider(g.cfg, g.cfg.AssignmentFor(req.Step))
	if provider == nil {
		return "", apperr.Upstream("no inference provider configured", nil)
	}

	if isOpenAICompatibleProviderType(provider.Type) {
		return g.callChatCompletions(ctx, provider, req)
	}
	return g.callManaged(ctx, provider, req)
}

// CompleteStream runs a streaming invocation, calling onDelta for each
// text delta, and returns the accumulated text.
func (g *Gateway) CompleteStream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	provider := selectProvider(g.cfg, g.cfg.AssignmentFor(req.Step))
	if provider == nil {
		return "", apperr.Upstream("no inference provider configured", nil)
	}

	if isOpenAICompatibleProviderType(provider.Type) {
		return g.callChatCompletionsStream(ctx, provider, req, onDelta)
	}
	return g.callManagedStream(ctx, provider, req, onDelta)
}

// selectProvider picks the assigned provider, or the first enabled one
// when the assignment is absent or unknown. The assignment's model
// overrides the provider default.
func selectProvider(cfg config.InferenceConfig, assignment *config.ModelAssignment) *config.Provider {
	var providerID, overrideModel string
	if assignment != nil {
		providerID = strings.TrimSpace(assignment.ProviderID)
		overrideModel = strings.TrimSpace(assignment.Model)
	}

	pick := func(provider config.Provider) *config.Provider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	if providerID != "" {
		for _, provider := range cfg.Providers {
			if !provider.Enabled {
				continue
			}
			if strings.TrimSpace(provider.ID) != providerID {
				continue
			}
			return pick(provider)
		}
	}

	for _, provider := range cfg.Providers {
		if !provider.Enabled {
			continue
		}
		return pick(provider)
	}

	return nil
}

func isOpenAICompatibleProviderType(raw string) bool {
	t := normalizeProviderType(raw)
	return t == "openai-compatible" || t == "openaicompatible" || t == "openrouter"
}

func isAnthropicProviderType(raw string) bool {
	return normalizeProviderType(raw) == "anthropic"
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}
