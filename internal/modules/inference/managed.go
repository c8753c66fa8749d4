package inference

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/buche/contentgen/internal/config"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	"github.com/buche/contentgen/internal/pkg/apperr"
)

func (g *Gateway) callManaged(ctx context.Context, provider *config.Provider, req Request) (string, error) {
	model, _, err := buildLanguageModel(provider)
	if err != nil {
		return "", apperr.Upstream("build language model", err)
	}

	opts := []jetai.GenerateOption{jetai.WithModel(model)}
	if req.MaxTokens > 0 {
		opts = append(opts, jetai.WithMaxOutputTokens(req.MaxTokens))
	}

	resp, err := jetai.GenerateText(ctx, buildPromptMessages(req.System, req.Prompt), opts...)
	if err != nil {
		return "", apperr.Upstream("managed generation failed", err)
	}
	return extractTextFromResponse(resp)
}

func (g *Gateway) callManagedStream(ctx context.Context, provider *config.Provider, req Request, onDelta func(string)) (string, error) {
	model, streamEnabled, err := buildLanguageModel(provider)
	if err != nil {
		return "", apperr.Upstream("build language model", err)
	}

	if !streamEnabled {
		result, err := g.callManaged(ctx, provider, req)
		if err != nil {
			return "", err
		}
		if onDelta != nil && result != "" {
			onDelta(result)
		}
		return result, nil
	}

	opts := []jetai.GenerateOption{jetai.WithModel(model)}
	if req.MaxTokens > 0 {
		opts = append(opts, jetai.WithMaxOutputTokens(req.MaxTokens))
	}

	streamResp, err := jetai.StreamText(ctx, buildPromptMessages(req.System, req.Prompt), opts...)
	if err != nil {
		return "", apperr.Upstream("managed stream failed", err)
	}

	var full strings.Builder
	for event := range streamResp.Stream {
		switch evt := event.(type) {
		case *jetapi.TextDeltaEvent:
			if evt.TextDelta == "" {
				continue
			}
			full.WriteString(evt.TextDelta)
			if onDelta != nil {
				onDelta(evt.TextDelta)
			}
		case *jetapi.ErrorEvent:
			if evt.Err == nil {
				return "", apperr.Upstream("model stream returned an unknown error", nil)
			}
			return "", apperr.Upstream("model stream error", fmt.Errorf("%v", evt.Err))
		}
	}

	result := full.String()
	if strings.TrimSpace(result) == "" {
		return "", apperr.Upstream("empty response from model", nil)
	}
	return result, nil
}

func buildPromptMessages(system, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: system})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractTextFromResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", apperr.Upstream("empty response from model", nil)
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", apperr.Upstream("empty response from model", nil)
	}
	return text, nil
}

// buildLanguageModel wires a vendor SDK client into a language model.
// The second return reports whether streaming is supported natively.
func buildLanguageModel(provider *config.Provider) (jetapi.LanguageModel, bool, error) {
	if provider == nil {
		return nil, false, errors.New("provider is nil")
	}

	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, false, errors.New("provider api key is empty")
	}

	modelID := strings.TrimSpace(provider.DefaultModel)
	endpoint := strings.TrimSpace(provider.Endpoint)

	if isAnthropicProviderType(provider.Type) {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}

		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}

		client := anthropicclient.NewClient(opts...)
		model := jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
		return model, false, nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	client := openaiclient.NewClient(opts...)
	model := jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
	return model, true, nil
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
