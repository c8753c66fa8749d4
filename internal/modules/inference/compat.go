package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/buche/contentgen/internal/config"
	"github.com/buche/contentgen/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	defaultOpenAIEndpoint     = "https://api.openai.com"
	defaultOpenRouterEndpoint = "https://openrouter.ai/api"
)

func (g *Gateway) callChatCompletions(ctx context.Context, provider *config.Provider, req Request) (string, error) {
	resp, err := g.postChatCompletions(ctx, provider, req, false, 30*time.Second)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Upstream("read chat completions response", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", apperr.Upstream(fmt.Sprintf("chat completions returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", apperr.Upstream("decode chat completions response", err)
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", apperr.Upstream("chat completions error: "+result.Error.Message, nil)
	}
	if len(result.Choices) == 0 {
		return "", apperr.Upstream("empty response from model", nil)
	}
	return result.Choices[0].Message.Content, nil
}

func (g *Gateway) callChatCompletionsStream(ctx context.Context, provider *config.Provider, req Request, onDelta func(string)) (string, error) {
	resp, err := g.postChatCompletions(ctx, provider, req, true, 120*time.Second)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return "", apperr.Upstream(fmt.Sprintf("chat completions stream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	result, err := g.parseEventStream(resp.Body, onDelta)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(result) == "" {
		return "", apperr.Upstream("empty response from model", nil)
	}
	return result, nil
}

func (g *Gateway) postChatCompletions(ctx context.Context, provider *config.Provider, req Request, stream bool, timeout time.Duration) (*http.Response, error) {
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, apperr.Upstream("provider api key is empty", nil)
	}

	endpoint := chatCompletionsEndpoint(provider)
	model := strings.TrimSpace(provider.DefaultModel)
	if model == "" {
		model = "gpt-4o-mini"
	}

	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.System,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Prompt,
	})

	payload := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if stream {
		payload["stream"] = true
	}
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Upstream("build chat completions request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(provider.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream("chat completions request failed", err)
	}
	return resp, nil
}

// chatCompletionsEndpoint resolves the full chat-completions URL from a
// provider endpoint that may be a bare base URL.
func chatCompletionsEndpoint(provider *config.Provider) string {
	base := strings.TrimSpace(provider.Endpoint)
	if base == "" {
		if normalizeProviderType(provider.Type) == "openrouter" {
			base = defaultOpenRouterEndpoint
		} else {
			base = defaultOpenAIEndpoint
		}
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		cleaned := strings.TrimRight(base, "/")
		cleaned = strings.TrimSuffix(cleaned, "/chat/completions")
		cleaned = strings.TrimSuffix(cleaned, "/v1")
		return cleaned + "/v1/chat/completions"
	}

	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/chat/completions")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path + "/chat/completions"
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}

// parseEventStream consumes an OpenAI-style SSE body. Events are
// separated by blank lines; a partial event stays buffered until the
// next read completes it. Malformed events are logged and skipped.
func (g *Gateway) parseEventStream(r io.Reader, onDelta func(string)) (string, error) {
	var full strings.Builder
	buffer := ""
	buf := make([]byte, 4096)
	done := false

	for !done {
		n, readErr := r.Read(buf)
		if n > 0 {
			buffer += string(buf[:n])
			events := strings.Split(buffer, "\n\n")
			buffer = events[len(events)-1]
			for _, event := range events[:len(events)-1] {
				if g.handleStreamEvent(event, &full, onDelta) {
					done = true
					break
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", apperr.Upstream("read model stream", readErr)
		}
	}

	// One final pass over whatever is left in the buffer: upstreams do
	// not always terminate the last event with a blank line.
	if strings.TrimSpace(buffer) != "" {
		g.handleStreamEvent(buffer, &full, onDelta)
	}

	return full.String(), nil
}

// handleStreamEvent extracts one event's data payload and appends its
// delta. Returns true on the [DONE] sentinel.
func (g *Gateway) handleStreamEvent(event string, full *strings.Builder, onDelta func(string)) bool {
	if strings.TrimSpace(event) == "" {
		return false
	}

	data := ""
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(line[len("data: "):])
			break
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(line[len("data:"):])
			break
		}
	}
	if data == "" {
		return false
	}
	if data == "[DONE]" {
		return true
	}

	var evt struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		pe := apperr.Parse("malformed stream event", err)
		g.logger.Warn("skipping stream event", zap.Error(pe))
		return false
	}
	if len(evt.Choices) == 0 || evt.Choices[0].Delta.Content == "" {
		return false
	}

	token := evt.Choices[0].Delta.Content
	full.WriteString(token)
	if onDelta != nil {
		onDelta(token)
	}
	return false
}
