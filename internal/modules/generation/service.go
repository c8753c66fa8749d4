package generation

import (
	"context"
	"strings"

	"github.com/buche/contentgen/internal/modules/inference"
	"github.com/buche/contentgen/internal/modules/snippets"
	"github.com/buche/contentgen/internal/modules/tagging"
	"github.com/buche/contentgen/internal/pkg/apperr"
	"go.uber.org/zap"
)

const (
	defaultMaxLength = 800
	maxDetectedTags  = 6
	summaryRuneLimit = 300
)

// Options selects the pipeline variant. The enriched variant runs the
// character, summary and tag analysis steps before generating, the
// plain variant goes straight from input tags to retrieval.
type Options struct {
	Enriched  bool
	MaxLength int
}

// Orchestrator drives the generation pipeline. The model backend and
// the retrieval strategy are injected so the buffered and streaming
// endpoints can share the steps while differing in variant.
type Orchestrator struct {
	backend   Backend
	retriever snippets.Strategy
	opts      Options
	logger    *zap.Logger
}

func NewOrchestrator(backend Backend, retriever snippets.Strategy, opts Options, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{backend: backend, retriever: retriever, opts: opts, logger: logger}
}

// Generate runs the pipeline to completion and returns the full
// result.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Validation("Content is required in request body")
	}
	maxLength := o.maxLength(req)
	providedTags := tagging.NormalizeAll(req.Tags)

	if !o.opts.Enriched {
		return o.generatePlain(ctx, req.Content, providedTags, maxLength)
	}

	characters := o.extractCharacters(ctx, req.Content)
	summary := o.summarize(ctx, req.Content)
	detected := o.detectTags(ctx, req.Content)
	merged := mergeTags(providedTags, detected)

	related, err := o.retriever.Retrieve(ctx, merged)
	if err != nil {
		return nil, err
	}

	text, err := o.backend.Complete(ctx, inference.Request{
		Step:        inference.StepGeneration,
		Prompt:      buildEnrichedPrompt(characters, summary, related),
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success:             true,
		GeneratedContent:    cleanGenerated(text, maxLength),
		RelatedSnippets:     snippetRefs(related),
		DetectedTags:        detected,
		ExtractedCharacters: characters,
		ContentSummary:      summary,
	}, nil
}

func (o *Orchestrator) generatePlain(ctx context.Context, content string, tags []string, maxLength int) (*Result, error) {
	related, err := o.retriever.Retrieve(ctx, tags)
	if err != nil {
		return nil, err
	}

	text, err := o.backend.Complete(ctx, inference.Request{
		Step:        inference.StepGeneration,
		Prompt:      buildSimplePrompt(content, related, tags),
		MaxTokens:   generationTokenBudget(maxLength),
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Success:          true,
		GeneratedContent: cleanGenerated(text, maxLength),
		RelatedSnippets:  snippetRefs(related),
		DetectedTags:     tags,
	}, nil
}

// GenerateStream runs the enriched pipeline and reports every step
// through the sink. The first failed Send aborts the pipeline, as does
// any step error after the error event went out.
func (o *Orchestrator) GenerateStream(ctx context.Context, req Request, sink EventSink) error {
	if strings.TrimSpace(req.Content) == "" {
		return o.fail(sink, apperr.Validation("Content is required in request body"))
	}
	maxLength := o.maxLength(req)
	providedTags := tagging.NormalizeAll(req.Tags)

	if err := sink.Send(Event{Type: EventStatus, Message: "Extracting characters from content..."}); err != nil {
		return err
	}
	characters := o.extractCharacters(ctx, req.Content)
	if err := sink.Send(Event{Type: EventProgress, Step: "characters", Data: characters}); err != nil {
		return err
	}

	if err := sink.Send(Event{Type: EventStatus, Message: "Creating content summary..."}); err != nil {
		return err
	}
	summary := o.summarize(ctx, req.Content)
	if err := sink.Send(Event{Type: EventProgress, Step: "summary", Data: summary}); err != nil {
		return err
	}

	if err := sink.Send(Event{Type: EventStatus, Message: "Analyzing content for relevant tags..."}); err != nil {
		return err
	}
	detected := o.detectTags(ctx, req.Content)
	merged := mergeTags(providedTags, detected)
	if err := sink.Send(Event{Type: EventProgress, Step: "tags", Data: merged}); err != nil {
		return err
	}

	if err := sink.Send(Event{Type: EventStatus, Message: "Finding related content snippets..."}); err != nil {
		return err
	}
	related, err := o.retriever.Retrieve(ctx, merged)
	if err != nil {
		return o.fail(sink, err)
	}
	refs := snippetRefs(related)
	if err := sink.Send(Event{Type: EventProgress, Step: "snippets", Data: refs}); err != nil {
		return err
	}

	if err := sink.Send(Event{Type: EventStatus, Message: "Generating new content..."}); err != nil {
		return err
	}
	var sendErr error
	var total strings.Builder
	text, err := o.backend.CompleteStream(ctx, inference.Request{
		Step:        inference.StepGeneration,
		Prompt:      buildEnrichedPrompt(characters, summary, related),
		Temperature: 0.8,
	}, func(chunk string) {
		if sendErr != nil {
			return
		}
		total.WriteString(chunk)
		sendErr = sink.Send(Event{Type: EventStream, Chunk: chunk, Total: total.String()})
	})
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		return o.fail(sink, err)
	}

	return sink.Send(Event{Type: EventComplete, Data: Result{
		Success:             true,
		GeneratedContent:    cleanGenerated(text, maxLength),
		RelatedSnippets:     refs,
		DetectedTags:        detected,
		ExtractedCharacters: characters,
		ContentSummary:      summary,
	}})
}

// fail reports err to the client and surfaces it to the caller. A
// failed error delivery is not worth reporting over the pipeline
// error itself.
func (o *Orchestrator) fail(sink EventSink, err error) error {
	if sendErr := sink.Send(Event{Type: EventError, Message: err.Error()}); sendErr != nil {
		o.logger.Debug("error event not delivered", zap.Error(sendErr))
	}
	return err
}

// extractCharacters never fails the pipeline, a model or parse problem
// degrades to an empty character list.
func (o *Orchestrator) extractCharacters(ctx context.Context, content string) []CharacterInfo {
	raw, err := o.backend.Complete(ctx, inference.Request{
		Step:        inference.StepCharacters,
		Prompt:      characterPrompt(content),
		MaxTokens:   300,
		Temperature: 0.3,
	})
	if err != nil {
		o.logger.Warn("character extraction failed", zap.Error(err))
		return []CharacterInfo{}
	}
	return parseCharacters(raw)
}

func (o *Orchestrator) summarize(ctx context.Context, content string) string {
	raw, err := o.backend.Complete(ctx, inference.Request{
		Step:        inference.StepSummary,
		Prompt:      summaryPrompt(content),
		MaxTokens:   250,
		Temperature: 0.3,
	})
	if err != nil {
		o.logger.Warn("content summary failed", zap.Error(err))
		return ""
	}
	return cleanGenerated(raw, summaryRuneLimit)
}

func (o *Orchestrator) detectTags(ctx context.Context, content string) []string {
	raw, err := o.backend.Complete(ctx, inference.Request{
		Step:        inference.StepTags,
		Prompt:      tagPrompt(content),
		MaxTokens:   100,
		Temperature: 0.3,
	})
	if err != nil {
		o.logger.Warn("tag analysis failed", zap.Error(err))
		return []string{}
	}
	return parseTagLines(raw)
}

// parseTagLines reads the tag step's line-per-tag output. Lines with a
// colon are explanations the model was told not to produce, they are
// dropped rather than salvaged.
func parseTagLines(raw string) []string {
	lines := make([]string, 0, maxDetectedTags)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, ":") {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxDetectedTags {
			break
		}
	}
	return tagging.NormalizeAll(lines)
}

func mergeTags(provided, detected []string) []string {
	merged := make([]string, 0, len(provided)+len(detected))
	seen := make(map[string]struct{}, len(provided)+len(detected))
	for _, tag := range provided {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	for _, tag := range detected {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		merged = append(merged, tag)
	}
	return merged
}

func (o *Orchestrator) maxLength(req Request) int {
	if req.MaxLength > 0 {
		return req.MaxLength
	}
	if o.opts.MaxLength > 0 {
		return o.opts.MaxLength
	}
	return defaultMaxLength
}

// generationTokenBudget leaves headroom over the requested text length
// since Chinese characters often cost more than one token.
func generationTokenBudget(maxLength int) int {
	budget := maxLength * 2
	if budget > 1500 {
		budget = 1500
	}
	return budget
}
