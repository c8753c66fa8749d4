package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/buche/contentgen/internal/modules/inference"
	"github.com/buche/contentgen/internal/modules/snippets"
	"github.com/buche/contentgen/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	responses map[string]string
	errs      map[string]error
	requests  []inference.Request
}

func (f *fakeBackend) Complete(_ context.Context, req inference.Request) (string, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[req.Step]; err != nil {
		return "", err
	}
	return f.responses[req.Step], nil
}

func (f *fakeBackend) CompleteStream(_ context.Context, req inference.Request, onDelta func(string)) (string, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[req.Step]; err != nil {
		return "", err
	}
	full := f.responses[req.Step]
	for _, r := range full {
		onDelta(string(r))
	}
	return full, nil
}

type fakeStrategy struct {
	related []snippets.Related
	err     error
	gotTags []string
}

func (f *fakeStrategy) Retrieve(_ context.Context, tags []string) ([]snippets.Related, error) {
	f.gotTags = tags
	return f.related, f.err
}

type captureSink struct {
	events []Event
	failOn string
}

func (s *captureSink) Send(event Event) error {
	if s.failOn != "" && event.Type == s.failOn {
		return errors.New("client gone")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) types() []string {
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

var testRelated = []snippets.Related{
	{ID: "s1", Title: "夜雨", Author: "佚名", Tags: []string{"浪漫"}, Content: "窗外下着雨。", RelevanceScore: 1.0},
	{ID: "s2", Title: "晨光", Author: "无名", Tags: []string{"都市"}, Content: "清晨的街道。", RelevanceScore: 0.5},
}

func TestGeneratePlain(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		inference.StepGeneration: "\n“他们继续走着。”\n",
	}}
	strategy := &fakeStrategy{related: testRelated}
	o := NewOrchestrator(backend, strategy, Options{MaxLength: 800}, zap.NewNop())

	result, err := o.Generate(context.Background(), Request{
		Content: "雨夜的故事开头。",
		Tags:    []string{" 浪漫 ", "浪漫", "bad tag"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "他们继续走着。", result.GeneratedContent)
	assert.Equal(t, []string{"浪漫"}, result.DetectedTags)
	assert.Equal(t, []string{"浪漫"}, strategy.gotTags)
	require.Len(t, result.RelatedSnippets, 2)
	assert.Equal(t, "s1", result.RelatedSnippets[0].ID)
	assert.Empty(t, result.ExtractedCharacters)
	assert.Empty(t, result.ContentSummary)

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, inference.StepGeneration, req.Step)
	assert.Equal(t, 1500, req.MaxTokens)
	assert.Contains(t, req.Prompt, "雨夜的故事开头。")
	assert.Contains(t, req.Prompt, "《夜雨》作者：佚名")
	assert.Contains(t, req.Prompt, "浪漫")
	assert.NotContains(t, req.Prompt, "{original_content}")
	assert.NotContains(t, req.Prompt, "{related_snippets}")
	assert.NotContains(t, req.Prompt, "{detected_tags}")
}

func TestGeneratePlainNoSnippets(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		inference.StepGeneration: "续写内容",
	}}
	strategy := &fakeStrategy{}
	o := NewOrchestrator(backend, strategy, Options{MaxLength: 800}, zap.NewNop())

	result, err := o.Generate(context.Background(), Request{Content: "开头"})
	require.NoError(t, err)
	assert.Empty(t, result.RelatedSnippets)
	assert.Contains(t, backend.requests[0].Prompt, "(无相关片段)")
	assert.Contains(t, backend.requests[0].Prompt, "(无检测到的标签)")
}

func TestGenerateEmptyContent(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStrategy{}, Options{}, zap.NewNop())

	_, err := o.Generate(context.Background(), Request{Content: "   "})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestGenerateEnriched(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		inference.StepCharacters: `[{"name":"小明","relationship":"恋人","attributes":["温柔"],"role":"主角"}]`,
		inference.StepSummary:    "“一个雨夜的相遇。”",
		inference.StepTags:       "浪漫\n都市\n解释: 这些标签描述主题\n",
		inference.StepGeneration: "新的故事内容。",
	}}
	strategy := &fakeStrategy{related: testRelated}
	o := NewOrchestrator(backend, strategy, Options{Enriched: true, MaxLength: 800}, zap.NewNop())

	result, err := o.Generate(context.Background(), Request{
		Content: "雨夜的故事开头。",
		Tags:    []string{"都市"},
	})
	require.NoError(t, err)

	assert.Equal(t, "新的故事内容。", result.GeneratedContent)
	assert.Equal(t, "一个雨夜的相遇。", result.ContentSummary)
	assert.Equal(t, []string{"浪漫", "都市"}, result.DetectedTags)
	require.Len(t, result.ExtractedCharacters, 1)
	assert.Equal(t, "小明", result.ExtractedCharacters[0].Name)

	// Provided tags come first in retrieval, duplicates merged away.
	assert.Equal(t, []string{"都市", "浪漫"}, strategy.gotTags)

	prompt := backend.requests[len(backend.requests)-1].Prompt
	assert.Contains(t, prompt, "小明：恋人，特征：温柔，角色：主角")
	assert.Contains(t, prompt, "一个雨夜的相遇。")
	assert.Contains(t, prompt, "[参考片段1]")
}

func TestGenerateEnrichedAnalysisDegrades(t *testing.T) {
	boom := errors.New("model offline")
	backend := &fakeBackend{
		responses: map[string]string{inference.StepGeneration: "仍然生成了内容"},
		errs: map[string]error{
			inference.StepCharacters: boom,
			inference.StepSummary:    boom,
			inference.StepTags:       boom,
		},
	}
	strategy := &fakeStrategy{}
	o := NewOrchestrator(backend, strategy, Options{Enriched: true}, zap.NewNop())

	result, err := o.Generate(context.Background(), Request{Content: "开头", Tags: []string{"浪漫"}})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "仍然生成了内容", result.GeneratedContent)
	assert.Empty(t, result.ExtractedCharacters)
	assert.Empty(t, result.ContentSummary)
	assert.Empty(t, result.DetectedTags)
	assert.Equal(t, []string{"浪漫"}, strategy.gotTags)

	prompt := backend.requests[len(backend.requests)-1].Prompt
	assert.Contains(t, prompt, "(未检测到明确角色信息)")
}

func TestGenerateEnrichedGenerationFailure(t *testing.T) {
	backend := &fakeBackend{errs: map[string]error{
		inference.StepGeneration: apperr.Upstream("provider error", nil),
	}}
	o := NewOrchestrator(backend, &fakeStrategy{}, Options{Enriched: true}, zap.NewNop())

	_, err := o.Generate(context.Background(), Request{Content: "开头"})
	require.Error(t, err)
	assert.False(t, apperr.IsValidation(err))
}

func TestGenerateStreamEventOrder(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		inference.StepCharacters: `[{"name":"小明"}]`,
		inference.StepSummary:    "总结",
		inference.StepTags:       "浪漫",
		inference.StepGeneration: "你好",
	}}
	strategy := &fakeStrategy{related: testRelated[:1]}
	o := NewOrchestrator(backend, strategy, Options{Enriched: true, MaxLength: 800}, zap.NewNop())
	sink := &captureSink{}

	err := o.GenerateStream(context.Background(), Request{Content: "开头"}, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		EventStatus, EventProgress,
		EventStatus, EventProgress,
		EventStatus, EventProgress,
		EventStatus, EventProgress,
		EventStatus,
		EventStream, EventStream,
		EventComplete,
	}, sink.types())

	steps := []string{}
	for _, e := range sink.events {
		if e.Type == EventProgress {
			steps = append(steps, e.Step)
		}
	}
	assert.Equal(t, []string{"characters", "summary", "tags", "snippets"}, steps)

	// Stream chunks accumulate into total.
	assert.Equal(t, "你", sink.events[9].Chunk)
	assert.Equal(t, "你", sink.events[9].Total)
	assert.Equal(t, "好", sink.events[10].Chunk)
	assert.Equal(t, "你好", sink.events[10].Total)

	complete := sink.events[len(sink.events)-1]
	result, ok := complete.Data.(Result)
	require.True(t, ok)
	assert.True(t, result.Success)
	assert.Equal(t, "你好", result.GeneratedContent)
}

func TestGenerateStreamRetrievalError(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{}}
	strategy := &fakeStrategy{err: errors.New("db down")}
	o := NewOrchestrator(backend, strategy, Options{Enriched: true}, zap.NewNop())
	sink := &captureSink{}

	err := o.GenerateStream(context.Background(), Request{Content: "开头"}, sink)
	require.Error(t, err)

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "db down")
}

func TestGenerateStreamSendFailureAborts(t *testing.T) {
	backend := &fakeBackend{responses: map[string]string{
		inference.StepCharacters: "[]",
	}}
	o := NewOrchestrator(backend, &fakeStrategy{}, Options{Enriched: true}, zap.NewNop())
	sink := &captureSink{failOn: EventProgress}

	err := o.GenerateStream(context.Background(), Request{Content: "开头"}, sink)
	require.Error(t, err)

	// The pipeline stopped after the first undeliverable event, the
	// later steps never ran.
	for _, req := range backend.requests {
		assert.Equal(t, inference.StepCharacters, req.Step)
	}
	for _, e := range sink.events {
		assert.NotEqual(t, EventComplete, e.Type)
	}
}

func TestGenerateStreamEmptyContent(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStrategy{}, Options{Enriched: true}, zap.NewNop())
	sink := &captureSink{}

	err := o.GenerateStream(context.Background(), Request{}, sink)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventError, sink.events[0].Type)
}

func TestParseTagLines(t *testing.T) {
	raw := "浪漫\n\n都市\nnote: skip this\n悬疑\n浪漫\ntoolongtag标签超过四字\n古风\n武侠\n科幻\n奇幻"
	tags := parseTagLines(raw)
	// Six lines survive the scan, invalid and duplicate ones drop out
	// during normalization.
	assert.Equal(t, []string{"浪漫", "都市", "悬疑", "古风"}, tags)
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"都市", "浪漫", "悬疑"},
		mergeTags([]string{"都市", "浪漫"}, []string{"浪漫", "悬疑"}))
	assert.Empty(t, mergeTags(nil, nil))
}

func TestGenerationTokenBudget(t *testing.T) {
	assert.Equal(t, 1000, generationTokenBudget(500))
	assert.Equal(t, 1500, generationTokenBudget(800))
}

func TestMaxLengthResolution(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, &fakeStrategy{}, Options{MaxLength: 600}, zap.NewNop())
	assert.Equal(t, 400, o.maxLength(Request{MaxLength: 400}))
	assert.Equal(t, 600, o.maxLength(Request{}))

	bare := NewOrchestrator(&fakeBackend{}, &fakeStrategy{}, Options{}, zap.NewNop())
	assert.Equal(t, defaultMaxLength, bare.maxLength(Request{}))
}

func TestBuildSimplePromptCapsSnippetBodies(t *testing.T) {
	long := strings.Repeat("长", 400)
	related := []snippets.Related{
		{Title: "一", Author: "a", Content: long},
		{Title: "二", Author: "b", Content: "短"},
		{Title: "三", Author: "c", Content: "短"},
		{Title: "四", Author: "d", Content: "短"},
	}
	prompt := buildSimplePrompt("开头", related, nil)
	assert.Contains(t, prompt, strings.Repeat("长", 300)+"...")
	assert.NotContains(t, prompt, strings.Repeat("长", 301))
	assert.Contains(t, prompt, "[片段3]")
	assert.NotContains(t, prompt, "[片段4]")
}
