// Package generation runs the content pipeline: analyze the input,
// retrieve reference snippets, compose a prompt and invoke a model.
package generation

import (
	"context"

	"github.com/buche/contentgen/internal/modules/inference"
	"github.com/buche/contentgen/internal/modules/snippets"
)

// Request is the client payload for both the buffered and the
// streaming endpoints. Style and CharacterLimit are accepted for
// compatibility but not interpreted yet.
type Request struct {
	Content        string   `json:"content"`
	Tags           []string `json:"tags"`
	MaxLength      int      `json:"maxLength"`
	Style          string   `json:"style"`
	CharacterLimit int      `json:"characterLimit"`
}

// CharacterInfo is one character extracted from the input content.
type CharacterInfo struct {
	Name         string   `json:"name"`
	Relationship string   `json:"relationship"`
	Attributes   []string `json:"attributes"`
	Role         string   `json:"role"`
}

// SnippetRef is the client-facing view of a retrieved snippet. Bodies
// stay server-side, only metadata goes out.
type SnippetRef struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Author         string   `json:"author"`
	Tags           []string `json:"tags"`
	RelevanceScore float64  `json:"relevanceScore"`
}

// Result is the buffered response body, also carried in the terminal
// streaming event.
type Result struct {
	Success             bool            `json:"success"`
	GeneratedContent    string          `json:"generatedContent"`
	RelatedSnippets     []SnippetRef    `json:"relatedSnippets"`
	DetectedTags        []string        `json:"detectedTags"`
	ExtractedCharacters []CharacterInfo `json:"extractedCharacters,omitempty"`
	ContentSummary      string          `json:"contentSummary,omitempty"`
}

// Backend is the model invocation surface the pipeline depends on.
// inference.Gateway satisfies it, tests swap in fakes.
type Backend interface {
	Complete(ctx context.Context, req inference.Request) (string, error)
	CompleteStream(ctx context.Context, req inference.Request, onDelta func(string)) (string, error)
}

func snippetRefs(related []snippets.Related) []SnippetRef {
	refs := make([]SnippetRef, 0, len(related))
	for _, s := range related {
		tags := s.Tags
		if tags == nil {
			tags = []string{}
		}
		refs = append(refs, SnippetRef{
			ID:             s.ID,
			Title:          s.Title,
			Author:         s.Author,
			Tags:           tags,
			RelevanceScore: s.RelevanceScore,
		})
	}
	return refs
}
