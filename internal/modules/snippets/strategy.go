package snippets

import "context"

// Strategy selects which retrieval query a pipeline variant uses.
type Strategy interface {
	Retrieve(ctx context.Context, tags []string) ([]Related, error)
}

// TopK retrieves globally ranked matches.
type TopK struct {
	Repo  *Repository
	Limit int
}

func (s TopK) Retrieve(ctx context.Context, tags []string) ([]Related, error) {
	return s.Repo.TopMatches(ctx, tags, s.Limit)
}

// PerTagSample retrieves a bounded random sample for each tag with
// cross-tag dedup.
type PerTagSample struct {
	Repo   *Repository
	PerTag int
}

func (s PerTagSample) Retrieve(ctx context.Context, tags []string) ([]Related, error) {
	return s.Repo.SampleByTag(ctx, tags, s.PerTag)
}
