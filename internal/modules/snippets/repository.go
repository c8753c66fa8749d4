// Package snippets retrieves reference snippets for tag sets. Metadata
// lives in MySQL, bodies in the object store keyed by snippet ID.
package snippets

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/buche/contentgen/internal/pkg/objectstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Related is one retrieved snippet with its body and relevance.
type Related struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Author         string   `json:"author"`
	Tags           []string `json:"tags"`
	Content        string   `json:"content,omitempty"`
	MatchCount     int      `json:"matchCount"`
	RelevanceScore float64  `json:"relevanceScore"`
}

// Repository runs snippet retrieval queries.
type Repository struct {
	db     *gorm.DB
	store  objectstore.Store
	logger *zap.Logger
}

func NewRepository(db *gorm.DB, store objectstore.Store, logger *zap.Logger) *Repository {
	return &Repository{db: db, store: store, logger: logger}
}

type matchedRow struct {
	ID         string
	Title      string
	Author     string
	TagMatches int
	TagUsage   int
	TagNames   string
}

// TopMatches returns up to limit snippets ranked by how many of the
// given tags they carry, ties broken by aggregate tag usage. The
// relevance score is matchCount divided by the number of query tags,
// capped at 1. Snippets whose body is missing from the object store
// are dropped. A failed query degrades to an empty result, the caller
// generates without reference snippets.
func (r *Repository) TopMatches(ctx context.Context, tags []string, limit int) ([]Related, error) {
	if len(tags) == 0 {
		return []Related{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var rows []matchedRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT s.id, s.title, s.author,
		       COUNT(st.tag_id) AS tag_matches,
		       SUM(t.usage_count) AS tag_usage,
		       GROUP_CONCAT(t.name) AS tag_names
		FROM snippets s
		JOIN snippet_tags st ON s.id = st.snippet_id
		JOIN tags t ON st.tag_id = t.id
		WHERE t.name IN ? AND s.deleted_at IS NULL
		GROUP BY s.id, s.title, s.author
		ORDER BY tag_matches DESC, tag_usage DESC
		LIMIT ?
	`, tags, limit).Scan(&rows).Error
	if err != nil {
		r.logger.Warn("snippet match query failed, continuing without snippets", zap.Error(err))
		return []Related{}, nil
	}

	related := make([]Related, 0, len(rows))
	for _, row := range rows {
		content, ok := r.fetchBody(ctx, row.ID)
		if !ok {
			continue
		}
		related = append(related, Related{
			ID:             row.ID,
			Title:          row.Title,
			Author:         row.Author,
			Tags:           splitTagNames(row.TagNames),
			Content:        content,
			MatchCount:     row.TagMatches,
			RelevanceScore: math.Min(float64(row.TagMatches)/float64(len(tags)), 1.0),
		})
	}
	return related, nil
}

type tagRow struct {
	ID   string
	Name string
}

type sampledRow struct {
	ID     string
	Title  string
	Author string
}

// SampleByTag takes up to perTag random snippets for each tag, skipping
// snippets already taken for another tag. Each result carries a fixed
// relevance score of 1; random selection gives no ordering signal. Query
// failures degrade to whatever was collected so far.
func (r *Repository) SampleByTag(ctx context.Context, tags []string, perTag int) ([]Related, error) {
	if len(tags) == 0 {
		return []Related{}, nil
	}
	if perTag <= 0 {
		perTag = 2
	}

	var foundTags []tagRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, name FROM tags WHERE name IN ? AND deleted_at IS NULL`, tags,
	).Scan(&foundTags).Error
	if err != nil {
		r.logger.Warn("tag lookup failed, continuing without snippets", zap.Error(err))
		return []Related{}, nil
	}
	if len(foundTags) == 0 {
		return []Related{}, nil
	}

	related := make([]Related, 0, len(foundTags)*perTag)
	seen := make(map[string]struct{})

	for _, tag := range foundTags {
		// Over-fetch so dedup against other tags still leaves candidates.
		var rows []sampledRow
		err := r.db.WithContext(ctx).Raw(`
			SELECT s.id, s.title, s.author
			FROM snippets s
			JOIN snippet_tags st ON s.id = st.snippet_id
			WHERE st.tag_id = ? AND s.deleted_at IS NULL
			ORDER BY RAND()
			LIMIT ?
		`, tag.ID, perTag*2).Scan(&rows).Error
		if err != nil {
			r.logger.Warn("snippet sample query failed, skipping tag",
				zap.String("tag", tag.Name), zap.Error(err))
			continue
		}

		related = append(related, r.collectSamples(ctx, rows, tag.Name, perTag, seen)...)
	}
	return related, nil
}

// collectSamples turns candidate rows for one tag into Related entries,
// honoring the perTag cap and the cross-tag dedup set. Candidates whose
// body cannot be fetched do not count against the cap.
func (r *Repository) collectSamples(ctx context.Context, rows []sampledRow, tagName string, perTag int, seen map[string]struct{}) []Related {
	out := make([]Related, 0, perTag)
	for _, row := range rows {
		if len(out) >= perTag {
			break
		}
		if _, ok := seen[row.ID]; ok {
			continue
		}
		content, ok := r.fetchBody(ctx, row.ID)
		if !ok {
			continue
		}
		out = append(out, Related{
			ID:             row.ID,
			Title:          row.Title,
			Author:         row.Author,
			Tags:           []string{tagName},
			Content:        content,
			MatchCount:     1,
			RelevanceScore: 1.0,
		})
		seen[row.ID] = struct{}{}
	}
	return out
}

// fetchBody loads a snippet body from the object store. A missing blob
// drops the snippet; other fetch errors drop it too but are logged at
// a higher level.
func (r *Repository) fetchBody(ctx context.Context, id string) (string, bool) {
	body, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			r.logger.Debug("snippet body missing, dropping", zap.String("snippet", id))
		} else {
			r.logger.Warn("snippet body fetch failed, dropping", zap.String("snippet", id), zap.Error(err))
		}
		return "", false
	}
	return string(body), true
}

// Counts holds the store statistics reported by the status endpoint.
type Counts struct {
	TaggedSnippets int64
	TotalTags      int64
}

// Counts runs the two status queries concurrently.
func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.db.WithContext(gctx).Raw(
			`SELECT COUNT(DISTINCT snippet_id) FROM snippet_tags`,
		).Scan(&counts.TaggedSnippets).Error
	})
	g.Go(func() error {
		return r.db.WithContext(gctx).Raw(
			`SELECT COUNT(*) FROM tags WHERE deleted_at IS NULL`,
		).Scan(&counts.TotalTags).Error
	})

	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return counts, nil
}

func splitTagNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
