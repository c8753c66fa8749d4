package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/buche/contentgen/internal/config"
	"github.com/buche/contentgen/internal/middleware"
	"github.com/buche/contentgen/internal/modules/generation"
	"github.com/buche/contentgen/internal/modules/inference"
	"github.com/buche/contentgen/internal/modules/snippets"
	"github.com/buche/contentgen/internal/pkg/objectstore"
	pkgredis "github.com/buche/contentgen/internal/pkg/redis"
	"github.com/buche/contentgen/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const fallbackListing = `Buche Content Generator Worker

Endpoints:
- POST /generate - Generate content based on input
- GET /generate-stream - Stream content generation via WebSocket
- POST /generate-stream-sse - Stream content generation via SSE
- GET /status - Check worker status`

// fallbackHandler answers any unknown path with a plain-text listing of
// the endpoints the service does offer.
func fallbackHandler(c *gin.Context) {
	c.String(http.StatusOK, fallbackListing)
}

func (a *App) registerRoutes(rc *pkgredis.Client) error {
	r := a.router

	r.NoRoute(fallbackHandler)
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	store, err := objectstore.New(a.cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	gateway := inference.NewGateway(a.cfg.Inference, a.logger)
	repo := snippets.NewRepository(a.db, store, a.logger)

	gen := a.cfg.Generation
	enriched := gen.Mode != config.GenerationModeSimple
	var bufferedStrategy snippets.Strategy
	if enriched {
		bufferedStrategy = snippets.PerTagSample{Repo: repo, PerTag: gen.SnippetsPerTag}
	} else {
		bufferedStrategy = snippets.TopK{Repo: repo, Limit: gen.TopK}
	}
	buffered := generation.NewOrchestrator(gateway, bufferedStrategy, generation.Options{
		Enriched:  enriched,
		MaxLength: gen.MaxLength,
	}, a.logger)

	// Streaming always runs the enriched pipeline with per-tag
	// sampling, the step events it reports assume those stages ran.
	streaming := generation.NewOrchestrator(gateway,
		snippets.PerTagSample{Repo: repo, PerTag: gen.SnippetsPerTag},
		generation.Options{Enriched: true, MaxLength: gen.MaxLength},
		a.logger)

	root := r.Group("")
	// Status answers change only as the corpus does, a short cache
	// keeps polling clients off the database.
	root.Use(middleware.HTTPCache(rc.Raw(), middleware.HTTPCacheOptions{
		TTL:       15 * time.Second,
		Disable:   a.cfg.IsDev(),
		SkipPaths: []string{"/generate-stream"},
	}))

	generation.NewHandler(buffered, streaming, repo, a.logger).RegisterRoutes(root)
	return nil
}
