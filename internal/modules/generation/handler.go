package generation

import (
	"context"
	"net/http"
	"strings"

	"github.com/buche/contentgen/internal/modules/snippets"
	"github.com/buche/contentgen/internal/pkg/apperr"
	"github.com/buche/contentgen/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var capabilities = []string{"content_generation", "tag_analysis", "snippet_matching"}

// SnippetCounter reports corpus statistics for the status endpoint.
// *snippets.Repository implements it.
type SnippetCounter interface {
	Counts(ctx context.Context) (snippets.Counts, error)
}

// Handler exposes the generation endpoints. The buffered endpoint uses
// the configured pipeline variant, the streaming endpoints always run
// the enriched one.
type Handler struct {
	buffered  *Orchestrator
	streaming *Orchestrator
	counter   SnippetCounter
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func NewHandler(buffered, streaming *Orchestrator, counter SnippetCounter, logger *zap.Logger) *Handler {
	return &Handler{
		buffered:  buffered,
		streaming: streaming,
		counter:   counter,
		upgrader: websocket.Upgrader{
			// Origins are already vetted by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generate", h.generate)
	rg.GET("/generate-stream", h.generateStreamWS)
	rg.POST("/generate-stream-sse", h.generateStreamSSE)
	rg.GET("/status", h.status)
}

// POST /generate
func (h *Handler) generate(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Content is required in request body",
		})
		return
	}

	result, err := h.buffered.Generate(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if apperr.IsValidation(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /generate-stream
//
// Plain GETs get a 426 pointing at the upgrade header, everything else
// is one request/one generation over the socket.
func (h *Handler) generateStreamWS(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		response.UpgradeRequired(c, "Upgrade: websocket required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sink := NewWebSocketSink(conn)
	defer sink.Close()

	sessionID := uuid.NewString()
	log := h.logger.With(zap.String("session", sessionID))

	var req Request
	if err := conn.ReadJSON(&req); err != nil {
		log.Warn("unreadable generation request", zap.Error(err))
		_ = sink.Send(Event{Type: EventError, Message: "invalid request payload"})
		return
	}

	if err := sink.Send(Event{Type: EventStatus, Message: "Starting content generation..."}); err != nil {
		return
	}
	if err := h.streaming.GenerateStream(c.Request.Context(), req, sink); err != nil {
		log.Warn("streaming generation failed", zap.Error(err))
	}
}

// POST /generate-stream-sse
func (h *Handler) generateStreamSSE(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Content is required in request body",
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	sessionID := uuid.NewString()
	sink := NewSSESink(c.Writer)
	if err := h.streaming.GenerateStream(c.Request.Context(), req, sink); err != nil {
		h.logger.Warn("sse generation failed",
			zap.String("session", sessionID), zap.Error(err))
	}
}

// GET /status
func (h *Handler) status(c *gin.Context) {
	counts, err := h.counter.Counts(c.Request.Context())
	if err != nil {
		h.logger.Error("status counts query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Database not initialized",
			"status": "inactive",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "active",
		"taggedSnippets": counts.TaggedSnippets,
		"totalTags":      counts.TotalTags,
		"capabilities":   capabilities,
	})
}
