package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mualim/api/internal/generation"
	"github.com/mualim/api/internal/middleware"
	"github.com/mualim/api/internal/models"
	"github.com/mualim/api/internal/session"
	"github.com/mualim/api/internal/telemetry"
	"go.uber.org/zap"
)

// Generator runs the structured generation pipeline.
type Generator interface {
	Generate(ctx context.Context, req generation.Request, recent []string) (*generation.Outcome, error)
}

// Emitter queues analytics events without blocking.
type Emitter interface {
	Emit(event string, metadata map[string]any)
}

// Journal persists per-request diagnostics.
type Journal interface {
	Insert(ctx context.Context, l models.GenerationLog) error
}

// GenerationObserver counts finished requests.
type GenerationObserver interface {
	ObserveGeneration(kind generation.Kind, result string, noveltyRetries int)
}

// GenerationHandler serves the content generation endpoints.
type GenerationHandler struct {
	pipeline Generator
	sessions session.Store
	events   Emitter
	journal  Journal
	metrics  GenerationObserver
	logger   *zap.Logger
}

// NewGenerationHandler wires the handler. events, journal and metrics may be nil.
func NewGenerationHandler(pipeline Generator, sessions session.Store, events Emitter, journal Journal, metrics GenerationObserver, logger *zap.Logger) *GenerationHandler {
	return &GenerationHandler{
		pipeline: pipeline,
		sessions: sessions,
		events:   events,
		journal:  journal,
		metrics:  metrics,
		logger:   logger,
	}
}

// Meta describes how a result was produced.
type Meta struct {
	Model          string               `json:"model"`
	Fingerprint    string               `json:"fingerprint"`
	Duplicate      bool                 `json:"duplicate"`
	NoveltyRetries int                  `json:"novelty_retries"`
	Attempts       []generation.Attempt `json:"attempts"`
}

// IncompleteResponse is the soft failure returned with status 200 when no
// model produced a usable answer.
type IncompleteResponse struct {
	Debug    string               `json:"debug"`
	RawText  string               `json:"rawText"`
	Parsed   any                  `json:"parsed,omitempty"`
	Attempts []generation.Attempt `json:"attempts"`
}

// Generate godoc
// @Summary Generate structured lesson content
// @Tags generation
// @Accept json
// @Produce json
// @Param kind path string true "content kind"
// @Param request body generation.Request true "generation request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} middleware.APIError
// @Failure 402 {object} middleware.APIError
// @Security Bearer
// @Router /generate/{kind} [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	kind := generation.Kind(c.Param("kind"))
	if _, ok := generation.LookupSchema(kind); !ok {
		middleware.NotFound(c, "unknown content kind")
		return
	}

	var req generation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondErrorWithDetails(c, http.StatusBadRequest, middleware.ErrCodeBadRequest, "invalid generation request", err.Error())
		return
	}
	req.Kind = kind

	ctx := c.Request.Context()
	userID, _ := middleware.GetUserID(c)
	sessionKey := sessionKey(c, userID)

	recent, err := h.sessions.Recent(ctx, sessionKey)
	if err != nil {
		h.logger.Warn("session lookup failed", zap.String("session", sessionKey), zap.Error(err))
	}

	start := time.Now()
	out, err := h.pipeline.Generate(ctx, req, recent)
	elapsed := time.Since(start)

	var df *generation.DiagnosticFailure
	switch {
	case err == nil:
	case errors.Is(err, generation.ErrInvalidRequest):
		h.observe(kind, telemetry.ResultInvalid, 0)
		middleware.RespondErrorWithDetails(c, http.StatusBadRequest, middleware.ErrCodeBadRequest, "invalid generation request", err.Error())
		return
	case errors.As(err, &df):
		middleware.MarkUpstreamFailed(c)
		h.observe(kind, telemetry.ResultSoftFail, 0)
		h.record(userID, kind, telemetry.EventGenerationIncomplete, models.GenerationLog{
			Model:   lastModel(df.Attempts),
			Outcome: telemetry.ResultSoftFail,
		}, df.Attempts, elapsed)
		h.logger.Warn("generation incomplete",
			zap.String("kind", string(kind)),
			zap.Int("attempts", len(df.Attempts)),
			zap.Error(err),
		)
		attempts := df.Attempts
		if attempts == nil {
			attempts = []generation.Attempt{}
		}
		c.JSON(http.StatusOK, IncompleteResponse{
			Debug:    "incomplete",
			RawText:  df.LastRaw,
			Parsed:   df.Parsed,
			Attempts: attempts,
		})
		return
	default:
		h.logger.Error("generation failed", zap.String("kind", string(kind)), zap.Error(err))
		middleware.InternalError(c, "generation failed")
		return
	}

	if err := h.sessions.Remember(ctx, sessionKey, out.Fingerprint); err != nil {
		h.logger.Warn("session update failed", zap.String("session", sessionKey), zap.Error(err))
	}

	result, event := telemetry.ResultSuccess, telemetry.EventGenerationSucceeded
	if out.Duplicate {
		result, event = telemetry.ResultDuplicate, telemetry.EventGenerationDuplicate
	}
	h.observe(kind, result, out.NoveltyRetries)
	h.record(userID, kind, event, models.GenerationLog{
		Model:          out.Model,
		Fingerprint:    out.Fingerprint,
		Duplicate:      out.Duplicate,
		NoveltyRetries: out.NoveltyRetries,
		Outcome:        result,
	}, out.Attempts, elapsed)

	body := make(gin.H, len(out.Result)+1)
	for k, v := range out.Result {
		body[k] = v
	}
	body["_meta"] = Meta{
		Model:          out.Model,
		Fingerprint:    out.Fingerprint,
		Duplicate:      out.Duplicate,
		NoveltyRetries: out.NoveltyRetries,
		Attempts:       out.Attempts,
	}
	c.JSON(http.StatusOK, body)
}

// FieldDescriptor is the public shape of one schema field.
type FieldDescriptor struct {
	Key    string            `json:"key"`
	Type   string            `json:"type"`
	Hint   string            `json:"hint,omitempty"`
	Values []string          `json:"values,omitempty"`
	Min    int               `json:"min,omitempty"`
	Max    int               `json:"max,omitempty"`
	Items  []FieldDescriptor `json:"items,omitempty"`
}

// KindDescriptor is the public shape of one content kind.
type KindDescriptor struct {
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	TitleKey    string            `json:"title_key"`
	Fields      []FieldDescriptor `json:"fields"`
}

// Kinds godoc
// @Summary List content kinds and their output contracts
// @Tags generation
// @Produce json
// @Success 200 {array} KindDescriptor
// @Router /generate/kinds [get]
func (h *GenerationHandler) Kinds(c *gin.Context) {
	schemas := generation.Schemas()
	out := make([]KindDescriptor, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, KindDescriptor{
			Kind:        string(s.Kind),
			Description: s.Description,
			TitleKey:    s.TitleKey,
			Fields:      describeFields(s.Fields),
		})
	}
	c.JSON(http.StatusOK, out)
}

func describeFields(fields []generation.Field) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		d := FieldDescriptor{
			Key:    f.Key,
			Type:   string(f.Type),
			Hint:   f.Hint,
			Values: f.Values,
			Min:    f.Min,
			Max:    f.Max,
		}
		if len(f.Items) > 0 {
			d.Items = describeFields(f.Items)
		}
		out = append(out, d)
	}
	return out
}

// sessionKey prefers the browser session header so that two tabs of the
// same teacher keep separate histories.
func sessionKey(c *gin.Context, userID uuid.UUID) string {
	if s := c.GetHeader(middleware.SessionHeader); s != "" && len(s) <= 64 {
		return userID.String() + ":" + s
	}
	return userID.String()
}

func (h *GenerationHandler) observe(kind generation.Kind, result string, retries int) {
	if h.metrics != nil {
		h.metrics.ObserveGeneration(kind, result, retries)
	}
}

func (h *GenerationHandler) record(userID uuid.UUID, kind generation.Kind, event string, l models.GenerationLog, attempts []generation.Attempt, elapsed time.Duration) {
	if h.events != nil {
		h.events.Emit(event, map[string]any{
			"kind":            string(kind),
			"model":           l.Model,
			"duplicate":       l.Duplicate,
			"novelty_retries": l.NoveltyRetries,
			"attempts":        len(attempts),
			"duration_ms":     elapsed.Milliseconds(),
		})
	}
	if h.journal == nil {
		return
	}
	raw, err := json.Marshal(attempts)
	if err != nil {
		raw = nil
	}
	l.Kind = string(kind)
	l.Attempts = raw
	l.DurationMS = elapsed.Milliseconds()
	if userID != uuid.Nil {
		l.UserID = &userID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.journal.Insert(ctx, l); err != nil {
			h.logger.Warn("failed to write generation log", zap.Error(err))
		}
	}()
}

func lastModel(attempts []generation.Attempt) string {
	if len(attempts) == 0 {
		return ""
	}
	return attempts[len(attempts)-1].Model
}
