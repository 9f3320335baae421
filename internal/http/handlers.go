package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/sujalbistaa/slidont/internal/cache"
	"github.com/sujalbistaa/slidont/internal/db"
	apperr "github.com/sujalbistaa/slidont/internal/errors"
	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

const (
	maxContentLength    = 1000
	maxAuthorNameLength = 64
	defaultAuthorColor  = "#3b82f6"
)

// --- Request bodies ---

type createItemInput struct {
	Content     string `json:"content"`
	AuthorName  string `json:"authorName"`
	IsAnonymous bool   `json:"isAnonymous"`
	AuthorColor string `json:"authorColor"`
	SessionID   string `json:"sessionId"`
}

type sessionInput struct {
	SessionID string `json:"sessionId"`
}

type doneInput struct {
	Secret string `json:"secret"`
}

type allResponse[T any] struct {
	Items   []T `json:"items"`
	Pending int `json:"pending"`
}

// Env carries the handler dependencies.
type Env struct {
	DB    *gorm.DB
	Svc   *moderation.Service
	Cache *cache.Cache

	lists singleflight.Group
}

// respondError writes err as {"error": {"code", "message"}}. Internal errors
// are logged and their message is not exposed.
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if errors.Is(err, context.Canceled) {
		c.Abort()
		return
	}
	appErr := apperr.From(err)
	msg := appErr.Message
	if appErr.Code == apperr.ErrInternal {
		logger.Error(ctx, "Request failed", "error", err, "path", c.FullPath())
		msg = "internal error"
	}
	c.AbortWithStatusJSON(appErr.Status, gin.H{"error": gin.H{
		"code":    appErr.Code,
		"message": msg,
	}})
}

func (e *Env) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Ready returns 200 when the database answers a ping.
func (e *Env) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, e.DB); err != nil {
		logger.Warn(ctx, "Readiness ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
		return
	}
	if err := e.Cache.Ping(ctx); err != nil {
		// The cache is optional; report it but stay ready.
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Events ---

func (e *Env) SeedEvent(c *gin.Context) {
	event, err := e.Svc.Events.EnsureSeed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (e *Env) GetEvent(c *gin.Context) {
	slug := c.Param("slug")
	event, err := e.Svc.Events.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		respondError(c, err)
		return
	}
	if event == nil {
		respondError(c, apperr.NewNotFound("event", slug))
		return
	}
	c.JSON(http.StatusOK, event)
}

// serveList answers from the cache when it can. Concurrent misses for the
// same projection and cache generation share one store read, so a request
// that sees a newer generation never joins a read started before the write.
func (e *Env) serveList(c *gin.Context, kind, slug, view string, load func(context.Context) (any, error)) {
	ctx := c.Request.Context()

	var cached json.RawMessage
	gen, hit := e.Cache.GetList(ctx, kind, slug, view, &cached)
	if hit {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	key := fmt.Sprintf("%s|%s|%s|%d", kind, slug, view, gen)
	v, err, _ := e.lists.Do(key, func() (any, error) {
		out, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	b := v.([]byte)
	e.Cache.SetList(ctx, kind, slug, view, gen, json.RawMessage(b))
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

// --- Items (questions and buzz) ---

// itemHandlers serves one moderated collection.
type itemHandlers[T any, PT moderation.Record[T]] struct {
	env *Env
	col *moderation.Collection[T, PT]
}

func newItemHandlers[T any, PT moderation.Record[T]](env *Env, col *moderation.Collection[T, PT]) *itemHandlers[T, PT] {
	return &itemHandlers[T, PT]{env: env, col: col}
}

func (h *itemHandlers[T, PT]) kind() string { return h.col.Kind().Name }

func (h *itemHandlers[T, PT]) List(c *gin.Context) {
	sortBy, err := moderation.ParseSort(c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	slug := c.Param("slug")
	h.env.serveList(c, h.kind(), slug, string(sortBy), func(ctx context.Context) (any, error) {
		return h.col.List(ctx, slug, sortBy)
	})
}

func (h *itemHandlers[T, PT]) ListAll(c *gin.Context) {
	slug := c.Param("slug")
	h.env.serveList(c, h.kind(), slug, "all", func(ctx context.Context) (any, error) {
		items, err := h.col.ListAll(ctx, slug)
		if err != nil {
			return nil, err
		}
		return allResponse[T]{Items: items, Pending: h.col.Pending(items)}, nil
	})
}

func (h *itemHandlers[T, PT]) Create(c *gin.Context) {
	var input createItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperr.NewInvalidRequest("invalid JSON body"))
		return
	}
	in, err := input.validate(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	item, err := h.col.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *itemHandlers[T, PT]) ToggleVote(c *gin.Context) {
	sessionID, ok := bindSession(c)
	if !ok {
		return
	}
	res, err := h.col.ToggleVote(c.Request.Context(), c.Param("id"), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *itemHandlers[T, PT]) ToggleFlag(c *gin.Context) {
	sessionID, ok := bindSession(c)
	if !ok {
		return
	}
	res, err := h.col.ToggleFlag(c.Request.Context(), c.Param("id"), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *itemHandlers[T, PT]) HasVoted(c *gin.Context) {
	voted, err := h.col.HasVoted(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.Query("sessionId")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voted": voted})
}

func (h *itemHandlers[T, PT]) HasFlagged(c *gin.Context) {
	flagged, err := h.col.HasFlagged(c.Request.Context(), c.Param("id"), strings.TrimSpace(c.Query("sessionId")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged})
}

// MarkDone takes the presenter secret from X-Presenter-Secret or the body.
func (h *itemHandlers[T, PT]) MarkDone(c *gin.Context) {
	secret := c.GetHeader(presenterSecretHeader)
	if secret == "" && c.Request.ContentLength != 0 {
		var body doneInput
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, apperr.NewInvalidRequest("invalid JSON body"))
			return
		}
		secret = body.Secret
	}
	res, err := h.col.MarkDone(c.Request.Context(), c.Param("id"), c.Param("slug"), secret)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func bindSession(c *gin.Context) (string, bool) {
	var input sessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperr.NewInvalidRequest("invalid JSON body"))
		return "", false
	}
	return strings.TrimSpace(input.SessionID), true
}

// validate trims the submission and enforces the length limits.
func (in createItemInput) validate(slug string) (moderation.CreateInput, error) {
	content := strings.TrimSpace(in.Content)
	name := strings.TrimSpace(in.AuthorName)
	color := strings.TrimSpace(in.AuthorColor)

	switch {
	case content == "":
		return moderation.CreateInput{}, apperr.NewInvalidRequest("content is required")
	case utf8.RuneCountInString(content) > maxContentLength:
		return moderation.CreateInput{}, apperr.NewInvalidRequest("content must be at most 1000 characters")
	case name == "":
		return moderation.CreateInput{}, apperr.NewInvalidRequest("authorName is required")
	case utf8.RuneCountInString(name) > maxAuthorNameLength:
		return moderation.CreateInput{}, apperr.NewInvalidRequest("authorName must be at most 64 characters")
	}
	if color == "" {
		color = defaultAuthorColor
	}
	return moderation.CreateInput{
		EventSlug:   slug,
		Content:     content,
		AuthorName:  name,
		IsAnonymous: in.IsAnonymous,
		AuthorColor: color,
		SessionID:   strings.TrimSpace(in.SessionID),
	}, nil
}
