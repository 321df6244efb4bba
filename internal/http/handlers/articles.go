package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blogward/blogward/internal/cache"
	"github.com/blogward/blogward/internal/config"
	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ArticleStore interface {
	Create(ctx context.Context, req article.CreateArticleRequest, authorID int64) (int64, error)
	GetByID(ctx context.Context, id int64) (article.Article, error)
	Update(ctx context.Context, req article.UpdateArticleRequest) error
	Delete(ctx context.Context, id int64) error
	ListByAuthor(ctx context.Context, authorID int64) ([]article.Article, error)
	ListApproved(ctx context.Context) ([]article.Article, error)
	History(ctx context.Context, articleID int64) ([]article.HistoryEntry, error)
}

type Transitioner interface {
	Transition(ctx context.Context, id int64, target article.Status) (article.Article, error)
}

type ArticlesHandler struct {
	store     ArticleStore
	lifecycle Transitioner
	feed      *cache.FeedCache
	log       *slog.Logger
}

func NewArticlesHandler(store ArticleStore, lifecycle Transitioner, feed *cache.FeedCache, log *slog.Logger) *ArticlesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ArticlesHandler{store: store, lifecycle: lifecycle, feed: feed, log: log}
}

func (h *ArticlesHandler) Create(ctx *gin.Context) {
	identity, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req article.CreateArticleRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	id, err := h.store.Create(cctx, req, identity.UserID)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "article create failed", "err", err)
		RespondInternal(ctx)
		return
	}

	RespondSuccess(ctx, http.StatusCreated, "Article created successfully", gin.H{"id": id})
}

func (h *ArticlesHandler) Mine(ctx *gin.Context) {
	identity, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, err := h.store.ListByAuthor(cctx, identity.UserID)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list own articles failed", "err", err)
		RespondInternal(ctx)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Articles fetched successfully", items)
}

// Public serves the approved feed through the cache; a miss rebuilds it from
// the store. ETags let unchanged feeds answer 304.
func (h *ArticlesHandler) Public(ctx *gin.Context) {
	rctx := ctx.Request.Context()

	if raw, ok := h.feedGet(rctx); ok {
		RespondJSONWithETag(ctx, http.StatusOK, Envelope{Success: 1, Message: "Articles fetched successfully", Data: json.RawMessage(raw)})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	items, err := h.store.ListApproved(cctx)
	if err != nil {
		h.log.ErrorContext(rctx, "list approved articles failed", "err", err)
		RespondInternal(ctx)
		return
	}

	if raw, err := json.Marshal(items); err == nil {
		h.feedSet(rctx, raw)
	}

	RespondJSONWithETag(ctx, http.StatusOK, Envelope{Success: 1, Message: "Articles fetched successfully", Data: items})
}

func (h *ArticlesHandler) Details(ctx *gin.Context) {
	a, ok := middlewares.ArticleFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Article fetched successfully", a)
}

func (h *ArticlesHandler) Update(ctx *gin.Context) {
	a, ok := middlewares.ArticleFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	var req article.UpdateArticleRequest
	if !BindJSON(ctx, &req) {
		return
	}
	req.ID = a.ID

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Update(cctx, req); err != nil {
		if errors.Is(err, article.ErrNotFound) {
			ctx.AbortWithStatus(http.StatusNotFound)
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "article update failed", "err", err)
		RespondInternal(ctx)
		return
	}

	// an edit reverts the article to review, so it leaves the public feed
	h.feedInvalidate(ctx.Request.Context())

	RespondSuccess(ctx, http.StatusOK, "Article updated successfully", nil)
}

func (h *ArticlesHandler) Delete(ctx *gin.Context) {
	a, ok := middlewares.ArticleFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, a.ID); err != nil {
		if errors.Is(err, article.ErrNotFound) {
			ctx.AbortWithStatus(http.StatusNotFound)
			return
		}
		h.log.ErrorContext(ctx.Request.Context(), "article delete failed", "err", err)
		RespondInternal(ctx)
		return
	}

	h.feedInvalidate(ctx.Request.Context())

	RespondSuccess(ctx, http.StatusOK, "Article deleted successfully", nil)
}

// UpdateStatus drives the approve/revert state machine through the lifecycle
// coordinator.
func (h *ArticlesHandler) UpdateStatus(ctx *gin.Context) {
	a, ok := middlewares.ArticleFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	var req article.UpdateStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	updated, err := h.lifecycle.Transition(cctx, a.ID, req.Target())
	if err != nil {
		switch {
		case errors.Is(err, article.ErrInvalidTransition):
			RespondConflict(ctx, "Article is already in the requested status")
		case errors.Is(err, article.ErrNotFound):
			ctx.AbortWithStatus(http.StatusNotFound)
		default:
			h.log.ErrorContext(ctx.Request.Context(), "status transition failed", "err", err)
			RespondInternal(ctx)
		}
		return
	}

	h.feedInvalidate(ctx.Request.Context())

	// re-read for the author join; fall back to the coordinator's result
	if refreshed, err := h.store.GetByID(cctx, a.ID); err == nil {
		updated = refreshed
	}

	RespondSuccess(ctx, http.StatusOK, "Article status updated successfully", updated)
}

func (h *ArticlesHandler) History(ctx *gin.Context) {
	a, ok := middlewares.ArticleFromContext(ctx)
	if !ok {
		ctx.AbortWithStatus(http.StatusNotFound)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	entries, err := h.store.History(cctx, a.ID)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "article history failed", "err", err)
		RespondInternal(ctx)
		return
	}

	RespondSuccess(ctx, http.StatusOK, "Article history fetched successfully", entries)
}

// feed helpers tolerate a nil cache so tests can skip it

func (h *ArticlesHandler) feedGet(ctx context.Context) ([]byte, bool) {
	if h.feed == nil {
		return nil, false
	}
	return h.feed.Get(ctx)
}

func (h *ArticlesHandler) feedSet(ctx context.Context, raw []byte) {
	if h.feed != nil {
		h.feed.Set(ctx, raw)
	}
}

func (h *ArticlesHandler) feedInvalidate(ctx context.Context) {
	if h.feed != nil {
		h.feed.Invalidate(ctx)
	}
}
