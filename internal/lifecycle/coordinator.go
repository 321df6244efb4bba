// Package lifecycle owns the article status state machine. An article moves
// between review and approved only through Transition, which runs the status
// update and the conditional history snapshot as one transaction.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/observability"
)

// ArticleTx is one open transaction over the article store. Rollback after
// Commit must be a no-op so callers can defer it unconditionally.
type ArticleTx interface {
	GetForUpdate(ctx context.Context, id int64) (article.Article, error)
	UpdateStatus(ctx context.Context, id int64, status article.Status) error
	AppendHistory(ctx context.Context, a article.Article) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	Begin(ctx context.Context) (ArticleTx, error)
}

type Coordinator struct {
	store Store
	prom  *observability.Prom
	log   *slog.Logger
}

func NewCoordinator(store Store, prom *observability.Prom, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: store, prom: prom, log: log}
}

// Transition moves an article to the target status. Landing on approved
// appends a snapshot of the title/body as they exist inside the same
// transaction; going back to review writes no history. A target equal to the
// current status is rejected rather than appending a duplicate snapshot.
func (c *Coordinator) Transition(ctx context.Context, id int64, target article.Status) (result article.Article, err error) {
	defer func() { c.count(target, err) }()

	if !target.Valid() {
		return article.Article{}, article.ErrInvalidTransition
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return article.Article{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// re-read under the row lock: guard-level lookups may be stale if a
	// concurrent transition raced this one
	current, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		return article.Article{}, err
	}

	if current.Status == target {
		return article.Article{}, article.ErrInvalidTransition
	}

	if err = tx.UpdateStatus(ctx, id, target); err != nil {
		return article.Article{}, err
	}

	if target == article.StatusApproved {
		if err = tx.AppendHistory(ctx, current); err != nil {
			return article.Article{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return article.Article{}, err
	}

	current.Status = target
	return current, nil
}

func (c *Coordinator) count(target article.Status, err error) {
	if c.prom == nil {
		return
	}

	result := "ok"
	switch {
	case errors.Is(err, article.ErrInvalidTransition):
		result = "rejected"
	case errors.Is(err, article.ErrNotFound):
		result = "rejected"
	case err != nil:
		result = "failed"
	}
	c.prom.TransitionsTotal.WithLabelValues(string(target), result).Inc()
}
