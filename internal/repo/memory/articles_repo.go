// Package memory holds an in-process articles store used by handler tests.
// It mirrors the postgres repo's surface and sentinel errors, minus
// durability.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/blogward/blogward/internal/domain/article"
)

type ArticlesRepo struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]article.Article
	history map[int64][]article.HistoryEntry
}

func NewArticlesRepo() *ArticlesRepo {
	return &ArticlesRepo{
		nextID:  1,
		items:   make(map[int64]article.Article),
		history: make(map[int64][]article.HistoryEntry),
	}
}

func (r *ArticlesRepo) Create(ctx context.Context, req article.CreateArticleRequest, authorID int64) (int64, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	a := article.Article{
		ID:        r.nextID,
		Title:     req.Title,
		Body:      req.Body,
		Status:    article.StatusReview,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.nextID++
	r.items[a.ID] = a

	return a.ID, nil
}

func (r *ArticlesRepo) GetByID(ctx context.Context, id int64) (article.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return article.Article{}, article.ErrNotFound
	}
	return a, nil
}

func (r *ArticlesRepo) Update(ctx context.Context, req article.UpdateArticleRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.items[req.ID]
	if !ok {
		return article.ErrNotFound
	}

	a.Title = req.Title
	a.Body = req.Body
	a.Status = article.StatusReview
	a.UpdatedAt = time.Now()
	r.items[req.ID] = a

	return nil
}

func (r *ArticlesRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return article.ErrNotFound
	}
	delete(r.items, id)
	delete(r.history, id)
	return nil
}

func (r *ArticlesRepo) ListByAuthor(ctx context.Context, authorID int64) ([]article.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]article.Article, 0)
	for _, a := range r.items {
		if a.AuthorID == authorID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *ArticlesRepo) ListApproved(ctx context.Context) ([]article.Article, error) {
	return r.listByStatus(article.StatusApproved), nil
}

func (r *ArticlesRepo) ListPendingReview(ctx context.Context) ([]article.Article, error) {
	return r.listByStatus(article.StatusReview), nil
}

func (r *ArticlesRepo) History(ctx context.Context, articleID int64) ([]article.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]article.HistoryEntry(nil), r.history[articleID]...), nil
}

// AppendHistory records a content snapshot the way the transactional store
// does on approval.
func (r *ArticlesRepo) AppendHistory(articleID int64, title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := article.HistoryEntry{
		ID:        int64(len(r.history[articleID]) + 1),
		ArticleID: articleID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
	r.history[articleID] = append(r.history[articleID], entry)
}

// SetStatus mutates status directly, bypassing the lifecycle coordinator.
// Test setup helper.
func (r *ArticlesRepo) SetStatus(id int64, status article.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.items[id]; ok {
		a.Status = status
		r.items[id] = a
	}
}

func (r *ArticlesRepo) listByStatus(status article.Status) []article.Article {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]article.Article, 0)
	for _, a := range r.items {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}
