package postgres

import (
	"context"
	"errors"

	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ArticlesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewArticlesRepo(pool *pgxpool.Pool, prom *observability.Prom) *ArticlesRepo {
	return &ArticlesRepo{pool: pool, prom: prom}
}

func (r *ArticlesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create inserts a new article. Status always starts at review.
func (r *ArticlesRepo) Create(ctx context.Context, req article.CreateArticleRequest, authorID int64) (int64, error) {
	var id int64

	err := r.observe("articles.create", func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO articles (title, body, status, author_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())
			 RETURNING id`,
			req.Title, req.Body, article.StatusReview, authorID,
		).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID resolves one article with the author's display name joined in.
func (r *ArticlesRepo) GetByID(ctx context.Context, id int64) (article.Article, error) {
	var a article.Article
	found := true

	err := r.observe("articles.get_by_id", func() error {
		scanErr := r.pool.QueryRow(ctx,
			`SELECT a.id, a.title, a.body, a.status, a.author_id, u.fullname, a.created_at, a.updated_at
			 FROM articles a
			 INNER JOIN users u ON a.author_id = u.id
			 WHERE a.id = $1`,
			id,
		).Scan(&a.ID, &a.Title, &a.Body, &a.Status, &a.AuthorID, &a.AuthorName, &a.CreatedAt, &a.UpdatedAt)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return scanErr
	})

	if err != nil {
		return article.Article{}, err
	}
	if !found {
		return article.Article{}, article.ErrNotFound
	}
	return a, nil
}

// Update replaces title and body and forces the status back to review:
// edited content must be re-approved.
func (r *ArticlesRepo) Update(ctx context.Context, req article.UpdateArticleRequest) error {
	var tag pgconn.CommandTag

	err := r.observe("articles.update", func() error {
		var execErr error
		tag, execErr = r.pool.Exec(ctx,
			`UPDATE articles
			 SET title = $1, body = $2, status = $3, updated_at = NOW()
			 WHERE id = $4`,
			req.Title, req.Body, article.StatusReview, req.ID,
		)
		return execErr
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (r *ArticlesRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.observe("articles.delete", func() error {
		var execErr error
		tag, execErr = r.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
		return execErr
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (r *ArticlesRepo) ListByAuthor(ctx context.Context, authorID int64) ([]article.Article, error) {
	return r.list(ctx, "articles.list_by_author",
		`SELECT a.id, a.title, a.body, a.status, a.author_id, u.fullname, a.created_at, a.updated_at
		 FROM articles a
		 INNER JOIN users u ON a.author_id = u.id
		 WHERE a.author_id = $1
		 ORDER BY a.created_at DESC, a.id DESC`,
		authorID,
	)
}

func (r *ArticlesRepo) ListApproved(ctx context.Context) ([]article.Article, error) {
	return r.list(ctx, "articles.list_approved",
		`SELECT a.id, a.title, a.body, a.status, a.author_id, u.fullname, a.created_at, a.updated_at
		 FROM articles a
		 INNER JOIN users u ON a.author_id = u.id
		 WHERE a.status = $1
		 ORDER BY a.created_at DESC, a.id DESC`,
		article.StatusApproved,
	)
}

// ListPendingReview feeds the super-admin moderation queue. No author join:
// the moderation view does not surface display names.
func (r *ArticlesRepo) ListPendingReview(ctx context.Context) ([]article.Article, error) {
	var out []article.Article

	err := r.observe("articles.list_pending", func() error {
		rows, queryErr := r.pool.Query(ctx,
			`SELECT id, title, body, status, author_id, created_at, updated_at
			 FROM articles
			 WHERE status = $1
			 ORDER BY created_at ASC, id ASC`,
			article.StatusReview,
		)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		out = make([]article.Article, 0)
		for rows.Next() {
			var a article.Article
			if scanErr := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Status, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt); scanErr != nil {
				return scanErr
			}
			out = append(out, a)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ArticlesRepo) History(ctx context.Context, articleID int64) ([]article.HistoryEntry, error) {
	var out []article.HistoryEntry

	err := r.observe("articles.history", func() error {
		rows, queryErr := r.pool.Query(ctx,
			`SELECT id, article_id, article_title, article_body, created_at
			 FROM article_history
			 WHERE article_id = $1
			 ORDER BY id ASC`,
			articleID,
		)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		out = make([]article.HistoryEntry, 0)
		for rows.Next() {
			var h article.HistoryEntry
			if scanErr := rows.Scan(&h.ID, &h.ArticleID, &h.Title, &h.Body, &h.CreatedAt); scanErr != nil {
				return scanErr
			}
			out = append(out, h)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ArticlesRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]article.Article, error) {
	var out []article.Article

	err := r.observe(op, func() error {
		rows, queryErr := r.pool.Query(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		out = make([]article.Article, 0)
		for rows.Next() {
			var a article.Article
			if scanErr := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Status, &a.AuthorID, &a.AuthorName, &a.CreatedAt, &a.UpdatedAt); scanErr != nil {
				return scanErr
			}
			out = append(out, a)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}
