package postgres

import (
	"context"
	"errors"

	"github.com/blogward/blogward/internal/domain/article"
	"github.com/blogward/blogward/internal/lifecycle"
	"github.com/jackc/pgx/v5"
)

// Begin opens a lifecycle transaction. The returned tx holds a row lock on
// the article from the first GetForUpdate until commit or rollback.
func (r *ArticlesRepo) Begin(ctx context.Context) (lifecycle.ArticleTx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &articleTx{tx: tx, repo: r}, nil
}

type articleTx struct {
	tx   pgx.Tx
	repo *ArticlesRepo
}

func (t *articleTx) GetForUpdate(ctx context.Context, id int64) (article.Article, error) {
	var a article.Article
	found := true

	err := t.repo.observe("articles.get_for_update", func() error {
		scanErr := t.tx.QueryRow(ctx,
			`SELECT id, title, body, status, author_id, created_at, updated_at
			 FROM articles
			 WHERE id = $1
			 FOR UPDATE`,
			id,
		).Scan(&a.ID, &a.Title, &a.Body, &a.Status, &a.AuthorID, &a.CreatedAt, &a.UpdatedAt)
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

func (t *articleTx) UpdateStatus(ctx context.Context, id int64, status article.Status) error {
	var affected int64

	err := t.repo.observe("articles.update_status", func() error {
		tag, execErr := t.tx.Exec(ctx,
			`UPDATE articles SET status = $1, updated_at = NOW() WHERE id = $2`,
			status, id,
		)
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return article.ErrNotFound
	}
	return nil
}

func (t *articleTx) AppendHistory(ctx context.Context, a article.Article) error {
	return t.repo.observe("articles.append_history", func() error {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO article_history (article_id, article_title, article_body, created_at)
			 VALUES ($1, $2, $3, NOW())`,
			a.ID, a.Title, a.Body,
		)
		return err
	})
}

func (t *articleTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *articleTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
