package article

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("article not found")

	// Returned by the lifecycle coordinator for transitions that are not
	// REVIEW -> APPROVED or APPROVED -> REVIEW (including no-op re-approvals).
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Status string

const (
	StatusReview   Status = "review"
	StatusApproved Status = "approved"
)

func (s Status) Valid() bool {
	return s == StatusReview || s == StatusApproved
}

type Article struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Status     Status    `json:"status"`
	AuthorID   int64     `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"` // joined from users, public reads only
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HistoryEntry is an append-only snapshot of an article's content, written
// once per transition landing on APPROVED.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"articleId"`
	Title     string    `json:"articleTitle"`
	Body      string    `json:"articleBody"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateArticleRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

type UpdateArticleRequest struct {
	ID    int64  `json:"-"` // resolved from the URL, not the body
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// UpdateStatusRequest carries the wire encoding of the target state:
// 1 approves, 0 sends back to review.
type UpdateStatusRequest struct {
	Status *int `json:"status" binding:"required,oneof=0 1"`
}

func (r UpdateStatusRequest) Target() Status {
	if r.Status != nil && *r.Status == 1 {
		return StatusApproved
	}
	return StatusReview
}
