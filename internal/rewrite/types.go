// Package rewrite defines core types shared across subsystems.
package rewrite

import "time"

// TaskStatus represents the lifecycle state of a rewrite task.
type TaskStatus string

// Task status values held in the task store.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Article is one externally sourced record awaiting rewriting.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
}

// Task tracks one article's passage through the rewrite pipeline.
type Task struct {
	ID        string     `json:"id"`
	ArticleID string     `json:"article_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Category  string     `json:"category"`
	Status    TaskStatus `json:"status"`
	Result    TaskResult `json:"result"`
	ErrorText string     `json:"error_text,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TaskResult carries the rewritten text and its originality score.
type TaskResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Score int    `json:"score"`
}

// CompletedArticle is the record handed to downstream consumers.
type CompletedArticle struct {
	SourceArticleID  string    `json:"source_article_id"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	Category         string    `json:"category"`
	OriginalityScore int       `json:"originality_score"`
	CompletedAt      time.Time `json:"completed_at"`
}

// DomainQuota is the per-domain daily allocation limit.
type DomainQuota struct {
	Domain     string `json:"domain"`
	DailyLimit int    `json:"daily_limit"`
	Enabled    bool   `json:"enabled"`
}

// Assignment records the placement of one article on an output domain.
type Assignment struct {
	ArticleID string `json:"article_id"`
	Domain    string `json:"domain"`
	Date      string `json:"date"`
	Category  string `json:"category"`
}
