package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an article does not exist.
	ErrNotFound = errors.New("article not found")
	// ErrSelfLink is returned when an article would be linked to itself.
	ErrSelfLink = errors.New("article cannot be linked to itself")
)

// ArticleWriter is the set of writes the ingestion engine performs inside
// one transaction.
type ArticleWriter interface {
	// EnsureCategory returns the id of the named category, creating it if needed.
	EnsureCategory(ctx context.Context, name string) (int64, error)
	// ArticleIDBySourceURL looks up an article by its unique source URL.
	ArticleIDBySourceURL(ctx context.Context, sourceURL string) (uuid.UUID, bool, error)
	// InsertArticle inserts the article unless its source URL already exists.
	// created is false when an existing row won; the returned id is then that row's.
	InsertArticle(ctx context.Context, article *models.Article) (id uuid.UUID, created bool, err error)
	MarkHasChildren(ctx context.Context, id uuid.UUID) error
	// LinkArticles records a parent/child relation. It reports false when the
	// link already existed.
	LinkArticles(ctx context.Context, parentID, childID uuid.UUID) (bool, error)
}

// ArticleFilter narrows ListArticles.
type ArticleFilter struct {
	Category   models.Category
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Store is the persistence layer of the service.
type Store interface {
	// WithTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(w ArticleWriter) error) error

	LastCheckpoint(ctx context.Context) (time.Time, bool, error)
	SaveCheckpoint(ctx context.Context, at time.Time) error

	ListArticles(ctx context.Context, filter ArticleFilter) ([]models.Article, int, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*models.Article, error)
	SubArticles(ctx context.Context, parentID uuid.UUID) ([]models.Article, error)
	SetArticleActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteInactiveArticles(ctx context.Context) (int64, error)
	CountArticles(ctx context.Context) (int, error)
	CountLinks(ctx context.Context) (int, error)

	Close()
}
