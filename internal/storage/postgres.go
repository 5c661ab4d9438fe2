package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const articleColumns = `
	a.id, a.created_at, a.title, a.snippet, a.thumbnail_url, a.image_url,
	a.source_url, a.publisher, a.category_id, c.name, a.active, a.has_children,
	a.ingested_at`

const articleFrom = `
	FROM article a
	JOIN article_category c ON c.id = a.category_id`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL, pgx.QueryExecModeSimpleProtocol); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(w ArticleWriter) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgWriter{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) LastCheckpoint(ctx context.Context) (time.Time, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_run_at FROM ingestion_checkpoint WHERE id = 1`).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return at.UTC(), true, nil
}

func (s *PostgresStore) SaveCheckpoint(ctx context.Context, at time.Time) error {
	query := `
		INSERT INTO ingestion_checkpoint (id, last_run_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_run_at = EXCLUDED.last_run_at
	`
	if _, err := s.pool.Exec(ctx, query, at.UTC()); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// ListArticles returns one page of articles, newest first, and the total
// number of articles matching the filter.
func (s *PostgresStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]models.Article, int, error) {
	where := `
		WHERE ($1 = '' OR c.name = $1)
		  AND (NOT $2 OR a.active)`

	var total int
	err := s.pool.QueryRow(ctx, `SELECT count(*)`+articleFrom+where,
		string(filter.Category), filter.ActiveOnly,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count articles: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT` + articleColumns + articleFrom + where + `
		ORDER BY a.created_at DESC, a.id
		LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, string(filter.Category), filter.ActiveOnly, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query articles: %w", err)
	}

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+articleColumns+articleFrom+` WHERE a.id = $1`, id)

	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// SubArticles returns the sub-news linked under parentID, newest first.
func (s *PostgresStore) SubArticles(ctx context.Context, parentID uuid.UUID) ([]models.Article, error) {
	query := `SELECT` + articleColumns + articleFrom + `
		JOIN article_link l ON l.child_id = a.id
		WHERE l.parent_id = $1
		ORDER BY a.created_at DESC, a.id`

	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub articles: %w", err)
	}
	return scanArticles(rows)
}

func (s *PostgresStore) SetArticleActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE article SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInactiveArticles removes every inactive article. Links pointing at
// them go away through ON DELETE CASCADE.
func (s *PostgresStore) DeleteInactiveArticles(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM article WHERE NOT active`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM article`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountLinks(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM article_link`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return n, nil
}

// pgWriter runs the ingestion writes on an open transaction.
type pgWriter struct {
	tx pgx.Tx
}

func (w *pgWriter) EnsureCategory(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO article_category (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`
	var id int64
	if err := w.tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure category %q: %w", name, err)
	}
	return id, nil
}

func (w *pgWriter) ArticleIDBySourceURL(ctx context.Context, sourceURL string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := w.tx.QueryRow(ctx, `SELECT id FROM article WHERE source_url = $1`, sourceURL).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to get article by source URL: %w", err)
	}
	return id, true, nil
}

func (w *pgWriter) InsertArticle(ctx context.Context, article *models.Article) (uuid.UUID, bool, error) {
	query := `
		INSERT INTO article (id, created_at, title, snippet, thumbnail_url, image_url,
			source_url, publisher, category_id, active, has_children)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_url) DO NOTHING
		RETURNING id, ingested_at
	`

	err := w.tx.QueryRow(ctx, query,
		article.ID,
		article.CreatedAt,
		article.Title,
		article.Snippet,
		article.ThumbnailURL,
		article.ImageURL,
		article.SourceURL,
		article.Publisher,
		article.CategoryID,
		article.Active,
		article.HasChildren,
	).Scan(&article.ID, &article.IngestedAt)

	if err == nil {
		return article.ID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, fmt.Errorf("failed to insert article: %w", err)
	}

	// Another writer committed the same source URL first.
	id, found, err := w.ArticleIDBySourceURL(ctx, article.SourceURL)
	if err != nil {
		return uuid.Nil, false, err
	}
	if !found {
		return uuid.Nil, false, fmt.Errorf("article %s conflicted but is not visible", article.SourceURL)
	}
	return id, false, nil
}

func (w *pgWriter) MarkHasChildren(ctx context.Context, id uuid.UUID) error {
	_, err := w.tx.Exec(ctx, `UPDATE article SET has_children = TRUE WHERE id = $1 AND NOT has_children`, id)
	if err != nil {
		return fmt.Errorf("failed to mark article %s as parent: %w", id, err)
	}
	return nil
}

func (w *pgWriter) LinkArticles(ctx context.Context, parentID, childID uuid.UUID) (bool, error) {
	if parentID == childID {
		return false, ErrSelfLink
	}

	query := `
		INSERT INTO article_link (parent_id, child_id)
		VALUES ($1, $2)
		ON CONFLICT (parent_id, child_id) DO NOTHING
	`
	tag, err := w.tx.Exec(ctx, query, parentID, childID)
	if err != nil {
		return false, fmt.Errorf("failed to link articles: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var (
		a        models.Article
		category string
	)
	err := row.Scan(
		&a.ID,
		&a.CreatedAt,
		&a.Title,
		&a.Snippet,
		&a.ThumbnailURL,
		&a.ImageURL,
		&a.SourceURL,
		&a.Publisher,
		&a.CategoryID,
		&category,
		&a.Active,
		&a.HasChildren,
		&a.IngestedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Category = models.Category(category)
	a.CreatedAt = a.CreatedAt.UTC()
	a.IngestedAt = a.IngestedAt.UTC()
	return &a, nil
}

func scanArticles(rows pgx.Rows) ([]models.Article, error) {
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}
	return articles, nil
}
