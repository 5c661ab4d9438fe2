package ingest

import (
	"context"
	"fmt"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/bilgisen/newswire/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchResult counts what one category batch did to storage.
type BatchResult struct {
	Items    int `json:"items"`
	SubItems int `json:"sub_items"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Links    int `json:"links"`
}

// Engine writes provider batches, deduplicating by source URL.
type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "engine").Logger()}
}

// IngestBatch stores every item of batch and links sub-news to their parent.
// It must run inside a transaction; an error means the caller rolls back.
func (e *Engine) IngestBatch(ctx context.Context, w storage.ArticleWriter, category models.Category, batch *models.ArticleBatch) (BatchResult, error) {
	var (
		result     BatchResult
		categoryID int64
	)

	for _, item := range batch.Items {
		if categoryID == 0 {
			id, err := w.EnsureCategory(ctx, category.String())
			if err != nil {
				return result, err
			}
			categoryID = id
		}

		result.Items++
		parentID, created, err := e.upsert(ctx, w, item, categoryID, item.HasSubItems)
		if err != nil {
			return result, err
		}
		e.count(&result, created)

		if !created && item.HasSubItems {
			if err := w.MarkHasChildren(ctx, parentID); err != nil {
				return result, err
			}
		}

		for _, sub := range item.SubItems {
			result.SubItems++
			childID, created, err := e.upsert(ctx, w, sub, categoryID, false)
			if err != nil {
				return result, err
			}
			e.count(&result, created)

			if childID == parentID {
				e.log.Debug().
					Str("source_url", sub.SourceURL).
					Msg("Skipping sub-news that points at its parent")
				continue
			}

			linked, err := w.LinkArticles(ctx, parentID, childID)
			if err != nil {
				return result, err
			}
			if linked {
				result.Links++
			}
		}
	}

	e.log.Debug().
		Str("category", category.String()).
		Int("items", result.Items).
		Int("created", result.Created).
		Int("existing", result.Existing).
		Int("links", result.Links).
		Msg("Ingested batch")

	return result, nil
}

// upsert returns the id of the article with item's source URL, inserting it
// when it does not exist yet.
func (e *Engine) upsert(ctx context.Context, w storage.ArticleWriter, item models.ArticleItem, categoryID int64, hasChildren bool) (uuid.UUID, bool, error) {
	id, found, err := w.ArticleIDBySourceURL(ctx, item.SourceURL)
	if err != nil {
		return uuid.Nil, false, err
	}
	if found {
		return id, false, nil
	}

	article := models.NewArticle(item, categoryID)
	article.HasChildren = hasChildren

	id, created, err := w.InsertArticle(ctx, &article)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to store %s: %w", item.SourceURL, err)
	}
	return id, created, nil
}

func (e *Engine) count(r *BatchResult, created bool) {
	if created {
		r.Created++
	} else {
		r.Existing++
	}
}
