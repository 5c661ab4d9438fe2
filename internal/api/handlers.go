package api

import (
	"context"
	"errors"
	"time"

	"github.com/bilgisen/newswire/internal/ingest"
	"github.com/bilgisen/newswire/internal/middleware"
	"github.com/bilgisen/newswire/internal/models"
	"github.com/bilgisen/newswire/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const rssLimit = 50

// Ingester runs and reports ingestion.
type Ingester interface {
	Run(ctx context.Context) (ingest.Result, error)
	Status() ingest.Status
}

type Handlers struct {
	store    storage.Store
	ingester Ingester
	feed     FeedInfo
	log      zerolog.Logger
}

func NewHandlers(store storage.Store, ingester Ingester, feed FeedInfo, log zerolog.Logger) *Handlers {
	return &Handlers{
		store:    store,
		ingester: ingester,
		feed:     feed,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// ListQuery are the query parameters of GET /news
type ListQuery struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
	Category string `query:"category" validate:"omitempty,oneof=entertainment world business health sport science technology"`
}

// SetActiveRequest is the body of PATCH /admin/news/:id
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ArticleResponse is the public view of an article
type ArticleResponse struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Snippet      string            `json:"snippet"`
	ThumbnailURL *string           `json:"thumbnail_url,omitempty"`
	ImageURL     *string           `json:"image_url,omitempty"`
	SourceURL    string            `json:"source_url"`
	Publisher    string            `json:"publisher"`
	Category     string            `json:"category"`
	Active       bool              `json:"active"`
	HasChildren  bool              `json:"has_children"`
	CreatedAt    time.Time         `json:"created_at"`
	SubNews      []ArticleResponse `json:"sub_news,omitempty"`
}

func toResponse(a models.Article, _ int) ArticleResponse {
	return ArticleResponse{
		ID:           a.ID,
		Title:        a.Title,
		Snippet:      a.Snippet,
		ThumbnailURL: a.ThumbnailURL,
		ImageURL:     a.ImageURL,
		SourceURL:    a.SourceURL,
		Publisher:    a.Publisher,
		Category:     a.Category.String(),
		Active:       a.Active,
		HasChildren:  a.HasChildren,
		CreatedAt:    a.CreatedAt,
	}
}

func isActive(a models.Article, _ int) bool {
	return a.Active
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// GetNews handles GET /news
func (h *Handlers) GetNews(c *fiber.Ctx) error {
	q := c.Locals(middleware.QueryKey).(*ListQuery)

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	articles, total, err := h.store.ListArticles(c.UserContext(), storage.ArticleFilter{
		Category:   models.Category(q.Category),
		ActiveOnly: true,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Error listing news")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get news",
		})
	}

	return c.JSON(fiber.Map{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"items":     lo.Map(articles, toResponse),
	})
}

// GetNewsByID handles GET /news/:id
func (h *Handlers) GetNewsByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid news ID",
		})
	}

	article, err := h.store.GetArticle(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !article.Active) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "News not found",
		})
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id.String()).Msg("Error getting news item")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get news",
		})
	}

	resp := toResponse(*article, 0)
	if article.HasChildren {
		subs, err := h.store.SubArticles(c.UserContext(), id)
		if err != nil {
			h.log.Error().Err(err).Str("id", id.String()).Msg("Error getting sub news")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to get news",
			})
		}
		resp.SubNews = lo.Map(lo.Filter(subs, isActive), toResponse)
	}

	return c.JSON(resp)
}

// GetRSS handles GET /news/rss
func (h *Handlers) GetRSS(c *fiber.Ctx) error {
	articles, _, err := h.store.ListArticles(c.UserContext(), storage.ArticleFilter{
		ActiveOnly: true,
		Limit:      rssLimit,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Error listing news for RSS")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate feed")
	}

	rss, err := GenerateRSSFeed(articles, h.feed)
	if err != nil {
		h.log.Error().Err(err).Msg("Error generating RSS")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate feed")
	}

	c.Set(fiber.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.SendString(rss)
}

// TriggerIngest handles POST /admin/ingest. The run is synchronous.
func (h *Handlers) TriggerIngest(c *fiber.Ctx) error {
	h.log.Info().
		Str("ip", c.IP()).
		Msg("Received ingest request")

	result, err := h.ingester.Run(c.UserContext())

	var cooldownErr *ingest.CooldownError
	var categoryErr *ingest.CategoryError
	switch {
	case errors.As(err, &cooldownErr):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"status":         "rejected",
			"error":          cooldownErr.Error(),
			"days_remaining": cooldownErr.DaysRemaining,
		})
	case errors.As(err, &categoryErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "failed",
			"error":  err.Error(),
			"result": result,
		})
	case err != nil:
		h.log.Error().Err(err).Msg("Ingestion failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "failed",
			"error":  err.Error(),
		})
	case result.Skipped:
		return c.JSON(fiber.Map{
			"status": "skipped",
		})
	}

	return c.JSON(fiber.Map{
		"status": "completed",
		"result": result,
	})
}

// IngestStatus handles GET /admin/ingest/status
func (h *Handlers) IngestStatus(c *fiber.Ctx) error {
	articles, err := h.store.CountArticles(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to count articles")
	}
	links, err := h.store.CountLinks(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to count links")
	}

	return c.JSON(fiber.Map{
		"ingestion": h.ingester.Status(),
		"articles":  articles,
		"links":     links,
	})
}

// SetNewsActive handles PATCH /admin/news/:id
func (h *Handlers) SetNewsActive(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid news ID",
		})
	}
	body := c.Locals(middleware.BodyKey).(*SetActiveRequest)

	err = h.store.SetArticleActive(c.UserContext(), id, *body.Active)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "News not found",
		})
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id.String()).Msg("Error updating news item")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update news item",
		})
	}

	return c.JSON(fiber.Map{
		"id":     id,
		"active": *body.Active,
	})
}

// DeleteInactiveNews handles DELETE /admin/news/inactive
func (h *Handlers) DeleteInactiveNews(c *fiber.Ctx) error {
	deleted, err := h.store.DeleteInactiveArticles(c.UserContext())
	if err != nil {
		h.log.Error().Err(err).Msg("Error deleting inactive news")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete inactive news",
		})
	}

	h.log.Info().Int64("deleted", deleted).Msg("Deleted inactive news")
	return c.JSON(fiber.Map{
		"status":  "deleted",
		"deleted": deleted,
	})
}
