package models

import (
	"time"

	"github.com/google/uuid"
)

// Article is one stored news item, unique by SourceURL.
type Article struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	Snippet      string    `json:"snippet"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	ImageURL     *string   `json:"image_url,omitempty"`
	SourceURL    string    `json:"source_url"`
	Publisher    string    `json:"publisher"`
	CategoryID   int64     `json:"category_id"`
	Category     Category  `json:"category,omitempty"`
	Active       bool      `json:"active"`
	HasChildren  bool      `json:"has_children"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// ArticleLink ties a parent article to one of its sub-news articles.
type ArticleLink struct {
	ParentID  uuid.UUID `json:"parent_id"`
	ChildID   uuid.UUID `json:"child_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewArticle builds an unsaved Article from a provider item.
func NewArticle(item ArticleItem, categoryID int64) Article {
	return Article{
		ID:           uuid.New(),
		CreatedAt:    item.Timestamp.Time(),
		Title:        item.Title,
		Snippet:      item.Snippet,
		ThumbnailURL: item.Images.Primary(),
		ImageURL:     item.ResolvedImage,
		SourceURL:    item.SourceURL,
		Publisher:    item.Publisher,
		CategoryID:   categoryID,
		Active:       true,
	}
}
