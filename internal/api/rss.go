package api

import (
	"fmt"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/gorilla/feeds"
)

// FeedInfo describes the RSS channel.
type FeedInfo struct {
	Title       string
	Link        string
	Description string
}

// GenerateRSSFeed creates an RSS 2.0 document from articles
func GenerateRSSFeed(articles []models.Article, info FeedInfo) (string, error) {
	feed := &feeds.Feed{
		Title:       info.Title,
		Link:        &feeds.Link{Href: info.Link},
		Description: info.Description,
		Created:     time.Now(),
	}

	feed.Items = make([]*feeds.Item, 0, len(articles))
	for _, article := range articles {
		item := &feeds.Item{
			Title:       article.Title,
			Link:        &feeds.Link{Href: article.SourceURL},
			Id:          fmt.Sprintf("%s/api/v1/news/%s", info.Link, article.ID),
			Description: article.Snippet,
			Author:      &feeds.Author{Name: article.Publisher},
			Created:     article.CreatedAt,
		}

		if image := imageOf(article); image != nil {
			item.Enclosure = &feeds.Enclosure{Url: *image, Type: "image/jpeg", Length: "0"}
		}

		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}
	return rss, nil
}

func imageOf(a models.Article) *string {
	if a.ImageURL != nil {
		return a.ImageURL
	}
	return a.ThumbnailURL
}
