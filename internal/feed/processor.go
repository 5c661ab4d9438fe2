package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// CategoryFetcher downloads the raw payload of one category.
type CategoryFetcher interface {
	Fetch(ctx context.Context, category models.Category) ([]byte, error)
}

// ImageResolver picks the final image URL for an item's thumbnails.
type ImageResolver interface {
	ResolveImages(ctx context.Context, images models.Images) *string
}

// Archiver keeps a copy of raw provider payloads.
type Archiver interface {
	Archive(ctx context.Context, category models.Category, payload []byte) error
}

// Processor turns one category into a batch that is ready for storage.
type Processor struct {
	fetcher  CategoryFetcher
	parser   *Parser
	resolver ImageResolver
	archiver Archiver
	log      zerolog.Logger
}

func NewProcessor(fetcher CategoryFetcher, parser *Parser, resolver ImageResolver, log zerolog.Logger) *Processor {
	return &Processor{
		fetcher:  fetcher,
		parser:   parser,
		resolver: resolver,
		log:      log.With().Str("component", "processor").Logger(),
	}
}

// WithArchiver stores every fetched payload through a before parsing.
func (p *Processor) WithArchiver(a Archiver) *Processor {
	p.archiver = a
	return p
}

// Prepare fetches, validates and resolves the images of one category.
func (p *Processor) Prepare(ctx context.Context, category models.Category) (*models.ArticleBatch, error) {
	start := time.Now()
	log := p.log.With().Str("category", category.String()).Logger()

	raw, err := p.fetcher.Fetch(ctx, category)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching category")
		return nil, err
	}

	log.Debug().
		Int("bytes", len(raw)).
		Dur("fetch_duration", time.Since(start)).
		Msg("Fetched category payload")

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, category, raw); err != nil {
			log.Warn().Err(err).Msg("Failed to archive raw payload")
		}
	}

	batch, err := p.parser.Parse(raw)
	if err != nil {
		log.Error().Err(err).Msg("Invalid category payload")
		return nil, fmt.Errorf("category %s: %w", category, err)
	}

	for i := range batch.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := &batch.Items[i]
		item.ResolvedImage = p.resolver.ResolveImages(ctx, item.Images)
		for j := range item.SubItems {
			sub := &item.SubItems[j]
			sub.ResolvedImage = p.resolver.ResolveImages(ctx, sub.Images)
		}
	}

	subItems := lo.SumBy(batch.Items, func(item models.ArticleItem) int { return len(item.SubItems) })
	resolved := lo.CountBy(batch.Items, func(item models.ArticleItem) bool { return item.ResolvedImage != nil })

	log.Info().
		Int("items", len(batch.Items)).
		Int("sub_items", subItems).
		Int("resolved_images", resolved).
		Dur("duration", time.Since(start)).
		Msg("Prepared category batch")

	return batch, nil
}
