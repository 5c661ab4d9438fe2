package ingest

import (
	"context"
	"sync"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/bilgisen/newswire/internal/storage"
	"github.com/google/uuid"
)

func item(url string, subs ...models.ArticleItem) models.ArticleItem {
	return models.ArticleItem{
		Timestamp:   models.EpochMillis(1717243200000),
		Title:       "title of " + url,
		Snippet:     "snippet",
		SourceURL:   url,
		Publisher:   "Example",
		HasSubItems: len(subs) > 0,
		SubItems:    subs,
	}
}

func batchOf(items ...models.ArticleItem) *models.ArticleBatch {
	return &models.ArticleBatch{Status: "success", Items: items}
}

// fakePreparer serves fixed batches per category and counts calls.
type fakePreparer struct {
	mu      sync.Mutex
	batches map[models.Category]*models.ArticleBatch
	errs    map[models.Category]error
	calls   map[models.Category]int

	block   chan struct{}
	entered chan struct{}
}

func newFakePreparer() *fakePreparer {
	return &fakePreparer{
		batches: make(map[models.Category]*models.ArticleBatch),
		errs:    make(map[models.Category]error),
		calls:   make(map[models.Category]int),
	}
}

func (f *fakePreparer) set(category models.Category, batch *models.ArticleBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[category] = batch
}

func (f *fakePreparer) fail(category models.Category, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[category] = err
}

func (f *fakePreparer) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakePreparer) Prepare(ctx context.Context, category models.Category) (*models.ArticleBatch, error) {
	f.mu.Lock()
	f.calls[category]++
	block, entered := f.block, f.entered
	batch, err := f.batches[category], f.errs[category]
	f.mu.Unlock()

	if block != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-block
	}

	if err != nil {
		return nil, err
	}
	if batch == nil {
		return batchOf(), nil
	}
	return batch, nil
}

type countingPacer struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return ctx.Err()
}

// failingStore makes InsertArticle fail for one source URL.
type failingStore struct {
	*storage.MemoryStore
	failURL string
	err     error
}

func (s *failingStore) WithTx(ctx context.Context, fn func(w storage.ArticleWriter) error) error {
	return s.MemoryStore.WithTx(ctx, func(w storage.ArticleWriter) error {
		return fn(&failingWriter{ArticleWriter: w, failURL: s.failURL, err: s.err})
	})
}

type failingWriter struct {
	storage.ArticleWriter
	failURL string
	err     error
}

func (w *failingWriter) InsertArticle(ctx context.Context, article *models.Article) (uuid.UUID, bool, error) {
	if article.SourceURL == w.failURL {
		return uuid.Nil, false, w.err
	}
	return w.ArticleWriter.InsertArticle(ctx, article)
}
