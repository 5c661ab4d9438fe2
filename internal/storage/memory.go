package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Transactions work on a copy of the
// data that replaces the live state only on commit, and are serialized.
type MemoryStore struct {
	mu         sync.Mutex
	data       *memData
	checkpoint *time.Time
	now        func() time.Time
}

type linkKey struct {
	parent uuid.UUID
	child  uuid.UUID
}

type memData struct {
	categories     map[string]int64
	categoryNames  map[int64]string
	nextCategoryID int64
	articles       map[uuid.UUID]models.Article
	bySourceURL    map[string]uuid.UUID
	links          map[linkKey]models.ArticleLink
}

func newMemData() *memData {
	return &memData{
		categories:     make(map[string]int64),
		categoryNames:  make(map[int64]string),
		nextCategoryID: 1,
		articles:       make(map[uuid.UUID]models.Article),
		bySourceURL:    make(map[string]uuid.UUID),
		links:          make(map[linkKey]models.ArticleLink),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		categories:     make(map[string]int64, len(d.categories)),
		categoryNames:  make(map[int64]string, len(d.categoryNames)),
		nextCategoryID: d.nextCategoryID,
		articles:       make(map[uuid.UUID]models.Article, len(d.articles)),
		bySourceURL:    make(map[string]uuid.UUID, len(d.bySourceURL)),
		links:          make(map[linkKey]models.ArticleLink, len(d.links)),
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.categoryNames {
		c.categoryNames[k] = v
	}
	for k, v := range d.articles {
		c.articles[k] = v
	}
	for k, v := range d.bySourceURL {
		c.bySourceURL[k] = v
	}
	for k, v := range d.links {
		c.links[k] = v
	}
	return c
}

func (d *memData) withCategory(a models.Article) models.Article {
	a.Category = models.Category(d.categoryNames[a.CategoryID])
	return a
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: newMemData(),
		now:  time.Now,
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(w ArticleWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w := &memWriter{data: s.data.clone(), now: s.now}
	if err := fn(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.data = w.data
	return nil
}

func (s *MemoryStore) LastCheckpoint(ctx context.Context) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkpoint == nil {
		return time.Time{}, false, nil
	}
	return *s.checkpoint, true, nil
}

func (s *MemoryStore) SaveCheckpoint(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at = at.UTC()
	s.checkpoint = &at
	return nil
}

func (s *MemoryStore) ListArticles(ctx context.Context, filter ArticleFilter) ([]models.Article, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Article{}
	for _, a := range s.data.articles {
		a = s.data.withCategory(a)
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !a.Active {
			continue
		}
		matched = append(matched, a)
	}
	sortNewestFirst(matched)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := min(start+limit, total)

	return matched[start:end], total, nil
}

func (s *MemoryStore) GetArticle(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.data.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	a = s.data.withCategory(a)
	return &a, nil
}

func (s *MemoryStore) SubArticles(ctx context.Context, parentID uuid.UUID) ([]models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	children := []models.Article{}
	for k := range s.data.links {
		if k.parent != parentID {
			continue
		}
		if a, ok := s.data.articles[k.child]; ok {
			children = append(children, s.data.withCategory(a))
		}
	}
	sortNewestFirst(children)
	return children, nil
}

func (s *MemoryStore) SetArticleActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.data.articles[id]
	if !ok {
		return ErrNotFound
	}
	a.Active = active
	s.data.articles[id] = a
	return nil
}

func (s *MemoryStore) DeleteInactiveArticles(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, a := range s.data.articles {
		if a.Active {
			continue
		}
		delete(s.data.articles, id)
		delete(s.data.bySourceURL, a.SourceURL)
		deleted++
	}
	for k := range s.data.links {
		_, parentOK := s.data.articles[k.parent]
		_, childOK := s.data.articles[k.child]
		if !parentOK || !childOK {
			delete(s.data.links, k)
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CountArticles(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.articles), nil
}

func (s *MemoryStore) CountLinks(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.links), nil
}

// Links returns a copy of every stored link.
func (s *MemoryStore) Links() []models.ArticleLink {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := make([]models.ArticleLink, 0, len(s.data.links))
	for _, l := range s.data.links {
		links = append(links, l)
	}
	return links
}

// ArticleBySourceURL is a lookup helper outside of any transaction.
func (s *MemoryStore) ArticleBySourceURL(sourceURL string) (models.Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.data.bySourceURL[sourceURL]
	if !ok {
		return models.Article{}, false
	}
	return s.data.withCategory(s.data.articles[id]), true
}

func sortNewestFirst(articles []models.Article) {
	sort.Slice(articles, func(i, j int) bool {
		if !articles[i].CreatedAt.Equal(articles[j].CreatedAt) {
			return articles[i].CreatedAt.After(articles[j].CreatedAt)
		}
		return articles[i].ID.String() < articles[j].ID.String()
	})
}

type memWriter struct {
	data *memData
	now  func() time.Time
}

func (w *memWriter) EnsureCategory(ctx context.Context, name string) (int64, error) {
	if id, ok := w.data.categories[name]; ok {
		return id, nil
	}
	id := w.data.nextCategoryID
	w.data.nextCategoryID++
	w.data.categories[name] = id
	w.data.categoryNames[id] = name
	return id, nil
}

func (w *memWriter) ArticleIDBySourceURL(ctx context.Context, sourceURL string) (uuid.UUID, bool, error) {
	id, ok := w.data.bySourceURL[sourceURL]
	return id, ok, nil
}

func (w *memWriter) InsertArticle(ctx context.Context, article *models.Article) (uuid.UUID, bool, error) {
	if id, ok := w.data.bySourceURL[article.SourceURL]; ok {
		return id, false, nil
	}
	if _, ok := w.data.categoryNames[article.CategoryID]; !ok {
		return uuid.Nil, false, fmt.Errorf("failed to insert article: unknown category id %d", article.CategoryID)
	}
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}

	article.IngestedAt = w.now().UTC()
	w.data.articles[article.ID] = *article
	w.data.bySourceURL[article.SourceURL] = article.ID
	return article.ID, true, nil
}

func (w *memWriter) MarkHasChildren(ctx context.Context, id uuid.UUID) error {
	a, ok := w.data.articles[id]
	if !ok {
		return fmt.Errorf("failed to mark article %s as parent: %w", id, ErrNotFound)
	}
	a.HasChildren = true
	w.data.articles[id] = a
	return nil
}

func (w *memWriter) LinkArticles(ctx context.Context, parentID, childID uuid.UUID) (bool, error) {
	if parentID == childID {
		return false, ErrSelfLink
	}
	for _, id := range []uuid.UUID{parentID, childID} {
		if _, ok := w.data.articles[id]; !ok {
			return false, fmt.Errorf("failed to link articles: %w", ErrNotFound)
		}
	}

	key := linkKey{parent: parentID, child: childID}
	if _, ok := w.data.links[key]; ok {
		return false, nil
	}
	w.data.links[key] = models.ArticleLink{
		ParentID:  parentID,
		ChildID:   childID,
		CreatedAt: w.now().UTC(),
	}
	return true, nil
}
