package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	payload []byte
	err     error
}

func (s stubFetcher) Fetch(ctx context.Context, category models.Category) ([]byte, error) {
	return s.payload, s.err
}

type prefixResolver struct{}

func (prefixResolver) ResolveImages(ctx context.Context, images models.Images) *string {
	if p := images.Primary(); p != nil {
		resolved := "https://cdn.example.com/" + *p
		return &resolved
	}
	return nil
}

type recordingArchiver struct {
	categories []models.Category
	err        error
}

func (a *recordingArchiver) Archive(ctx context.Context, category models.Category, payload []byte) error {
	a.categories = append(a.categories, category)
	return a.err
}

const processorPayload = `{"status":"success","items":[{
	"timestamp":1717243200000,"title":"Parent","newsUrl":"https://news.example.com/p","publisher":"P",
	"images":{"thumbnail":"p.jpg"},"hasSubnews":true,
	"subnews":[{"timestamp":1717243200000,"title":"Child","newsUrl":"https://news.example.com/c","publisher":"C",
		"images":{"thumbnailProxied":"c.jpg"}}]}]}`

func TestProcessor_Prepare(t *testing.T) {
	archiver := &recordingArchiver{err: errors.New("bucket gone")}
	p := NewProcessor(stubFetcher{payload: []byte(processorPayload)}, NewParser(), prefixResolver{}, zerolog.Nop()).
		WithArchiver(archiver)

	batch, err := p.Prepare(context.Background(), models.CategoryHealth)

	require.NoError(t, err, "archive failures are not fatal")
	assert.Equal(t, []models.Category{models.CategoryHealth}, archiver.categories)
	require.Len(t, batch.Items, 1)
	require.NotNil(t, batch.Items[0].ResolvedImage)
	assert.Equal(t, "https://cdn.example.com/p.jpg", *batch.Items[0].ResolvedImage)
	require.NotNil(t, batch.Items[0].SubItems[0].ResolvedImage)
	assert.Equal(t, "https://cdn.example.com/c.jpg", *batch.Items[0].SubItems[0].ResolvedImage)
}

func TestProcessor_PrepareErrors(t *testing.T) {
	p := NewProcessor(stubFetcher{err: ErrProviderUnavailable}, NewParser(), prefixResolver{}, zerolog.Nop())
	_, err := p.Prepare(context.Background(), models.CategoryWorld)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	p = NewProcessor(stubFetcher{payload: []byte(`{"status":"ok"}`)}, NewParser(), prefixResolver{}, zerolog.Nop())
	_, err = p.Prepare(context.Background(), models.CategoryWorld)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
