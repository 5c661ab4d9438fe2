package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ArticleBatch is the provider response for one category.
type ArticleBatch struct {
	Status string        `json:"status" validate:"required"`
	Items  []ArticleItem `json:"items" validate:"required,dive"`
}

// ArticleItem is one provider article. Sub-items are only allowed one level deep.
type ArticleItem struct {
	Timestamp   EpochMillis   `json:"timestamp" validate:"required"`
	Title       string        `json:"title" validate:"required"`
	Snippet     string        `json:"snippet"`
	Images      Images        `json:"images"`
	SourceURL   string        `json:"newsUrl" validate:"required,url"`
	Publisher   string        `json:"publisher" validate:"required"`
	HasSubItems bool          `json:"hasSubnews"`
	SubItems    []ArticleItem `json:"subnews,omitempty" validate:"omitempty,dive"`

	// ResolvedImage is filled in by the redirect resolver before storage.
	ResolvedImage *string `json:"-"`
}

// Images holds the candidate thumbnail URLs of an item.
type Images struct {
	Thumbnail        *string `json:"thumbnail,omitempty"`
	ThumbnailProxied *string `json:"thumbnailProxied,omitempty"`
}

// Primary returns the thumbnail URL as given by the provider, preferring the
// direct one over the proxied one.
func (i Images) Primary() *string {
	for _, candidate := range []*string{i.Thumbnail, i.ThumbnailProxied} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			return candidate
		}
	}
	return nil
}

// EpochMillis is a provider timestamp in milliseconds since the Unix epoch.
// The provider sends it either as a JSON number or as a numeric string.
type EpochMillis int64

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch milliseconds %q: %w", data, err)
	}
	*e = EpochMillis(ms)
	return nil
}

// Time converts to a UTC time truncated to whole seconds.
func (e EpochMillis) Time() time.Time {
	return time.Unix(int64(e)/1000, 0).UTC()
}
