package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrProviderUnavailable is returned when the provider cannot be reached or
// answers with a non-200 status.
var ErrProviderUnavailable = errors.New("news provider unavailable")

// FetcherConfig describes how to reach the news provider.
type FetcherConfig struct {
	BaseURL    string
	APIKey     string
	APIHost    string
	LangRegion string
	Timeout    time.Duration
	RetryCount int
}

// Fetcher downloads the raw article payload of one category.
type Fetcher struct {
	client     *resty.Client
	langRegion string
}

func NewFetcher(cfg FetcherConfig, log zerolog.Logger) *Fetcher {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("Accept", "application/json").
		SetLogger(newRestyLogger(log))

	if cfg.APIKey != "" {
		client.SetHeader("X-RapidAPI-Key", cfg.APIKey)
	}
	if cfg.APIHost != "" {
		client.SetHeader("X-RapidAPI-Host", cfg.APIHost)
	}

	return &Fetcher{
		client:     client,
		langRegion: cfg.LangRegion,
	}
}

// Fetch retrieves the raw payload for category. Transport errors are retried
// by the client; a non-200 answer is returned immediately.
func (f *Fetcher) Fetch(ctx context.Context, category models.Category) ([]byte, error) {
	req := f.client.R().SetContext(ctx)
	if f.langRegion != "" {
		req.SetQueryParam("lr", f.langRegion)
	}

	resp, err := req.Get("/" + category.String())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %v", ErrProviderUnavailable, category, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d for %s", ErrProviderUnavailable, resp.StatusCode(), category)
	}

	return resp.Body(), nil
}
