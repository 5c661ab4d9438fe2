package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bilgisen/newswire/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ResolutionCache remembers earlier redirect resolutions.
type ResolutionCache interface {
	Resolution(ctx context.Context, rawURL string) (string, bool, error)
	StoreResolution(ctx context.Context, rawURL, resolved string, ttl time.Duration) error
}

// Resolver follows thumbnail redirects to the final image URL. It never
// fails: anything that goes wrong yields nil.
type Resolver struct {
	client   *resty.Client
	cache    ResolutionCache
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewResolver(maxHops int, timeout time.Duration, log zerolog.Logger) *Resolver {
	log = log.With().Str("component", "resolver").Logger()

	client := resty.New().
		SetTimeout(timeout).
		SetLogger(newRestyLogger(log)).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if len(via) > maxHops {
				return fmt.Errorf("stopped after %d redirects", maxHops)
			}
			return nil
		}))

	return &Resolver{
		client: client,
		log:    log,
	}
}

// WithCache makes the resolver consult and fill cache.
func (r *Resolver) WithCache(cache ResolutionCache, ttl time.Duration) *Resolver {
	r.cache = cache
	r.cacheTTL = ttl
	return r
}

// Resolve returns the URL raw finally redirects to, or nil.
func (r *Resolver) Resolve(ctx context.Context, raw *string) *string {
	if raw == nil {
		return nil
	}
	target := strings.TrimSpace(*raw)
	if !isAbsoluteHTTP(target) {
		return nil
	}

	if r.cache != nil {
		cached, found, err := r.cache.Resolution(ctx, target)
		if err != nil {
			r.log.Warn().Err(err).Str("url", target).Msg("Resolution cache lookup failed")
		} else if found {
			return &cached
		}
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		r.log.Warn().Err(err).Str("url", target).Msg("Failed to resolve redirect")
		return nil
	}
	if body := resp.RawBody(); body != nil {
		body.Close()
	}

	if resp.RawResponse == nil || resp.RawResponse.Request == nil || resp.RawResponse.Request.URL == nil {
		return nil
	}
	final := strings.TrimSpace(resp.RawResponse.Request.URL.String())
	if final == "" {
		return nil
	}

	if r.cache != nil {
		if err := r.cache.StoreResolution(ctx, target, final, r.cacheTTL); err != nil {
			r.log.Warn().Err(err).Str("url", target).Msg("Failed to cache resolution")
		}
	}

	return &final
}

// ResolveImages resolves the primary thumbnail and falls back to the proxied one.
func (r *Resolver) ResolveImages(ctx context.Context, images models.Images) *string {
	if resolved := r.Resolve(ctx, images.Thumbnail); resolved != nil {
		return resolved
	}
	return r.Resolve(ctx, images.ThumbnailProxied)
}

func isAbsoluteHTTP(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
