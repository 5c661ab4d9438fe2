package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bilgisen/newswire/internal/ingest"
	"github.com/bilgisen/newswire/internal/middleware"
	"github.com/bilgisen/newswire/internal/models"
	"github.com/bilgisen/newswire/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "admin-key"

type stubIngester struct {
	result ingest.Result
	err    error
	calls  int
}

func (s *stubIngester) Run(ctx context.Context) (ingest.Result, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubIngester) Status() ingest.Status {
	return ingest.Status{State: ingest.StateIdle}
}

type fixture struct {
	app      *fiber.App
	store    *storage.MemoryStore
	ingester *stubIngester
	ids      map[string]uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	ids := map[string]uuid.UUID{}
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	err := store.WithTx(context.Background(), func(w storage.ArticleWriter) error {
		world, err := w.EnsureCategory(context.Background(), "world")
		require.NoError(t, err)
		sport, err := w.EnsureCategory(context.Background(), "sport")
		require.NoError(t, err)

		add := func(name string, cat int64, offset time.Duration, hasChildren bool) {
			a := models.Article{
				ID:          uuid.New(),
				CreatedAt:   base.Add(offset),
				Title:       "Title " + name,
				Snippet:     "Snippet " + name,
				SourceURL:   "https://news.example.com/" + name,
				Publisher:   "Example",
				CategoryID:  cat,
				Active:      true,
				HasChildren: hasChildren,
			}
			id, _, err := w.InsertArticle(context.Background(), &a)
			require.NoError(t, err)
			ids[name] = id
		}
		add("parent", world, 2*time.Hour, true)
		add("child", world, time.Hour, false)
		add("match", sport, 0, false)

		_, err = w.LinkArticles(context.Background(), ids["parent"], ids["child"])
		return err
	})
	require.NoError(t, err)

	ingester := &stubIngester{}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	h := NewHandlers(store, ingester, FeedInfo{Title: "newswire", Link: "http://localhost:8080"}, zerolog.Nop())
	SetupRoutes(app, h, adminKey)

	return &fixture{app: app, store: store, ingester: ingester, ids: ids}
}

func (f *fixture) do(t *testing.T, method, path, body string, admin bool) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-API-Key", adminKey)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out["raw"] = string(raw)
	}
	return resp, out
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/v1/health", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestGetNews(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/news?page_size=2", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "Title parent", items[0].(map[string]any)["title"])

	resp, body = f.do(t, http.MethodGet, "/api/v1/news?category=sport", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/news?category=weather", "", false)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetNewsByID(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/news/"+f.ids["parent"].String(), "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	subs := body["sub_news"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://news.example.com/child", subs[0].(map[string]any)["source_url"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/news/"+uuid.NewString(), "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/news/not-a-uuid", "", false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRSS(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/news/rss", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/rss+xml")
	rss := body["raw"].(string)
	assert.Contains(t, rss, "<title>Title parent</title>")
	assert.Contains(t, rss, "https://news.example.com/match")
}

func TestAdminRequiresKey(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/admin/ingest", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.ingester.calls)
}

func TestTriggerIngest(t *testing.T) {
	tests := []struct {
		name       string
		result     ingest.Result
		err        error
		wantStatus int
		wantState  string
	}{
		{"completed", ingest.Result{Created: 3}, nil, http.StatusOK, "completed"},
		{"skipped", ingest.Result{Skipped: true}, nil, http.StatusOK, "skipped"},
		{"cooldown", ingest.Result{}, &ingest.CooldownError{DaysRemaining: 7}, http.StatusTooManyRequests, "rejected"},
		{"category failure", ingest.Result{}, errors.Join(&ingest.CategoryError{
			Category: models.CategoryScience,
			Kind:     ingest.KindValidationFailed,
			Err:      errors.New("bad payload"),
		}), http.StatusBadGateway, "failed"},
		{"lock failure", ingest.Result{}, errors.New("redis down"), http.StatusInternalServerError, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ingester.result = tt.result
			f.ingester.err = tt.err

			resp, body := f.do(t, http.MethodPost, "/api/v1/admin/ingest", "", true)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantState, body["status"])
			if tt.name == "cooldown" {
				assert.EqualValues(t, 7, body["days_remaining"])
			}
		})
	}
}

func TestIngestStatus(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/admin/ingest/status", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, body["articles"])
	assert.EqualValues(t, 1, body["links"])
	assert.Equal(t, "idle", body["ingestion"].(map[string]any)["state"])
}

func TestSetActiveAndDeleteInactive(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/admin/news/" + f.ids["parent"].String()

	resp, _ := f.do(t, http.MethodPatch, path, `{"active":false}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/news/"+f.ids["parent"].String(), "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "inactive news is hidden")

	resp, _ = f.do(t, http.MethodPatch, path, `{}`, true)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPatch, "/api/v1/admin/news/"+uuid.NewString(), `{"active":true}`, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := f.do(t, http.MethodDelete, "/api/v1/admin/news/inactive", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["deleted"])

	links, err := f.store.CountLinks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, links)
}

func TestUnknownEndpoint(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/v1/nope", "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
