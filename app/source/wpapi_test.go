package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wpPage = `[
  {"id": 11, "date_gmt": "2023-04-01T12:00:00", "link": "https://www.wboy.com/news/i-79-crash/",
   "title": {"rendered": "I-79 crash in Marion County"},
   "excerpt": {"rendered": "<p>Crash closes lanes &#8211; northbound</p>"},
   "content": {"rendered": "<p>Full story.</p>"}},
  {"id": 12, "date_gmt": "2023-04-02T08:00:00", "link": "https://www.wboy.com/news/i-79-wreck/",
   "title": {"rendered": "I-79 wreck"},
   "excerpt": {"rendered": ""},
   "content": {"rendered": "<p>Only content here.</p>"}},
  "not an object",
  {"id": "13", "link": "https://www.wboy.com/news/string-id/", "title": {"rendered": "String id"}},
  {"id": 14.5, "link": "https://www.wboy.com/news/float-id/", "title": {"rendered": "Float id"}},
  {"id": 15, "link": "https://www.wboy.com/news/no-title/", "title": {"rendered": ""}},
  {"id": 16, "title": {"rendered": "No link"}}
]`

func apiConfig(url string, terms ...string) *Config {
	return &Config{
		Name:   "wboy-archive",
		Type:   AdapterPaginatedAPI,
		URL:    url,
		Source: "wboy.com",
		Settings: ConfigSettings{
			Enabled:     true,
			MaxPages:    5,
			PerPage:     100,
			SearchTerms: terms,
		},
	}
}

func TestPaginatedAPIAdapterFetch(t *testing.T) {
	var mu sync.Mutex
	var queries []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()

		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "2019-01-01T00:00:00", q.Get("after"))
		assert.Equal(t, wpFields, q.Get("_fields"))

		switch q.Get("page") {
		case "1":
			_, _ = w.Write([]byte(wpPage))
		case "2":
			if q.Get("search") == "i-79 crash" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			w.WriteHeader(http.StatusBadRequest)
		default:
			t.Errorf("unexpected page %s", q.Get("page"))
		}
	}))
	defer srv.Close()

	scope := Scope{Cutoff: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)}
	adapter := NewPaginatedAPIAdapter(apiConfig(srv.URL+"/wp-json/wp/v2/posts", "i-79 crash", "i-79 accident"), newTestFetcher(srv, ConfigSettings{}), scope)

	result, err := adapter.Fetch(context.Background())
	require.NoError(t, err)

	// Both terms return the same page; posts are kept once.
	require.Len(t, result.Articles, 2)
	assert.Equal(t, 10, result.Skipped)
	assert.Len(t, queries, 4)
	assert.Equal(t, 4, result.Requests)

	first := result.Articles[0]
	assert.Equal(t, "I-79 crash in Marion County", first.Title)
	assert.Equal(t, "Crash closes lanes – northbound", first.Summary)
	assert.Equal(t, "Full story.", first.Body)
	assert.Equal(t, "wboy.com", first.Source)
	assert.Equal(t, SourceTypePaginatedArchive, first.SourceType)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, "Only content here.", result.Articles[1].Summary)
}

func TestPaginatedAPIAdapterStopsAtMaxPages(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		_, _ = w.Write([]byte(wpPage))
	}))
	defer srv.Close()

	c := apiConfig(srv.URL+"/posts", "i-79")
	c.Settings.MaxPages = 3
	adapter := NewPaginatedAPIAdapter(c, newTestFetcher(srv, ConfigSettings{}), Scope{})

	result, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Len(t, result.Articles, 2)
}

func TestPaginatedAPIAdapterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(wpPage))
	}))
	defer srv.Close()

	adapter := NewPaginatedAPIAdapter(apiConfig(srv.URL+"/posts", "a", "b"), newTestFetcher(srv, ConfigSettings{MaxRequests: 2}), Scope{})

	result, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Requests)
	assert.Len(t, result.Articles, 2)
}

func TestPaginatedAPIAdapterAllRequestsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := apiConfig(srv.URL+"/posts", "i-79")
	c.Settings.MaxPages = 2
	adapter := NewPaginatedAPIAdapter(c, newTestFetcher(srv, ConfigSettings{}), Scope{})

	_, err := adapter.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestPaginatedAPIAdapterRetryWithSpentBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := apiConfig(srv.URL+"/posts", "i-79")
	c.Settings.MaxPages = 2
	adapter := NewPaginatedAPIAdapter(c, newTestFetcher(srv, ConfigSettings{MaxRequests: 2}), Scope{})

	_, err := adapter.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	// The second attempt cannot send anything and must still fail.
	result, err := adapter.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Empty(t, result.Articles)
	assert.Equal(t, 2, result.Requests)
}
