package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sitemapServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	pages map[string]string
}

func newSitemapServer(t *testing.T, pages func(base string) map[string]string) *sitemapServer {
	t.Helper()
	s := &sitemapServer{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}

		s.mu.Lock()
		s.hits[key]++
		body, ok := s.pages[key]
		s.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	s.pages = pages(s.URL)
	t.Cleanup(s.Close)
	return s
}

func (s *sitemapServer) hit(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

func urlset(entries ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, e := range entries {
		out += e
	}
	return out + `</urlset>`
}

func urlEntry(loc, lastmod string) string {
	if lastmod == "" {
		return fmt.Sprintf(`<url><loc>%s</loc></url>`, loc)
	}
	return fmt.Sprintf(`<url><loc>%s</loc><lastmod>%s</lastmod></url>`, loc, lastmod)
}

func sitemapConfig(url string) *Config {
	return &Config{
		Name:   "wdtv-archive",
		Type:   AdapterSitemap,
		URL:    url,
		Source: "wdtv.com",
		Settings: ConfigSettings{
			Enabled:  true,
			MaxPages: 10,
			PerPage:  100,
			URLHints: []string{"i-79", "interstate-79"},
		},
	}
}

var sitemapScope = Scope{Cutoff: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)}

func TestSitemapAdapterFetch(t *testing.T) {
	srv := newSitemapServer(t, func(base string) map[string]string {
		return map[string]string{
			"/sitemap-index.xml": `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + base + `/sitemaps/recent.xml</loc><lastmod>2024-05-01T00:00:00Z</lastmod></sitemap>
  <sitemap><loc>` + base + `/sitemaps/old.xml</loc><lastmod>2010-01-01T00:00:00Z</lastmod></sitemap>
  <sitemap><loc>` + base + `/sitemaps/undated.xml</loc></sitemap>
</sitemapindex>`,
			"/sitemaps/recent.xml": urlset(
				urlEntry(base+"/news/i-79-crash-marion/", "2024-04-30T10:00:00Z"),
				urlEntry(base+"/news/weather-update/", "2024-04-30T10:00:00Z"),
				urlEntry(base+"/news/i-79-old-crash/", "2012-01-01T00:00:00Z"),
			),
			"/sitemaps/old.xml":     urlset(urlEntry(base+"/news/i-79-ancient/", "")),
			"/sitemaps/undated.xml": urlset(urlEntry(base+"/news/interstate-79-wreck/", "")),
			"/news/i-79-crash-marion/": `<html><head>
<title>ignored</title>
<meta property="og:title" content="I-79 crash in Marion County">
<meta property="og:description" content="Lanes closed near Fairmont">
<meta property="article:published_time" content="2024-04-30T09:45:00-04:00">
</head><body><article><p>Crews responded to a crash on I-79 near Fairmont on Tuesday morning.</p></article></body></html>`,
			"/news/interstate-79-wreck/": `<html><head><title>Interstate 79 wreck near Clarksburg</title></head>
<body><p>A wreck slowed traffic.</p></body></html>`,
		}
	})

	adapter := NewSitemapAdapter(sitemapConfig(srv.URL+"/sitemap-index.xml"), newTestFetcher(srv.Server, ConfigSettings{}), sitemapScope)
	result, err := adapter.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, srv.hit("/sitemaps/old.xml"))
	assert.Equal(t, 0, srv.hit("/news/weather-update/"))
	assert.Equal(t, 0, srv.hit("/news/i-79-old-crash/"))
	assert.Equal(t, 0, result.Skipped)

	require.Len(t, result.Articles, 2)

	first := result.Articles[0]
	assert.Equal(t, "I-79 crash in Marion County", first.Title)
	assert.Equal(t, srv.URL+"/news/i-79-crash-marion/", first.URL)
	assert.Equal(t, "Lanes closed near Fairmont", first.Summary)
	assert.Equal(t, "wdtv.com", first.Source)
	assert.Equal(t, SourceTypeSitemapArchive, first.SourceType)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2024, 4, 30, 13, 45, 0, 0, time.UTC)))

	second := result.Articles[1]
	assert.Equal(t, "Interstate 79 wreck near Clarksburg", second.Title)
	assert.Nil(t, second.PublishedAt)
}

func TestSitemapAdapterPagedFallback(t *testing.T) {
	srv := newSitemapServer(t, func(base string) map[string]string {
		return map[string]string{
			"/paged?outputType=xml":          urlset(urlEntry(base+"/news/i-79-pileup/", "2023-02-01T00:00:00Z")),
			"/paged?outputType=xml&from=100": urlset(),
			"/paged?outputType=xml&from=300": urlset(),
			"/news/i-79-pileup/":             `<html><head><meta property="og:title" content="I-79 pileup"></head><body></body></html>`,
		}
	})

	c := sitemapConfig(srv.URL + "/missing-index.xml")
	c.Settings.PagedURL = srv.URL + "/paged?outputType=xml"

	adapter := NewSitemapAdapter(c, newTestFetcher(srv.Server, ConfigSettings{}), sitemapScope)
	result, err := adapter.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Articles, 1)
	assert.Equal(t, "I-79 pileup", result.Articles[0].Title)
	require.NotNil(t, result.Articles[0].PublishedAt)

	assert.Equal(t, 1, srv.hit("/paged?outputType=xml&from=200"))
	assert.Equal(t, 1, srv.hit("/paged?outputType=xml&from=300"))
	assert.Equal(t, 0, srv.hit("/paged?outputType=xml&from=400"))
}

func TestSitemapAdapterUnavailable(t *testing.T) {
	srv := newSitemapServer(t, func(string) map[string]string {
		return map[string]string{}
	})

	adapter := NewSitemapAdapter(sitemapConfig(srv.URL+"/sitemap-index.xml"), newTestFetcher(srv.Server, ConfigSettings{}), sitemapScope)
	_, err := adapter.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestSitemapAdapterSkipsBrokenArticles(t *testing.T) {
	srv := newSitemapServer(t, func(base string) map[string]string {
		return map[string]string{
			"/index.xml": urlset(
				urlEntry(base+"/news/i-79-gone/", ""),
				urlEntry(base+"/news/i-79-untitled/", ""),
			),
			"/news/i-79-untitled/": `<html><body></body></html>`,
		}
	})

	adapter := NewSitemapAdapter(sitemapConfig(srv.URL+"/index.xml"), newTestFetcher(srv.Server, ConfigSettings{}), sitemapScope)
	result, err := adapter.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Articles)
	assert.Equal(t, 2, result.Skipped)
}
