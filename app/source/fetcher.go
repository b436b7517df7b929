package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

var (
	ErrBudgetExhausted = errors.New("request budget exhausted")
	ErrDisallowed      = errors.New("disallowed by robots.txt")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s (%s)", e.Code, http.StatusText(e.Code), e.URL)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Transport is shared by every adapter of a run: one HTTP client, one
// response cache, one rate limiter and one robots.txt record per host.
type Transport struct {
	httpClient *http.Client
	userAgent  string
	cache      *gocache.Cache

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	robots   map[string]*robotstxt.RobotsData
}

func NewTransport(httpClient *http.Client, userAgent string) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Transport{
		httpClient: httpClient,
		userAgent:  userAgent,
		cache:      gocache.New(gocache.NoExpiration, 0),
		limiters:   make(map[string]*rate.Limiter),
		robots:     make(map[string]*robotstxt.RobotsData),
	}
}

// Fetcher is the per-adapter view of a Transport. It enforces the
// adapter's request budget and per-request timeout.
type Fetcher struct {
	transport     *Transport
	timeout       time.Duration
	maxRequests   int
	rateLimit     float64
	respectRobots bool

	mu       sync.Mutex
	requests int
}

func (t *Transport) Fetcher(settings ConfigSettings) *Fetcher {
	return &Fetcher{
		transport:     t,
		timeout:       time.Duration(settings.Timeout) * time.Second,
		maxRequests:   settings.MaxRequests,
		rateLimit:     settings.RateLimit,
		respectRobots: settings.RespectRobots,
	}
}

// Requests reports how many network requests counted against the budget.
func (f *Fetcher) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// Get returns the body of rawURL. A URL already fetched during the run is
// served from the cache without touching the budget.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if cached, ok := f.transport.cache.Get(rawURL); ok {
		return cached.([]byte), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if f.respectRobots && !f.transport.allowed(ctx, u) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}

	if err := f.spend(); err != nil {
		return nil, err
	}

	if err := f.transport.limiter(u.Host, f.rateLimit).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	data, err := f.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	f.transport.cache.SetDefault(rawURL, data)
	return data, nil
}

func (f *Fetcher) spend() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxRequests > 0 && f.requests >= f.maxRequests {
		return ErrBudgetExhausted
	}
	f.requests++
	return nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.transport.userAgent)

	resp, err := f.transport.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (t *Transport) limiter(host string, rps float64) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters[host]; ok {
		return l
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	l := rate.NewLimiter(limit, 1)
	t.limiters[host] = l
	return l
}

// allowed consults the host's robots.txt. An unreachable robots.txt allows
// everything.
func (t *Transport) allowed(ctx context.Context, u *url.URL) bool {
	t.mu.Lock()
	data, ok := t.robots[u.Host]
	t.mu.Unlock()

	if !ok {
		data = t.fetchRobots(ctx, u)
		t.mu.Lock()
		t.robots[u.Host] = data
		t.mu.Unlock()
	}

	if data == nil {
		return true
	}
	return data.TestAgent(u.EscapedPath(), agentToken(t.userAgent))
}

func (t *Transport) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		slog.Debug("robots.txt unavailable, allowing", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		slog.Debug("Failed to parse robots.txt, allowing", "url", robotsURL, "error", err)
		return nil
	}
	return data
}

// agentToken is the product name of a User-Agent, as matched by robots.txt
// groups.
func agentToken(userAgent string) string {
	fields := strings.Fields(userAgent)
	if len(fields) == 0 {
		return userAgent
	}
	return strings.SplitN(fields[0], "/", 2)[0]
}
