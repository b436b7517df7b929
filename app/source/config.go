package source

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultMaxRetries matches tasks.DefaultMaxRetries.
const defaultMaxRetries = 2

type AdapterType string

const (
	AdapterFeed            AdapterType = "feed"
	AdapterPaginatedAPI    AdapterType = "paginated_api"
	AdapterSitemap         AdapterType = "sitemap"
	AdapterOfficialListing AdapterType = "official_listing"
)

// SourceType maps the endpoint kind to the provenance recorded on its
// articles.
func (t AdapterType) SourceType() SourceType {
	switch t {
	case AdapterFeed:
		return SourceTypeFeed
	case AdapterPaginatedAPI:
		return SourceTypePaginatedArchive
	case AdapterSitemap:
		return SourceTypeSitemapArchive
	case AdapterOfficialListing:
		return SourceTypeOfficial
	default:
		return ""
	}
}

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Type     AdapterType    `yaml:"type"`
	URL      string         `yaml:"url"`
	Source   string         `yaml:"source"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled       bool     `yaml:"enabled"`
	Timeout       int      `yaml:"timeout"`  // seconds per request
	Deadline      int      `yaml:"deadline"` // seconds for the whole adapter
	MaxRequests   int      `yaml:"max_requests"`
	MaxPages      int      `yaml:"max_pages"`
	PerPage       int      `yaml:"per_page"`
	MaxRetries    int      `yaml:"max_retries"`
	RateLimit     float64  `yaml:"rate_limit"` // requests per second
	SearchTerms   []string `yaml:"search_terms"`
	URLHints      []string `yaml:"url_hints"`
	PagedURL      string   `yaml:"paged_url"`
	RespectRobots bool     `yaml:"respect_robots"`
}

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return fmt.Errorf("sources directory %s does not exist", cc.sourcesDir)
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", sourceName, "type", config.Type, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := filepath.Join(cc.sourcesDir, sourceName+".yml")
	sourceConfig, err := parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Name = sourceName

	if err := validateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Name] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return sourceConfig, nil
}

// GetEnabledConfigs returns the enabled sources sorted by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabled := make([]*Config, 0, len(cc.cache))
	for _, name := range slices.Sorted(maps.Keys(cc.cache)) {
		if c := cc.cache[name]; c.Settings.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// max_retries: 0 disables retries, so its default is set before decoding
	// instead of being inferred from the zero value.
	sourceConfig := Config{Settings: ConfigSettings{MaxRetries: defaultMaxRetries}}
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	s := &sourceConfig.Settings
	if s.Timeout == 0 {
		s.Timeout = 20
	}
	if s.Deadline == 0 {
		s.Deadline = 300
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 200
	}
	if s.MaxPages == 0 {
		s.MaxPages = 14
	}
	if s.PerPage == 0 {
		s.PerPage = 100
	}
	if s.RateLimit == 0 {
		s.RateLimit = 2
	}
	if sourceConfig.Source == "" {
		sourceConfig.Source = hostLabel(sourceConfig.URL)
	}

	return &sourceConfig, nil
}

func validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	requiredFields := map[string]string{
		"source name": sourceConfig.Name,
		"source URL":  sourceConfig.URL,
		"source type": string(sourceConfig.Type),
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if sourceConfig.Type.SourceType() == "" {
		return fmt.Errorf("unknown source type: %s", sourceConfig.Type)
	}

	if !isHTTPURL(sourceConfig.URL) {
		return fmt.Errorf("source URL must be an absolute http(s) URL: %s", sourceConfig.URL)
	}

	s := sourceConfig.Settings
	nonNegativeFields := map[string]int{
		"timeout":      s.Timeout,
		"deadline":     s.Deadline,
		"max requests": s.MaxRequests,
		"max pages":    s.MaxPages,
		"per page":     s.PerPage,
		"max retries":  s.MaxRetries,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if s.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative")
	}
	if s.PerPage > 100 {
		return fmt.Errorf("per page must not exceed 100")
	}
	if sourceConfig.Type == AdapterPaginatedAPI && len(s.SearchTerms) == 0 {
		return fmt.Errorf("paginated_api source requires at least one search term")
	}
	if s.PagedURL != "" && !isHTTPURL(s.PagedURL) {
		return fmt.Errorf("paged URL must be an absolute http(s) URL: %s", s.PagedURL)
	}

	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// hostLabel is the URL host without a leading www.
func hostLabel(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
