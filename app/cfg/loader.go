package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Inputs
	SourcesDir    string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	OverridesFile string `long:"overrides" env:"OVERRIDES_FILE" default:"./data/manual_overrides.json" description:"Curated override document"`

	// Outputs
	OutputPaths []string `long:"output" env:"OUTPUT_PATHS" env-delim:"," default:"data/incidents.json" default:"docs/incidents.json" description:"Artifact path (repeatable)"`
	MetricsFile string   `long:"metrics-file" env:"METRICS_FILE" description:"Write run metrics in Prometheus text format to this file"`

	// Run behaviour
	WorkerCount   int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of concurrent source workers"`
	LookbackYears int    `long:"lookback-years" env:"LOOKBACK_YEARS" default:"6" description:"Historical window in years"`
	RetryDelay    int    `long:"retry-delay" env:"RETRY_DELAY" default:"2" description:"Base delay in seconds between source retries"`
	UserAgent     string `long:"user-agent" env:"USER_AGENT" default:"i79-safety-monitor/1.0 (automated data pipeline)" description:"User agent string for HTTP requests"`

	// Read-only artifact server
	Serve bool   `long:"serve" env:"SERVE" description:"Serve the published artifact over HTTP after the run"`
	Port  string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses command-line arguments and environment variables. It returns
// nil, nil when help was requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourcesDir:    raw.SourcesDir,
		OverridesFile: raw.OverridesFile,
		OutputPaths:   raw.OutputPaths,
		MetricsFile:   raw.MetricsFile,
		WorkerCount:   raw.WorkerCount,
		LookbackYears: raw.LookbackYears,
		RetryDelay:    time.Duration(raw.RetryDelay) * time.Second,
		UserAgent:     raw.UserAgent,
		Serve:         raw.Serve,
		Port:          raw.Port,
		LogFormat:     raw.LogFormat,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if len(cfg.OutputPaths) == 0 {
		return fmt.Errorf("at least one output path is required")
	}

	positive := map[string]int{
		"worker count":   cfg.WorkerCount,
		"lookback years": cfg.LookbackYears,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be non-negative")
	}

	return nil
}
