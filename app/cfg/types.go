package cfg

import "time"

type Cfg struct {
	// Inputs
	SourcesDir    string
	OverridesFile string

	// Outputs
	OutputPaths []string
	MetricsFile string

	// Run behaviour
	WorkerCount   int
	LookbackYears int
	RetryDelay    time.Duration
	UserAgent     string

	// Read-only artifact server
	Serve bool
	Port  string

	LogFormat string
	Debug     bool
	Version   string
}

// Lookback returns the historical window as a duration.
func (c *Cfg) Lookback() time.Duration {
	return time.Duration(c.LookbackYears) * 365 * 24 * time.Hour
}
