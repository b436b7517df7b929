package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lysyi3m/i79-incidents/app/artifact"
	"github.com/lysyi3m/i79-incidents/app/incident"
	"github.com/lysyi3m/i79-incidents/app/metrics"
	"github.com/lysyi3m/i79-incidents/app/overrides"
	"github.com/lysyi3m/i79-incidents/app/source"
	"github.com/lysyi3m/i79-incidents/app/tasks"
)

// Options wires one pipeline run. Overrides must already be loaded and
// validated so a malformed document aborts before any fetch.
type Options struct {
	Configs     []*source.Config
	Overrides   *overrides.Document
	Transport   *source.Transport
	Runner      tasks.Runner
	Clock       clockwork.Clock
	Lookback    time.Duration
	OutputPaths []string
	Metrics     *metrics.Metrics
	Lexicon     *incident.Lexicon
}

// Report describes what a run did.
type Report struct {
	Sources        int
	FailedSources  []string
	Articles       int
	Skipped        int
	Rejected       map[string]int
	Warnings       []overrides.Warning
	WindowDropped  int
	Document       artifact.Document
	PublishedPaths []string
}

type Pipeline struct {
	opts      Options
	lexicon   incident.Lexicon
	filter    *incident.Filter
	builder   *incident.Builder
	merger    *overrides.Merger
	window    incident.Window
	transport *source.Transport
}

func NewPipeline(opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Runner == nil {
		opts.Runner = tasks.NewPool(1, 0, opts.Clock, Retryable)
	}
	if opts.Transport == nil {
		opts.Transport = source.NewTransport(nil, "")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	lex := incident.DefaultLexicon()
	if opts.Lexicon != nil {
		lex = *opts.Lexicon
	}
	extractor := incident.NewExtractor(lex)

	return &Pipeline{
		opts:      opts,
		lexicon:   lex,
		filter:    incident.NewFilter(lex),
		builder:   incident.NewBuilder(extractor),
		merger:    overrides.NewMerger(extractor),
		window:    incident.NewWindow(opts.Clock, opts.Lookback),
		transport: opts.Transport,
	}
}

// Retryable reports whether a task error is worth another attempt. Only
// whole-source failures are retried.
func Retryable(err error) bool {
	return errors.Is(err, source.ErrSourceUnavailable)
}

// Run fetches every source, waits for all of them, then runs the
// deterministic downstream stages and publishes the artifact.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := p.opts.Clock.Now()
	m := p.opts.Metrics

	results, failed := p.fetch(ctx)

	report := &Report{
		Sources:       len(p.opts.Configs),
		FailedSources: failed,
	}

	var articles []source.RawArticle
	for _, result := range results {
		articles = append(articles, result.Articles...)
		report.Skipped += result.Skipped

		m.ArticlesFetched.WithLabelValues(result.Source).Add(float64(len(result.Articles)))
		m.ItemsSkipped.WithLabelValues(result.Source).Add(float64(result.Skipped))
		m.SourceRequests.WithLabelValues(result.Source).Add(float64(result.Requests))
	}
	report.Articles = len(articles)

	kept, rejected := p.filter.Run(articles)
	report.Rejected = rejected
	for reason, n := range rejected {
		m.FilterRejections.WithLabelValues(reason).Add(float64(n))
	}
	slog.Info("Articles filtered", "total", len(articles), "kept", len(kept), "rejected", len(articles)-len(kept))

	// Every copy is windowed before dedup.
	fresh, droppedBuilt := p.window.Keep(p.builder.RunAll(kept))
	deduped := incident.Dedup(fresh)

	merged, warnings := p.merger.Apply(deduped, p.opts.Overrides)
	report.Warnings = warnings
	for _, w := range warnings {
		slog.Warn("Override references unknown incident", "id", w.ID)
	}
	m.OverrideWarnings.Add(float64(len(warnings)))

	// Manual incidents and patched timestamps are checked again.
	inWindow, droppedMerged := p.window.Keep(merged)
	dropped := droppedBuilt + droppedMerged
	report.WindowDropped = dropped
	m.WindowDropped.Add(float64(dropped))

	doc := artifact.Build(inWindow, p.opts.Clock.Now())
	report.Document = doc

	if err := artifact.WriteAll(p.opts.OutputPaths, doc); err != nil {
		return report, fmt.Errorf("failed to publish artifact: %w", err)
	}
	report.PublishedPaths = slices.Clone(p.opts.OutputPaths)

	m.IncidentsPublished.Set(float64(doc.Summary.IncidentCount))
	m.RunDuration.Set(p.opts.Clock.Since(started).Seconds())
	m.LastSuccess.Set(float64(p.opts.Clock.Now().Unix()))

	slog.Info("Artifact published",
		"paths", p.opts.OutputPaths,
		"incidents", doc.Summary.IncidentCount,
		"suspected_fatalities", doc.Summary.SuspectedFatalities,
		"failed_sources", len(failed),
		"window_dropped", dropped)

	return report, nil
}

// fetch runs one task per source and returns the results sorted by source
// name together with the names of sources that failed.
func (p *Pipeline) fetch(ctx context.Context) ([]source.Result, []string) {
	scope := source.Scope{
		Cutoff:   p.window.Cutoff(),
		Counties: p.lexicon.CountyNames(),
	}

	var pending []tasks.TaskInterface
	var failed []string
	for _, config := range p.opts.Configs {
		adapter, err := source.NewAdapter(config, p.transport.Fetcher(config.Settings), scope)
		if err != nil {
			slog.Error("Failed to build adapter", "source", config.Name, "error", err)
			failed = append(failed, config.Name)
			p.opts.Metrics.SourceFailures.WithLabelValues(config.Name).Inc()
			continue
		}
		pending = append(pending, tasks.NewFetchSourceTask(config, adapter))
	}

	slog.Info("Fetching sources", "sources", len(pending))

	var results []source.Result
	for _, outcome := range p.opts.Runner.Run(ctx, pending) {
		task := outcome.Task.(*tasks.FetchSourceTask)
		if outcome.Err != nil {
			slog.Error("Source unavailable", "source", task.SourceName, "attempts", outcome.Attempts, "error", outcome.Err)
			failed = append(failed, task.SourceName)
			p.opts.Metrics.SourceFailures.WithLabelValues(task.SourceName).Inc()
			continue
		}
		result := task.Result
		result.Source = task.SourceName
		results = append(results, result)
	}

	slices.SortFunc(results, func(a, b source.Result) int {
		return cmp.Compare(a.Source, b.Source)
	})
	slices.Sort(failed)

	return results, failed
}
