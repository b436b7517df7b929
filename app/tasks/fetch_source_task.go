package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/i79-incidents/app/source"
)

// FetchSourceTask runs one adapter under the source's deadline. Result holds
// the output of the last attempt.
type FetchSourceTask struct {
	Task
	Config  *source.Config
	adapter source.Adapter
	Result  source.Result
}

func NewFetchSourceTask(config *source.Config, adapter source.Adapter) *FetchSourceTask {
	return &FetchSourceTask{
		Task:    NewTask(TaskTypeFetchSource, config.Name, config.Settings.MaxRetries),
		Config:  config,
		adapter: adapter,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if t.Config.Settings.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(t.Config.Settings.Deadline)*time.Second)
		defer cancel()
	}

	result, err := t.adapter.Fetch(ctx)
	t.Result = result
	if err != nil {
		return fmt.Errorf("failed to fetch source %s: %w", t.SourceName, err)
	}

	slog.Info("Task completed",
		"type", "FetchedSource",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"articles", len(result.Articles),
		"skipped", result.Skipped,
		"requests", result.Requests)

	return nil
}
