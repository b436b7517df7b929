package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/i79-incidents/app/source"
)

type stubAdapter struct {
	result      source.Result
	err         error
	sawDeadline bool
}

func (s *stubAdapter) Fetch(ctx context.Context) (source.Result, error) {
	_, s.sawDeadline = ctx.Deadline()
	return s.result, s.err
}

func TestFetchSourceTaskExecute(t *testing.T) {
	config := &source.Config{Name: "wboy", Settings: source.ConfigSettings{Deadline: 60, MaxRetries: 1}}
	adapter := &stubAdapter{result: source.Result{Source: "wboy", Articles: []source.RawArticle{{Title: "x"}}, Requests: 1}}

	task := NewFetchSourceTask(config, adapter)
	task.Start()
	require.NoError(t, task.Execute(context.Background()))

	assert.True(t, adapter.sawDeadline)
	assert.Len(t, task.Result.Articles, 1)
	assert.Equal(t, 1, task.GetMaxRetries())
	assert.Equal(t, TaskTypeFetchSource, task.GetType())
}

func TestFetchSourceTaskWrapsUnavailable(t *testing.T) {
	config := &source.Config{Name: "wdtv"}
	adapter := &stubAdapter{err: &source.SourceUnavailableError{Source: "wdtv", Err: errors.New("boom")}}

	err := NewFetchSourceTask(config, adapter).Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
	assert.False(t, adapter.sawDeadline)
}

func TestFetchSourceTaskRetriedByPool(t *testing.T) {
	config := &source.Config{Name: "wv511", Settings: source.ConfigSettings{MaxRetries: 1}}
	adapter := &stubAdapter{err: &source.SourceUnavailableError{Source: "wv511", Err: errors.New("503")}}
	task := NewFetchSourceTask(config, adapter)

	retryable := func(err error) bool { return errors.Is(err, source.ErrSourceUnavailable) }
	outcomes := NewPool(1, time.Millisecond, nil, retryable).Run(context.Background(), []TaskInterface{task})

	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].Attempts)
	assert.ErrorIs(t, outcomes[0].Err, source.ErrSourceUnavailable)
}
