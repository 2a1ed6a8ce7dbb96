package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovalyov-valentin/trend-radar/internal/analyzer"
	"github.com/kovalyov-valentin/trend-radar/internal/collector"
)

type fakeCollector struct {
	result collector.Result
	err    error
	calls  int
	block  chan struct{}
}

func (f *fakeCollector) Run(context.Context) (collector.Result, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

type fakeAnalyzer struct {
	result analyzer.Result
	err    error
	calls  int
}

func (f *fakeAnalyzer) Run(context.Context) (analyzer.Result, error) {
	f.calls++
	return f.result, f.err
}

func TestRunAnalyzesWhenNewItems(t *testing.T) {
	c := &fakeCollector{result: collector.Result{Success: true, TotalNewItems: 3}}
	a := &fakeAnalyzer{result: analyzer.Result{Success: true, TrendsCreated: 1}}

	summary, err := New(c, a, time.Hour).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, a.calls)
	require.NotNil(t, summary.Analyze)
	assert.Equal(t, 1, summary.Analyze.TrendsCreated)
	assert.Empty(t, summary.AnalyzeError)
}

func TestRunSkipsAnalysisWithoutNewItems(t *testing.T) {
	c := &fakeCollector{result: collector.Result{Success: true}}
	a := &fakeAnalyzer{}

	summary, err := New(c, a, time.Hour).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, a.calls)
	assert.Nil(t, summary.Analyze)
}

func TestRunReportsAnalyzerError(t *testing.T) {
	c := &fakeCollector{result: collector.Result{Success: true, TotalNewItems: 1}}
	a := &fakeAnalyzer{err: &analyzer.MalformedResponseError{Err: errors.New("no JSON object found")}}

	summary, err := New(c, a, time.Hour).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, summary.AnalyzeError, "malformed model response")
}

func TestRunCollectorError(t *testing.T) {
	c := &fakeCollector{err: errors.New("db down")}
	a := &fakeAnalyzer{}

	_, err := New(c, a, time.Hour).Run(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 0, a.calls)
}

func TestRunRejectsOverlap(t *testing.T) {
	c := &fakeCollector{block: make(chan struct{})}
	p := New(c, &fakeAnalyzer{}, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run(context.Background())
	}()

	require.Eventually(t, func() bool {
		_, err := p.Analyze(context.Background())
		return errors.Is(err, ErrAlreadyRunning)
	}, time.Second, 5*time.Millisecond)

	close(c.block)
	<-done

	_, err := p.Analyze(context.Background())
	assert.NoError(t, err)
}

type signalCollector struct {
	called chan struct{}
}

func (s signalCollector) Run(context.Context) (collector.Result, error) {
	s.called <- struct{}{}
	return collector.Result{Success: true}, nil
}

func TestStartRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	c := signalCollector{called: make(chan struct{}, 1)}
	p := New(c, &fakeAnalyzer{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Start(ctx) }()

	select {
	case <-c.called:
	case <-time.After(time.Second):
		t.Fatal("first run did not start")
	}

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
