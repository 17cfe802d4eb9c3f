package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mikeboe/osint-helper/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	start, end time.Time
	req        CompletionRequest
}

// fakeCompleter answers with text or err and records every invocation.
type fakeCompleter struct {
	text  string
	err   error
	delay time.Duration
	// hang blocks until the call context is done.
	hang  bool

	mu    sync.Mutex
	calls []call
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.hang {
		<-ctx.Done()
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{start: start, end: time.Now(), req: req})
	f.mu.Unlock()
	if f.hang {
		return "", ctx.Err()
	}
	return f.text, f.err
}

func (f *fakeCompleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDispatcher(reg Registry, order []string, interval time.Duration) *Dispatcher {
	return NewDispatcher(reg, Settings{Order: order, Interval: interval}, WithLogger(quietLogger()))
}

func TestDispatcherFallsBackInOrder(t *testing.T) {
	a := &fakeCompleter{err: errors.New("a is down")}
	b := &fakeCompleter{text: "answer from b"}
	c := &fakeCompleter{text: "answer from c"}
	d := newTestDispatcher(Registry{
		"a": {Client: a}, "b": {Client: b}, "c": {Client: c},
	}, []string{"a", "b", "c"}, 0)

	got := d.Complete(context.Background(), Request{Prompt: "hi"})

	assert.Equal(t, "answer from b", got)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, c.count())
}

func TestDispatcherTotalFailureReturnsSentinel(t *testing.T) {
	errA := errors.New("a: connection refused")
	a := &fakeCompleter{err: errA}
	b := &fakeCompleter{err: errors.New("b: status 503")}
	d := newTestDispatcher(Registry{"a": {Client: a}, "b": {Client: b}}, []string{"a", "b"}, 0)

	got := d.Complete(context.Background(), Request{Prompt: "hi"})
	assert.True(t, IsSentinel(got))
	assert.Contains(t, got, "a: connection refused")
	assert.Contains(t, got, "b: status 503")

	_, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Failures, 2)
	assert.ErrorIs(t, err, errA)
}

func TestDispatcherEmptyContentIsFailure(t *testing.T) {
	a := &fakeCompleter{text: "   "}
	b := &fakeCompleter{text: "real"}
	d := newTestDispatcher(Registry{"a": {Client: a}, "b": {Client: b}}, []string{"a", "b"}, 0)

	assert.Equal(t, "real", d.Complete(context.Background(), Request{Prompt: "hi"}))
}

func TestDispatcherNoProvidersReturnsImmediately(t *testing.T) {
	d := newTestDispatcher(Registry{}, []string{"openai"}, time.Hour)

	start := time.Now()
	got := d.Complete(context.Background(), Request{Prompt: "hi"})
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, IsSentinel(got))
	assert.Contains(t, got, "no LLM providers configured")

	_, err := d.Dispatch(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestDispatcherDropsUnknownAndDuplicateProviders(t *testing.T) {
	reg := Registry{"a": {Client: &fakeCompleter{}}, "b": {Client: &fakeCompleter{}}}
	d := newTestDispatcher(reg, []string{"A", "unknown", "b", "a"}, 0)
	assert.Equal(t, []string{"a", "b"}, d.Providers())
}

func TestDispatcherModelSelection(t *testing.T) {
	a := &fakeCompleter{text: "ok"}
	reg := Registry{"a": {Client: a, Model: "registry-default"}}

	d := NewDispatcher(reg, Settings{Order: []string{"a"}, Models: map[string]string{"a": "configured"}}, WithLogger(quietLogger()))

	d.Complete(context.Background(), Request{Prompt: "1"})
	d.Complete(context.Background(), Request{Prompt: "2", Model: "call-wide"})
	d.Complete(context.Background(), Request{Prompt: "3", Model: "call-wide", Models: map[string]string{"a": "per-provider"}})

	require.Equal(t, 3, a.count())
	assert.Equal(t, "configured", a.calls[0].req.Model)
	assert.Equal(t, "call-wide", a.calls[1].req.Model)
	assert.Equal(t, "per-provider", a.calls[2].req.Model)
}

func TestDispatcherRequestFieldsReachProvider(t *testing.T) {
	a := &fakeCompleter{text: "ok"}
	d := newTestDispatcher(Registry{"a": {Client: a}}, []string{"a"}, 0)

	d.Complete(context.Background(), Request{Prompt: "p", System: "s", Temperature: 0.7, MaxTokens: 512})

	require.Equal(t, 1, a.count())
	assert.Equal(t, CompletionRequest{System: "s", Prompt: "p", Temperature: 0.7, MaxTokens: 512}, a.calls[0].req)
}

func TestDispatcherCancelledContextSkipsProviders(t *testing.T) {
	a := &fakeCompleter{text: "ok"}
	b := &fakeCompleter{text: "ok"}
	d := newTestDispatcher(Registry{"a": {Client: a}, "b": {Client: b}}, []string{"a", "b"}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := d.Complete(ctx, Request{Prompt: "hi"})
	assert.True(t, IsSentinel(got))
	assert.Equal(t, 0, a.count())
	assert.Equal(t, 0, b.count())
}

func TestDispatcherRateLimitAcrossConcurrentCallers(t *testing.T) {
	const interval = 40 * time.Millisecond
	a := &fakeCompleter{err: errors.New("flaky")}
	b := &fakeCompleter{text: "ok", delay: 5 * time.Millisecond}
	d := newTestDispatcher(Registry{"a": {Client: a}, "b": {Client: b}}, []string{"a", "b"}, interval)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "ok", d.Complete(context.Background(), Request{Prompt: "hi"}))
		}()
	}
	wg.Wait()

	// every attempt, failed or not, counts toward the shared interval
	all := append(append([]call{}, a.calls...), b.calls...)
	require.Len(t, all, 8)
	sort.Slice(all, func(i, j int) bool { return all[i].start.Before(all[j].start) })

	for i := 1; i < len(all); i++ {
		gapFromEnd := all[i].start.Sub(all[i-1].end)
		assert.GreaterOrEqual(t, gapFromEnd, interval, "attempt %d started %v after previous returned", i, gapFromEnd)
		assert.GreaterOrEqual(t, all[i].start.Sub(all[i-1].start), interval)
	}
}

func TestDispatcherRateLimitHonoursCancellationWhileWaiting(t *testing.T) {
	a := &fakeCompleter{text: "ok"}
	d := newTestDispatcher(Registry{"a": {Client: a}}, []string{"a"}, time.Hour)

	require.Equal(t, "ok", d.Complete(context.Background(), Request{Prompt: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	got := d.Complete(ctx, Request{Prompt: "second"})

	assert.True(t, IsSentinel(got))
	assert.Equal(t, 1, a.count())
}

func TestDispatcherProviderTimeoutFallsThrough(t *testing.T) {
	slow := &fakeCompleter{hang: true}
	fast := &fakeCompleter{text: "answer from fast"}
	m := metrics.New()
	d := NewDispatcher(Registry{"slow": {Client: slow}, "fast": {Client: fast}}, Settings{
		Order:   []string{"slow", "fast"},
		Timeout: 20 * time.Millisecond,
	}, WithLogger(quietLogger()), WithMetrics(m))

	start := time.Now()
	got, err := d.Dispatch(context.Background(), Request{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "answer from fast", got)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, slow.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("slow", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("fast", "ok")))
}
