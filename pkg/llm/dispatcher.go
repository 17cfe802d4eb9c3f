package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mikeboe/osint-helper/pkg/metrics"
)

// Provider is one registered backend and the model it uses by default.
type Provider struct {
	Name   string
	Model  string
	Client ChatCompleter
}

// Registry maps provider identifiers to backends.
type Registry map[string]Provider

// Settings selects and orders providers out of a Registry.
type Settings struct {
	Order    []string
	Models   map[string]string
	Interval time.Duration
	Timeout  time.Duration
}

// Request is a dispatcher call. Model, when set, overrides every provider's
// default; Models overrides it per provider name.
type Request struct {
	Prompt      string
	System      string
	Model       string
	Models      map[string]string
	Temperature float64
	MaxTokens   int
}

type Dispatcher struct {
	providers []Provider
	pacer     *pacer
	timeout   time.Duration
	metrics   *metrics.Metrics
	Logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.Logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher resolves s.Order against the registry. Names that are not
// registered are dropped with a warning, as are repeats.
func NewDispatcher(reg Registry, s Settings, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pacer:   newPacer(s.Interval),
		timeout: s.Timeout,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	seen := make(map[string]bool)
	for _, name := range s.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		p, ok := reg[name]
		if !ok {
			d.Logger.Warn("Dropping unknown or unconfigured LLM provider", "provider", name)
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		p.Name = name
		if m := s.Models[name]; m != "" {
			p.Model = m
		}
		d.providers = append(d.providers, p)
	}

	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name)
	}
	d.Logger.Info("LLM dispatcher ready", "providers", names, "interval", s.Interval)
	return d
}

// Providers returns the resolved call order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name)
	}
	return names
}

// Complete never fails: when no provider answers it returns a sentinel string
// (see IsSentinel) embedding every provider's error.
func (d *Dispatcher) Complete(ctx context.Context, req Request) string {
	text, err := d.Dispatch(ctx, req)
	if err != nil {
		return Sentinel(err)
	}
	return text
}

// Dispatch tries providers in order and returns the first non-empty answer.
// On total failure the error is an *ExhaustedError.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	if len(d.providers) == 0 {
		return "", &ExhaustedError{}
	}

	var failures []ProviderFailure
	for _, p := range d.providers {
		text, err := d.attempt(ctx, p, req)
		if err == nil {
			return text, nil
		}
		d.Logger.Warn("LLM provider failed", "provider", p.Name, "error", err)
		failures = append(failures, ProviderFailure{Provider: p.Name, Err: err})

		if ctx.Err() != nil {
			break
		}
	}
	return "", &ExhaustedError{Failures: failures}
}

func (d *Dispatcher) attempt(ctx context.Context, p Provider, req Request) (string, error) {
	release, err := d.pacer.acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("waiting for rate limit: %w", err)
	}
	defer release()

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	model := p.Model
	if req.Model != "" {
		model = req.Model
	}
	if m := req.Models[p.Name]; m != "" {
		model = m
	}

	start := time.Now()
	text, err := p.Client.Complete(callCtx, CompletionRequest{
		Model:       model,
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	d.metrics.ObserveLLMCall(p.Name, outcome, time.Since(start))

	return text, err
}
