package llm

import (
	"context"
	"log/slog"

	"github.com/mikeboe/osint-helper/pkg/clients"
	"github.com/mikeboe/osint-helper/pkg/config"
)

// RegistryFromConfig registers every known provider that has credentials.
func RegistryFromConfig(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	reg := make(Registry)
	for _, name := range clients.Known {
		key := cfg.Key(name)
		if key == "" {
			continue
		}
		model := cfg.Models[name]
		m, err := clients.New(ctx, name, key, model)
		if err != nil {
			logger.Warn("Skipping LLM provider", "provider", name, "error", err)
			continue
		}
		reg[name] = Provider{Name: name, Model: model, Client: ModelCompleter{Model: m}}
	}
	return reg
}

// NewFromConfig builds the registry and the dispatcher in one step.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, opts ...Option) *Dispatcher {
	d := &Dispatcher{Logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	reg := RegistryFromConfig(ctx, cfg, d.Logger)
	return NewDispatcher(reg, Settings{
		Order:    cfg.Order,
		Models:   cfg.Models,
		Interval: cfg.Interval(),
		Timeout:  cfg.Timeout,
	}, opts...)
}
