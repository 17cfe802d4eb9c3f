package research

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Aggregator runs the seed search and the deep dive rounds of one investigation.
type Aggregator struct {
	Agent   QueryRunner
	Planner *Planner
	LLM     Completer
	Config  Config
	Logger  *slog.Logger

	// OnBlock, when set, is called after each block is appended.
	OnBlock func(Block)
}

// Collect gathers knowledge for seed. It returns only after every spawned
// agent has finished.
func (a *Aggregator) Collect(ctx context.Context, seed string, rounds int) *KnowledgeBuffer {
	logger := a.logger().With("seed", seed)
	kb := &KnowledgeBuffer{}

	initial := a.Agent.Run(withScope(ctx, seed, ""), seed)
	a.append(kb, LabelInitial, initial)

	for round := 1; round <= rounds; round++ {
		if ctx.Err() != nil {
			logger.Warn("Investigation cancelled", "round", round)
			break
		}
		topics := a.Planner.Topics(ctx, kb.String())
		logger.Info("Deep dive round", "round", round, "topics", topics)
		if len(topics) == 0 {
			continue
		}
		a.deepDive(ctx, kb, seed, topics)
	}
	return kb
}

func (a *Aggregator) deepDive(ctx context.Context, kb *KnowledgeBuffer, seed string, topics []string) {
	g, gctx := errgroup.WithContext(ctx)
	if a.Config.Concurrency > 0 {
		g.SetLimit(a.Config.Concurrency)
	}
	stagger := newStagger(a.Config.AgentStagger)

	for _, topic := range topics {
		if err := stagger.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			text := a.Agent.Run(withScope(gctx, seed, topic), seed+" "+topic)
			a.append(kb, DeepDiveLabel(topic), text)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) append(kb *KnowledgeBuffer, label, text string) {
	kb.Append(label, text)
	if a.OnBlock != nil {
		a.OnBlock(Block{Label: label, Text: text})
	}
}

// Investigate gathers knowledge for seed and renders it as text.
func (a *Aggregator) Investigate(ctx context.Context, seed string, rounds int) string {
	return a.Collect(ctx, seed, rounds).String()
}

// Answer asks the model to answer question from the knowledge in kb. The
// result is never empty: a failed call returns the llm sentinel.
func (a *Aggregator) Answer(ctx context.Context, kb *KnowledgeBuffer, question string) string {
	return a.LLM.Complete(ctx, a.Config.request(summaryPrompt(kb.String(), question)))
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

type scopeKey struct{}

// Scope names the subject and deep dive topic a page was gathered for.
type Scope struct {
	Subject string
	Topic   string
}

func withScope(ctx context.Context, subject, topic string) context.Context {
	return context.WithValue(ctx, scopeKey{}, Scope{Subject: subject, Topic: topic})
}

// ScopeFrom returns the scope carried by ctx, if any.
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}
