package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mikeboe/osint-helper/pkg/config"
	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

// Config holds runtime configuration for one engine.
type Config struct {
	Rounds        int
	MaxCycles     int
	Concurrency   int
	WorkerStagger time.Duration
	AgentStagger  time.Duration
	ChunkWords    int
	MinTextChars  int
	Temperature   float64
	MaxTokens     int
	SystemPrompt  string
	Filters       tools.Filters
}

func DefaultConfig() Config {
	return Config{
		Rounds:        2,
		MaxCycles:     3,
		Concurrency:   10,
		WorkerStagger: time.Second,
		AgentStagger:  2 * time.Second,
		ChunkWords:    800,
		MinTextChars:  50,
		Temperature:   0.7,
		MaxTokens:     512,
		SystemPrompt:  SystemPrompt,
	}
}

// ConfigFrom maps the application configuration onto engine settings.
func ConfigFrom(c *config.Config) Config {
	cfg := DefaultConfig()
	cfg.Rounds = c.Research.Rounds
	cfg.MaxCycles = c.Research.MaxCycles
	cfg.Concurrency = c.Research.Concurrency
	cfg.WorkerStagger = c.Research.WorkerStagger
	cfg.AgentStagger = c.Research.AgentStagger
	cfg.ChunkWords = c.Research.ChunkWords
	cfg.MinTextChars = c.Research.MinTextChars
	cfg.Temperature = c.LLM.Temperature
	cfg.MaxTokens = c.LLM.MaxTokens
	cfg.Filters = tools.Filters{
		Country:  c.Search.Country,
		Language: c.Search.Language,
		Limit:    c.Search.MaxResults,
	}
	return cfg
}

// request builds a dispatcher call with the engine's defaults.
func (c Config) request(prompt string) llm.Request {
	return llm.Request{
		Prompt:      prompt,
		System:      c.SystemPrompt,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

// Completer is the text generation dependency; *llm.Dispatcher satisfies it.
// Complete never fails: total failure comes back as an llm sentinel string.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) string
}

// SearchResult represents a single search hit
type SearchResult = tools.SearchResult

// PageSummary is produced once per fetched URL.
type PageSummary struct {
	SourceURL string `json:"source_url"`
	Summary   string `json:"summary"`
}

const LabelInitial = "Initial"

// DeepDiveLabel labels the block produced for a deep dive topic.
func DeepDiveLabel(topic string) string {
	return "DeepDive:" + topic
}

// Block is one labeled piece of gathered knowledge.
type Block struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Topic returns the deep dive topic of the block, or "" for the initial block.
func (b Block) Topic() string {
	topic, ok := strings.CutPrefix(b.Label, "DeepDive:")
	if !ok {
		return ""
	}
	return topic
}

// KnowledgeBuffer is an append-only sequence of blocks. Blocks appear in the
// order appends complete, which for concurrent writers is not spawn order.
type KnowledgeBuffer struct {
	mu     sync.Mutex
	blocks []Block
}

func (k *KnowledgeBuffer) Append(label, text string) {
	k.mu.Lock()
	k.blocks = append(k.blocks, Block{Label: label, Text: text})
	k.mu.Unlock()
}

// Blocks returns a copy of the current blocks.
func (k *KnowledgeBuffer) Blocks() []Block {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]Block(nil), k.blocks...)
}

func (k *KnowledgeBuffer) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.blocks)
}

// String renders the buffer as the knowledge text fed back to the model.
func (k *KnowledgeBuffer) String() string {
	var sb strings.Builder
	for _, b := range k.Blocks() {
		if b.Label == LabelInitial {
			fmt.Fprintf(&sb, "Initial Knowledge:\n%s\n", b.Text)
			continue
		}
		fmt.Fprintf(&sb, "\nDeep Dive on %s:\n%s\n", b.Topic(), b.Text)
	}
	return sb.String()
}
