package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/osint-helper/pkg/embeddings"
	"github.com/mikeboe/osint-helper/pkg/vectorstore"
)

// KnowledgeReader is the read side of the knowledge store.
type KnowledgeReader interface {
	Search(ctx context.Context, embedding []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error)
	Find(ctx context.Context, filter vectorstore.Filter) ([]vectorstore.Chunk, error)
	Subjects(ctx context.Context) ([]string, error)
}

// KnowledgeToolset exposes indexed investigation knowledge as agent tools.
// The MCP server calls the same methods directly.
type KnowledgeToolset struct {
	Store    KnowledgeReader
	Embedder embeddings.Embedder
	Logger   *slog.Logger
}

func NewKnowledgeToolset(store KnowledgeReader, embedder embeddings.Embedder) *KnowledgeToolset {
	return &KnowledgeToolset{Store: store, Embedder: embedder, Logger: slog.Default()}
}

func (t *KnowledgeToolset) Name() string {
	return "knowledge_tools"
}

func (t *KnowledgeToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	search, err := functiontool.New[SearchKnowledgeArgs, SearchKnowledgeResp](
		functiontool.Config{
			Name:        "search_knowledge",
			Description: "Semantic search over pages gathered during past investigations, optionally limited to one subject.",
		},
		func(ctx tool.Context, args SearchKnowledgeArgs) (SearchKnowledgeResp, error) {
			return t.SearchKnowledge(ctx, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	bySource, err := functiontool.New[FindSourceArgs, FindSourceResp](
		functiontool.Config{
			Name:        "find_by_source",
			Description: "Return every indexed piece of one source URL.",
		},
		func(ctx tool.Context, args FindSourceArgs) (FindSourceResp, error) {
			return t.FindBySource(ctx, args)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_source tool: %w", err)
	}

	subjects, err := functiontool.New[ListSubjectsArgs, ListSubjectsResp](
		functiontool.Config{
			Name:        "list_subjects",
			Description: "List the subjects that have indexed knowledge.",
		},
		func(ctx tool.Context, _ ListSubjectsArgs) (ListSubjectsResp, error) {
			return t.ListSubjects(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list_subjects tool: %w", err)
	}

	return []tool.Tool{search, bySource, subjects}, nil
}

type SearchKnowledgeArgs struct {
	Query   string `json:"query" jsonschema:"what to look for"`
	Subject string `json:"subject,omitempty" jsonschema:"limit results to this investigation subject"`
	TopK    int    `json:"topK,omitempty" jsonschema:"number of results, default 5"`
}

type SearchKnowledgeResp struct {
	Results string `json:"results"`
}

func (t *KnowledgeToolset) SearchKnowledge(ctx context.Context, args SearchKnowledgeArgs) (SearchKnowledgeResp, error) {
	if strings.TrimSpace(args.Query) == "" {
		return SearchKnowledgeResp{}, fmt.Errorf("query is required")
	}
	if args.TopK <= 0 {
		args.TopK = 5
	}
	t.logger().Info("Search knowledge", "query", args.Query, "subject", args.Subject, "topK", args.TopK)

	vec, err := t.Embedder.EmbedText(ctx, args.Query)
	if err != nil {
		return SearchKnowledgeResp{}, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := t.Store.Search(ctx, vec, args.TopK, vectorstore.SubjectFilter(args.Subject))
	if err != nil {
		return SearchKnowledgeResp{}, fmt.Errorf("failed to search: %w", err)
	}
	return SearchKnowledgeResp{Results: formatMatches(matches)}, nil
}

type FindSourceArgs struct {
	Source string `json:"source" jsonschema:"the source URL"`
}

type FindSourceResp struct {
	Content string `json:"content"`
}

func (t *KnowledgeToolset) FindBySource(ctx context.Context, args FindSourceArgs) (FindSourceResp, error) {
	chunks, err := t.Store.Find(ctx, vectorstore.Filter{vectorstore.KeySource: args.Source})
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("failed to find content: %w", err)
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return FindSourceResp{Content: strings.Join(parts, "\n\n")}, nil
}

type ListSubjectsArgs struct{}

type ListSubjectsResp struct {
	Subjects []string `json:"subjects"`
}

func (t *KnowledgeToolset) ListSubjects(ctx context.Context) (ListSubjectsResp, error) {
	subjects, err := t.Store.Subjects(ctx)
	if err != nil {
		return ListSubjectsResp{}, err
	}
	return ListSubjectsResp{Subjects: subjects}, nil
}

// formatMatches renders hits as "[Source]/[Content]" records followed by the
// remaining metadata in key order.
func formatMatches(matches []vectorstore.Match) string {
	records := make([]string, 0, len(matches))
	for _, m := range matches {
		source := m.Chunk.Source()
		if source == "" {
			source = "unknown"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "[Source]: %s\n[Content]: %s", source, m.Chunk.Content)

		keys := make([]string, 0, len(m.Chunk.Metadata))
		for k := range m.Chunk.Metadata {
			if k != vectorstore.KeySource {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n[%s]: %v", k, m.Chunk.Metadata[k])
		}
		records = append(records, sb.String())
	}
	return strings.Join(records, "\n\n")
}

func (t *KnowledgeToolset) logger() *slog.Logger {
	if t.Logger == nil {
		return slog.Default()
	}
	return t.Logger
}
