package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/osint-helper/pkg/chat"
	"github.com/mikeboe/osint-helper/pkg/llm"
	"github.com/mikeboe/osint-helper/pkg/research"
	"github.com/mikeboe/osint-helper/pkg/research/tools"
)

type PersonLookupArgs struct {
	Name     string `json:"name" jsonschema:"full name of the person to investigate"`
	Question string `json:"question,omitempty" jsonschema:"question to answer about the person"`
}

type DeepResearchArgs struct {
	Query    string `json:"query" jsonschema:"seed search query"`
	Question string `json:"question,omitempty" jsonschema:"question to answer, defaults to the query"`
	Rounds   int    `json:"rounds,omitempty" jsonschema:"number of deep dive rounds"`
}

type ResearchResp struct {
	Answer    string           `json:"answer"`
	Knowledge []research.Block `json:"knowledge"`
}

type UsernameSearchArgs struct {
	Username string   `json:"username" jsonschema:"username to look for"`
	Sites    []string `json:"sites,omitempty" jsonschema:"profile URL templates containing {username}"`
}

type UsernameSearchResp struct {
	Hits []tools.UsernameHit `json:"hits"`
}

// NewMCPServer exposes the engine over the Model Context Protocol. The
// knowledge tools are registered only when knowledge is non-nil.
func NewMCPServer(engine Runner, usernames UsernameSearcher, knowledge *chat.KnowledgeToolset, defaultRounds int, version string) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: "osint-helper", Version: version}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "person_lookup",
		Description: "Collect public information about a person and answer a question about them.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args PersonLookupArgs) (*mcp.CallToolResult, ResearchResp, error) {
		if strings.TrimSpace(args.Name) == "" {
			return nil, ResearchResp{}, errors.New("name is required")
		}
		res := engine.Lookup(ctx, args.Name, args.Question, research.RunOptions{})
		return answerResult(res)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "deep_research",
		Description: "Search the web for a query, follow up on the most promising topics and answer a question.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args DeepResearchArgs) (*mcp.CallToolResult, ResearchResp, error) {
		if strings.TrimSpace(args.Query) == "" {
			return nil, ResearchResp{}, errors.New("query is required")
		}
		rounds := args.Rounds
		if rounds <= 0 {
			rounds = defaultRounds
		}
		question := args.Question
		if question == "" {
			question = args.Query
		}
		res := engine.Research(ctx, args.Query, question, rounds, research.RunOptions{})
		return answerResult(res)
	})

	if usernames != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        "username_search",
			Description: "Check which public profile sites have a page for a username.",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, args UsernameSearchArgs) (*mcp.CallToolResult, UsernameSearchResp, error) {
			if strings.TrimSpace(args.Username) == "" {
				return nil, UsernameSearchResp{}, errors.New("username is required")
			}
			return nil, UsernameSearchResp{Hits: usernames.Check(ctx, args.Username, args.Sites)}, nil
		})
	}

	if knowledge != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        "search_knowledge",
			Description: "Semantic search over page text collected by earlier investigations.",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, args chat.SearchKnowledgeArgs) (*mcp.CallToolResult, chat.SearchKnowledgeResp, error) {
			resp, err := knowledge.SearchKnowledge(ctx, args)
			return nil, resp, err
		})
		mcp.AddTool(s, &mcp.Tool{
			Name:        "find_by_source",
			Description: "Return the stored text of one source URL.",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, args chat.FindSourceArgs) (*mcp.CallToolResult, chat.FindSourceResp, error) {
			resp, err := knowledge.FindBySource(ctx, args)
			return nil, resp, err
		})
		mcp.AddTool(s, &mcp.Tool{
			Name:        "list_subjects",
			Description: "List the subjects that have indexed knowledge.",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, _ chat.ListSubjectsArgs) (*mcp.CallToolResult, chat.ListSubjectsResp, error) {
			resp, err := knowledge.ListSubjects(ctx)
			return nil, resp, err
		})
	}
	return s
}

// NewMCPHandler serves s over streamable HTTP.
func NewMCPHandler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
}

// answerResult marks sentinel answers as tool errors so clients do not treat
// them as findings.
func answerResult(res research.LookupResult) (*mcp.CallToolResult, ResearchResp, error) {
	out := ResearchResp{Answer: res.Answer, Knowledge: res.Knowledge}
	if llm.IsSentinel(res.Answer) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: res.Answer}},
		}, out, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Answer}},
	}, out, nil
}
