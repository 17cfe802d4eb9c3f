package server

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/osint-helper/pkg/llm"
)

func connectMCP(t *testing.T, s *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := s.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

func toolNames(t *testing.T, cs *mcp.ClientSession) []string {
	t.Helper()
	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPToolsWithoutKnowledge(t *testing.T) {
	cs := connectMCP(t, NewMCPServer(&fakeRunner{}, fakeUsernames{}, nil, 1, "test"))
	assert.ElementsMatch(t, []string{"person_lookup", "deep_research", "username_search"}, toolNames(t, cs))
}

func TestMCPPersonLookup(t *testing.T) {
	runner := &fakeRunner{answer: "Jane works at Acme."}
	cs := connectMCP(t, NewMCPServer(runner, nil, nil, 1, "test"))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "person_lookup",
		Arguments: map[string]any{"name": "Jane Doe"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Jane works at Acme.", textOf(t, res))
	assert.Equal(t, []string{"Jane Doe"}, runner.lookups)
}

func TestMCPDeepResearchSentinelIsError(t *testing.T) {
	runner := &fakeRunner{answer: llm.SentinelPrefix + "no providers"}
	cs := connectMCP(t, NewMCPServer(runner, nil, nil, 1, "test"))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "deep_research",
		Arguments: map[string]any{"query": "acme breach"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, []string{"acme breach"}, runner.research)
}
