package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Valid standard", "osint_knowledge", true},
		{"Valid with numbers", "subjects2025", true},
		{"Valid short", "k", true},
		{"Valid max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true}, // 63 chars
		{"Invalid start with number", "1knowledge", false},
		{"Invalid special chars", "osint-knowledge", false},
		{"Invalid space", "osint knowledge", false},
		{"Invalid SQL injection", "chunks; DROP TABLE investigations", false},
		{"Invalid empty", "", false},
		{"Invalid too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false}, // 64 chars
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidTableName(tt.input))
		})
	}
}

func TestNewKnowledgeStoreRejectsBadCollection(t *testing.T) {
	_, err := NewKnowledgeStore(nil, "bad-name")
	require.Error(t, err)

	ks, err := NewKnowledgeStore(nil, "osint_knowledge")
	require.NoError(t, err)
	assert.Equal(t, `"osint_knowledge"`, ks.ident())
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name          string
		filter        Filter
		wantQuery     string
		wantArgsCount int
		wantErr       bool
	}{
		{
			name:      "Empty filter",
			filter:    Filter{},
			wantQuery: "TRUE",
		},
		{
			name:          "Single key",
			filter:        Filter{KeySubject: "Jane Doe"},
			wantQuery:     "metadata @> $1",
			wantArgsCount: 1,
		},
		{
			name: "$and operator",
			filter: Filter{
				"$and": []any{
					map[string]any{KeySubject: "Jane Doe"},
					map[string]any{KeyTopic: "employment"},
				},
			},
			wantQuery:     "((metadata @> $1) AND (metadata @> $2))",
			wantArgsCount: 2,
		},
		{
			name: "$or operator with nested Filter",
			filter: Filter{
				"$or": []any{
					Filter{KeySource: "https://a.example"},
					Filter{KeySource: "https://b.example"},
				},
			},
			wantQuery:     "((metadata @> $1) OR (metadata @> $2))",
			wantArgsCount: 2,
		},
		{
			name:          "$not operator",
			filter:        Filter{"$not": map[string]any{KeyTopic: "news"}},
			wantQuery:     "NOT (metadata @> $1)",
			wantArgsCount: 1,
		},
		{
			name: "Nested operators",
			filter: Filter{
				"$or": []any{
					map[string]any{"a": 1},
					map[string]any{
						"$and": []any{
							map[string]any{"b": 2},
							map[string]any{"c": 3},
						},
					},
				},
			},
			wantQuery:     "((metadata @> $1) OR (((metadata @> $2) AND (metadata @> $3))))",
			wantArgsCount: 3,
		},
		{
			name:          "Implicit AND",
			filter:        Filter{"a": 1, "b": 2},
			wantQuery:     "metadata @> $1 AND metadata @> $2",
			wantArgsCount: 2,
		},
		{
			name:    "Error: $or is not a list",
			filter:  Filter{"$or": "invalid"},
			wantErr: true,
		},
		{
			name:    "Error: $and item is not an object",
			filter:  Filter{"$and": []any{"invalid"}},
			wantErr: true,
		},
		{
			name:    "Error: $not is not an object",
			filter:  Filter{"$not": []any{"invalid"}},
			wantErr: true,
		},
		{
			name:      "Empty operator list is ignored",
			filter:    Filter{"$or": []any{}},
			wantQuery: "TRUE",
		},
		{
			name:      "Operator with empty object",
			filter:    Filter{"$and": []any{map[string]any{}}},
			wantQuery: "((TRUE))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []any
			got, err := buildFilter(tt.filter, &args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, got)
			assert.Len(t, args, tt.wantArgsCount)
		})
	}
}

func TestBuildFilterContinuesPlaceholders(t *testing.T) {
	args := []any{"embedding"}
	got, err := buildFilter(SubjectFilter("Jane Doe"), &args)
	require.NoError(t, err)
	assert.Equal(t, "metadata @> $2", got)
	assert.Len(t, args, 2)
	assert.JSONEq(t, `{"subject":"Jane Doe"}`, string(args[1].([]byte)))
}

func TestSubjectFilterEmpty(t *testing.T) {
	assert.Nil(t, SubjectFilter(""))
}

func TestChunkAccessors(t *testing.T) {
	c := Chunk{Metadata: map[string]any{KeySource: "https://a.example", KeySubject: "Jane Doe", KeyTopic: 3}}
	assert.Equal(t, "https://a.example", c.Source())
	assert.Equal(t, "Jane Doe", c.Subject())
	assert.Equal(t, "", c.meta(KeyTopic))
}
