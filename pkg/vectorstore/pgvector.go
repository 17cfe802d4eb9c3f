package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Metadata keys written for every knowledge chunk.
const (
	KeySource  = "source"
	KeySubject = "subject"
	KeyTopic   = "topic"
)

// Chunk is one embedded piece of a scraped page.
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
}

func (c Chunk) Source() string  { return c.meta(KeySource) }
func (c Chunk) Subject() string { return c.meta(KeySubject) }

func (c Chunk) meta(key string) string {
	s, _ := c.Metadata[key].(string)
	return s
}

// Match is a similarity search hit; Score is cosine similarity.
type Match struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Filter selects chunks by metadata. Plain keys match by JSON containment;
// "$and", "$or" and "$not" combine nested filters.
type Filter map[string]any

// KnowledgeStore keeps page chunks of one collection in a pgvector table.
type KnowledgeStore struct {
	pool  *pgxpool.Pool
	table string
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// isValidTableName reports whether name is safe to use as a collection table.
func isValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

func NewKnowledgeStore(pool *pgxpool.Pool, collection string) (*KnowledgeStore, error) {
	if !isValidTableName(collection) {
		return nil, fmt.Errorf("invalid collection name %q: use lowercase letters, digits and underscores (max 63)", collection)
	}
	return &KnowledgeStore{pool: pool, table: collection}, nil
}

func (ks *KnowledgeStore) ident() string {
	return pgx.Identifier{ks.table}.Sanitize()
}

// EnsureTable creates the vector extension, the collection table and its
// HNSW index. HNSW only supports up to 2000 dimensions; larger vectors fall
// back to exact search.
func (ks *KnowledgeStore) EnsureTable(ctx context.Context, dimension int) error {
	if _, err := ks.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, ks.ident(), dimension)
	if _, err := ks.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", ks.table, err)
	}

	if dimension <= 2000 {
		index := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s
			ON %s USING hnsw (embedding vector_cosine_ops)
		`, pgx.Identifier{ks.table + "_embedding_idx"}.Sanitize(), ks.ident())
		if _, err := ks.pool.Exec(ctx, index); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", ks.table, err)
		}
	}
	return nil
}

// Add inserts chunks in one batch.
func (ks *KnowledgeStore) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (content, metadata, embedding) VALUES ($1, $2, $3)`, ks.ident())

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		batch.Queue(query, c.Content, meta, pgvector.NewVector(c.Embedding))
	}

	br := ks.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	return nil
}

// Search returns the topK chunks closest to embedding that match filter.
func (ks *KnowledgeStore) Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Match, error) {
	args := []any{pgvector.NewVector(embedding)}
	where, err := buildFilter(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, ks.ident(), where, len(args))

	rows, err := ks.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			meta []byte
		)
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Content, &meta, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &m.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Find returns every chunk matching filter, oldest first.
func (ks *KnowledgeStore) Find(ctx context.Context, filter Filter) ([]Chunk, error) {
	var args []any
	where, err := buildFilter(filter, &args)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, content, metadata FROM %s WHERE %s ORDER BY created_at`, ks.ident(), where)
	rows, err := ks.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c    Chunk
			meta []byte
		)
		if err := rows.Scan(&c.ID, &c.Content, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Subjects lists the distinct subjects with indexed knowledge.
func (ks *KnowledgeStore) Subjects(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT metadata->>'subject' FROM %s
		WHERE metadata ? 'subject'
		ORDER BY 1
	`, ks.ident())
	rows, err := ks.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// buildFilter renders filter as a WHERE clause, appending its parameters to
// args. Placeholders continue from len(*args).
func buildFilter(filter Filter, args *[]any) (string, error) {
	if len(filter) == 0 {
		return "TRUE", nil
	}

	var conds []string
	for key, value := range filter {
		switch key {
		case "$and", "$or":
			list, ok := value.([]any)
			if !ok {
				return "", fmt.Errorf("value for %s must be a list of filters", key)
			}
			var parts []string
			for _, item := range list {
				sub, ok := asFilter(item)
				if !ok {
					return "", fmt.Errorf("item in %s must be an object", key)
				}
				clause, err := buildFilter(sub, args)
				if err != nil {
					return "", err
				}
				parts = append(parts, "("+clause+")")
			}
			if len(parts) == 0 {
				continue
			}
			op := " AND "
			if key == "$or" {
				op = " OR "
			}
			conds = append(conds, "("+strings.Join(parts, op)+")")

		case "$not":
			sub, ok := asFilter(value)
			if !ok {
				return "", fmt.Errorf("value for $not must be an object")
			}
			clause, err := buildFilter(sub, args)
			if err != nil {
				return "", err
			}
			conds = append(conds, "NOT ("+clause+")")

		default:
			pair, err := json.Marshal(map[string]any{key: value})
			if err != nil {
				return "", fmt.Errorf("failed to marshal filter on %s: %w", key, err)
			}
			*args = append(*args, pair)
			conds = append(conds, fmt.Sprintf("metadata @> $%d", len(*args)))
		}
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), nil
}

func asFilter(v any) (Filter, bool) {
	switch f := v.(type) {
	case Filter:
		return f, true
	case map[string]any:
		return f, true
	}
	return nil, false
}

// SubjectFilter matches chunks gathered for subject; "" matches everything.
func SubjectFilter(subject string) Filter {
	if subject == "" {
		return nil
	}
	return Filter{KeySubject: subject}
}
