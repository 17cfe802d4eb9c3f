package research

import (
	"context"
	"fmt"

	"github.com/mikeboe/osint-helper/pkg/embeddings"
	"github.com/mikeboe/osint-helper/pkg/splitter"
	"github.com/mikeboe/osint-helper/pkg/vectorstore"
)

// ChunkStore is the write side of the knowledge store.
type ChunkStore interface {
	Add(ctx context.Context, chunks []vectorstore.Chunk) error
}

// KnowledgeIndexer splits page text, embeds the pieces and stores them with
// the scope of the investigation that fetched the page.
type KnowledgeIndexer struct {
	Splitter *splitter.TextSplitter
	Embedder embeddings.Embedder
	Store    ChunkStore
}

func NewKnowledgeIndexer(chunkSize, overlap int, emb embeddings.Embedder, store ChunkStore) *KnowledgeIndexer {
	return &KnowledgeIndexer{
		Splitter: splitter.NewRecursiveCharacterTextSplitter(chunkSize, overlap),
		Embedder: emb,
		Store:    store,
	}
}

func (ix *KnowledgeIndexer) Index(ctx context.Context, sourceURL, text string) error {
	pieces, err := ix.Splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("failed to split page: %w", err)
	}
	if len(pieces) == 0 {
		return nil
	}

	vecs, err := ix.Embedder.EmbedTexts(ctx, pieces)
	if err != nil {
		return fmt.Errorf("failed to embed page: %w", err)
	}

	scope := ScopeFrom(ctx)
	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = vectorstore.Chunk{
			Content: p,
			Metadata: map[string]any{
				vectorstore.KeySource:  sourceURL,
				vectorstore.KeySubject: scope.Subject,
				vectorstore.KeyTopic:   scope.Topic,
			},
			Embedding: vecs[i],
		}
	}
	if err := ix.Store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}
