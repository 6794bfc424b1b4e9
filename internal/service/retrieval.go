package service

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/grantpilot/grantpilot/internal/domain"
)

// similarityEpsilon bounds float comparison for the recency tie-break.
const similarityEpsilon = 1e-9

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearchRepository defines the scoped search operations the retrieval
// engine needs. Implementations must apply the scope filter before ranking.
type ChunkSearchRepository interface {
	SearchSemantic(ctx context.Context, scope domain.RetrievalScope, embedding []float32, topK int) ([]domain.RetrievedChunk, error)
	SearchLexical(ctx context.Context, scope domain.RetrievalScope, queryText string, topK int) ([]domain.RetrievedChunk, error)
}

// RetrievalResult is the ranked output of one retrieval. Fallback is set
// when the lexical path substituted for an unavailable embedding provider,
// so degraded retrievals stay traceable.
type RetrievalResult struct {
	Chunks   []domain.RetrievedChunk
	Fallback bool
}

// RetrievalEngine returns the top-K most similar chunks for a query within
// a scope.
type RetrievalEngine struct {
	repo      ChunkSearchRepository
	embedding EmbeddingClient
	topK      int
}

func NewRetrievalEngine(repo ChunkSearchRepository, embedding EmbeddingClient, topK int) *RetrievalEngine {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalEngine{repo: repo, embedding: embedding, topK: topK}
}

// Retrieve runs a scoped similarity search. An empty store is an empty
// result, not an error; callers treat it as "no context available". If the
// embedding provider is down, the engine falls back to lexical ranking over
// the same scope.
func (e *RetrievalEngine) Retrieve(ctx context.Context, query domain.RetrievalQuery) (*RetrievalResult, error) {
	if query.Scope.OwnerScope == "" {
		return nil, domain.ErrScopeRequired
	}
	if query.QueryText == "" && len(query.QueryEmbedding) == 0 {
		return nil, domain.ErrEmptyQuery
	}

	topK := query.TopK
	if topK <= 0 {
		topK = e.topK
	}

	embedding := query.QueryEmbedding
	if len(embedding) == 0 {
		if e.embedding == nil {
			return e.retrieveLexical(ctx, query, topK)
		}
		var err error
		embedding, err = e.embedding.GenerateEmbedding(ctx, query.QueryText)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("retrieval: embedding provider unavailable, falling back to lexical ranking: %v", err)
			return e.retrieveLexical(ctx, query, topK)
		}
	}

	chunks, err := e.repo.SearchSemantic(ctx, query.Scope, embedding, topK)
	if err != nil {
		return nil, err
	}

	return &RetrievalResult{Chunks: rankRetrieved(chunks, topK)}, nil
}

func (e *RetrievalEngine) retrieveLexical(ctx context.Context, query domain.RetrievalQuery, topK int) (*RetrievalResult, error) {
	chunks, err := e.repo.SearchLexical(ctx, query.Scope, query.QueryText, topK)
	if err != nil {
		return nil, err
	}
	return &RetrievalResult{Chunks: rankRetrieved(chunks, topK), Fallback: true}, nil
}

// rankRetrieved enforces descending similarity with the recency tie-break,
// regardless of how the repository ordered its rows, and truncates to topK.
func rankRetrieved(chunks []domain.RetrievedChunk, topK int) []domain.RetrievedChunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		if math.Abs(chunks[i].Similarity-chunks[j].Similarity) > similarityEpsilon {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		return chunks[i].Chunk.CreatedAt.After(chunks[j].Chunk.CreatedAt)
	})

	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks
}
