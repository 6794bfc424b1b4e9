package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence and scoped search of knowledge chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.KnowledgeChunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var embedding any
	if len(c.Embedding) > 0 {
		embedding = pgvector.NewVector(c.Embedding)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_chunks (id, owner_scope, source_document_id, text, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OwnerScope, c.SourceDocumentID, c.Text, embedding, createdAt,
	)
	return err
}

func (r *ChunkRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeChunk, error) {
	var c domain.KnowledgeChunk
	var embedding *pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, owner_scope, source_document_id, text, embedding, created_at
		 FROM knowledge_chunks WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerScope, &c.SourceDocumentID, &c.Text, &embedding, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return &c, nil
}

// UpdateEmbedding stores a computed embedding for a chunk. The chunk becomes
// visible to semantic search atomically with this update.
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET embedding = $2 WHERE id = $1`,
		id, pgvector.NewVector(embedding),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// DeleteBySourceDocument removes every chunk owned by a source document
// within a scope. Chunks are owned exclusively by their document, so deleting
// the document cascades here.
func (r *ChunkRepository) DeleteBySourceDocument(ctx context.Context, ownerScope, sourceDocumentID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE owner_scope = $1 AND source_document_id = $2`,
		ownerScope, sourceDocumentID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SearchSemantic returns the top-K chunks for a scope ranked by cosine
// similarity. The scope filter is part of the WHERE clause so out-of-scope
// chunks never enter ranking. Ties within float precision break toward the
// more recently created chunk.
func (r *ChunkRepository) SearchSemantic(ctx context.Context, scope domain.RetrievalScope, embedding []float32, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT id, owner_scope, source_document_id, text, created_at,
		       1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM knowledge_chunks
		WHERE owner_scope = $2 AND embedding IS NOT NULL`
	args := []any{vec, scope.OwnerScope}

	if scope.SourceDocumentID != "" {
		query += ` AND source_document_id = $3`
		args = append(args, scope.SourceDocumentID)
	}

	query += fmt.Sprintf(`
		ORDER BY score DESC, created_at DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, topK)

	return r.queryRetrieved(ctx, query, args...)
}

// SearchLexical ranks chunks by full-text relevance over the same scoped
// rows. Used as the fallback when the embedding provider is unavailable.
func (r *ChunkRepository) SearchLexical(ctx context.Context, scope domain.RetrievalScope, queryText string, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT id, owner_scope, source_document_id, text, created_at,
		       ts_rank_cd(to_tsvector('english', text), plainto_tsquery('english', $1))::float8 AS score
		FROM knowledge_chunks
		WHERE owner_scope = $2
		  AND to_tsvector('english', text) @@ plainto_tsquery('english', $1)`
	args := []any{queryText, scope.OwnerScope}

	if scope.SourceDocumentID != "" {
		query += ` AND source_document_id = $3`
		args = append(args, scope.SourceDocumentID)
	}

	query += fmt.Sprintf(`
		ORDER BY score DESC, created_at DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, topK)

	return r.queryRetrieved(ctx, query, args...)
}

func (r *ChunkRepository) queryRetrieved(ctx context.Context, query string, args ...any) ([]domain.RetrievedChunk, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0)
	for rows.Next() {
		var rc domain.RetrievedChunk
		if err := rows.Scan(
			&rc.Chunk.ID,
			&rc.Chunk.OwnerScope,
			&rc.Chunk.SourceDocumentID,
			&rc.Chunk.Text,
			&rc.Chunk.CreatedAt,
			&rc.Similarity,
		); err != nil {
			return nil, err
		}
		results = append(results, rc)
	}

	return results, rows.Err()
}
