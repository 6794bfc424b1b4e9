package service

import (
	"context"
	"fmt"

	"github.com/grantpilot/grantpilot/internal/domain"
)

// EmbeddingChunkRepository defines the repository operations embedding
// generation needs.
type EmbeddingChunkRepository interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeChunk, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

// EmbeddingService fills in embeddings for chunks that were ingested without
// one. Called by the background worker.
type EmbeddingService struct {
	client EmbeddingClient
	repo   EmbeddingChunkRepository
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, repo EmbeddingChunkRepository) *EmbeddingService {
	return &EmbeddingService{
		client: client,
		repo:   repo,
	}
}

// GenerateEmbedding generates and stores an embedding for the given chunk ID.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, chunkID string) error {
	chunk, err := s.repo.GetByID(ctx, chunkID)
	if err != nil {
		return err
	}

	embedding, err := s.client.GenerateEmbedding(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	return s.repo.UpdateEmbedding(ctx, chunkID, embedding)
}
