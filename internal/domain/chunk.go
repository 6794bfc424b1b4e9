package domain

import (
	"fmt"
	"time"
)

// KnowledgeChunk is a scoped text segment with its vector embedding.
// Chunks are immutable once created and owned exclusively by the source
// document that produced them.
type KnowledgeChunk struct {
	ID               string
	OwnerScope       string
	SourceDocumentID string
	Text             string
	Embedding        []float32
	CreatedAt        time.Time
}

// RetrievalScope limits a retrieval query to an owner scope, optionally
// narrowed to a single source document.
type RetrievalScope struct {
	OwnerScope       string
	SourceDocumentID string
}

// RetrievalQuery is the ephemeral input to the retrieval engine. It is never
// persisted.
type RetrievalQuery struct {
	QueryText      string
	QueryEmbedding []float32
	Scope          RetrievalScope
	TopK           int
}

// RetrievedChunk pairs a chunk with its similarity to the query.
type RetrievedChunk struct {
	Chunk      KnowledgeChunk
	Similarity float64
}

// NewKnowledgeChunk creates a new KnowledgeChunk instance
func NewKnowledgeChunk(id, ownerScope, sourceDocumentID, text string, embedding []float32, createdAt time.Time) *KnowledgeChunk {
	return &KnowledgeChunk{
		ID:               id,
		OwnerScope:       ownerScope,
		SourceDocumentID: sourceDocumentID,
		Text:             text,
		Embedding:        embedding,
		CreatedAt:        createdAt,
	}
}

// ValidateKnowledgeChunk validates a KnowledgeChunk instance. The expected
// embedding dimensionality is fixed system-wide; a zero-length embedding is
// allowed and means the embedding has not been computed yet.
func ValidateKnowledgeChunk(c *KnowledgeChunk, dimensions int) error {
	if c == nil {
		return fmt.Errorf("knowledge chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("knowledge chunk ID is required")
	}

	if c.OwnerScope == "" {
		return ErrScopeRequired
	}

	if c.SourceDocumentID == "" {
		return fmt.Errorf("knowledge chunk SourceDocumentID is required")
	}

	if c.Text == "" {
		return fmt.Errorf("knowledge chunk Text is required")
	}

	if len(c.Embedding) != 0 && len(c.Embedding) != dimensions {
		return ErrEmbeddingDimension
	}

	return nil
}
