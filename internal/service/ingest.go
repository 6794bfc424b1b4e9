package service

import (
	"context"
	"strconv"
	"time"

	"github.com/grantpilot/grantpilot/internal/domain"
)

// IngestInput is one chunk delivered by the external document-ingestion
// collaborator. Embedding is optional; when absent an embedding job is
// queued and the chunk stays invisible to semantic retrieval until the job
// completes.
type IngestInput struct {
	OwnerScope       string
	SourceDocumentID string
	Text             string
	Embedding        []float32
	Actor            string
}

// IngestService accepts chunks into the knowledge store.
type IngestService struct {
	txRunner   TxRunner
	dimensions int
	uuidGen    UUIDGenerator
	now        func() time.Time
}

func NewIngestService(txRunner TxRunner, dimensions int, uuidGen UUIDGenerator) *IngestService {
	return &IngestService{
		txRunner:   txRunner,
		dimensions: dimensions,
		uuidGen:    uuidGen,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IngestChunk stores one chunk. The insert, the optional embedding job, and
// the audit entry commit together.
func (s *IngestService) IngestChunk(ctx context.Context, input IngestInput) (*domain.KnowledgeChunk, error) {
	chunk := domain.NewKnowledgeChunk(
		s.uuidGen.NewString(),
		input.OwnerScope,
		input.SourceDocumentID,
		input.Text,
		input.Embedding,
		s.now(),
	)

	if err := domain.ValidateKnowledgeChunk(chunk, s.dimensions); err != nil {
		if _, ok := err.(*domain.DomainError); ok {
			return nil, err
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid knowledge chunk", err)
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().Create(ctx, chunk); err != nil {
			return err
		}

		embeddingQueued := false
		if len(chunk.Embedding) == 0 {
			job := domain.NewEmbeddingJob(s.uuidGen.NewString(), chunk.ID, s.now())
			if err := repos.EmbeddingJobs().Create(ctx, job); err != nil {
				return err
			}
			embeddingQueued = true
		}

		return repos.Audit().Append(ctx, &domain.AuditEntry{
			ID:         s.uuidGen.NewString(),
			Timestamp:  s.now(),
			OwnerScope: chunk.OwnerScope,
			Actor:      input.Actor,
			Action:     domain.AuditChunkIngested,
			SubjectID:  chunk.ID,
			Details: map[string]string{
				"source_document_id": chunk.SourceDocumentID,
				"embedding_queued":   strconv.FormatBool(embeddingQueued),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return chunk, nil
}

// DeleteDocumentChunks removes all chunks a source document produced within
// a scope. Returns how many chunks were deleted.
func (s *IngestService) DeleteDocumentChunks(ctx context.Context, ownerScope, sourceDocumentID, actor string) (int64, error) {
	if ownerScope == "" {
		return 0, domain.ErrScopeRequired
	}
	if sourceDocumentID == "" {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, "source document ID is required")
	}

	var deleted int64
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		n, err := repos.Chunks().DeleteBySourceDocument(ctx, ownerScope, sourceDocumentID)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}
