package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/grantpilot/grantpilot/internal/domain"
)

// ApprovalRepositoryInterface defines approval request persistence.
type ApprovalRepositoryInterface interface {
	Create(ctx context.Context, a *domain.ApprovalRequest) (*domain.ApprovalRequest, error)
	GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	GetByOriginRequestID(ctx context.Context, originRequestID string) (*domain.ApprovalRequest, error)
	Decide(ctx context.Context, id string, status domain.ApprovalStatus, actor, notes string, decidedAt time.Time) (*domain.ApprovalRequest, error)
	ListPending(ctx context.Context, ownerScope string) ([]*domain.ApprovalRequest, error)
}

// GrantRepositoryInterface defines access grant persistence.
type GrantRepositoryInterface interface {
	Create(ctx context.Context, g *domain.AccessGrant) error
	GetByID(ctx context.Context, id string) (*domain.AccessGrant, error)
	Revoke(ctx context.Context, id string) (bool, error)
}

// AuditRepositoryInterface appends audit entries.
type AuditRepositoryInterface interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
}

// ChunkWriteRepositoryInterface defines chunk writes used inside transactions.
type ChunkWriteRepositoryInterface interface {
	Create(ctx context.Context, c *domain.KnowledgeChunk) error
	DeleteBySourceDocument(ctx context.Context, ownerScope, sourceDocumentID string) (int64, error)
}

// EmbeddingJobWriteRepositoryInterface defines embedding job writes used
// inside transactions.
type EmbeddingJobWriteRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Approvals() ApprovalRepositoryInterface
	Grants() GrantRepositoryInterface
	Audit() AuditRepositoryInterface
	Chunks() ChunkWriteRepositoryInterface
	EmbeddingJobs() EmbeddingJobWriteRepositoryInterface
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
