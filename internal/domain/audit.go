package domain

import "time"

// AuditAction identifies the state transition an audit entry records.
type AuditAction string

const (
	AuditRetrievalPerformed AuditAction = "retrieval.performed"
	AuditRetrievalFallback  AuditAction = "retrieval.fallback"
	AuditEvaluationComputed AuditAction = "evaluation.computed"
	AuditDecisionMade       AuditAction = "decision.made"
	AuditApprovalCreated    AuditAction = "approval.created"
	AuditApprovalDecided    AuditAction = "approval.decided"
	AuditGrantIssued        AuditAction = "grant.issued"
	AuditGrantRevoked       AuditAction = "grant.revoked"
	AuditChunkIngested      AuditAction = "chunk.ingested"
)

// AuditEntry is one append-only record of a state transition. Entries are
// never mutated or deleted.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	OwnerScope string
	Actor      string
	Action     AuditAction
	SubjectID  string
	Details    map[string]string
}
