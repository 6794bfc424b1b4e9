package domain

import (
	"fmt"
	"time"
)

// ApprovalStatus is the lifecycle state of an approval request.
// Pending transitions exactly once to Approved or Denied; requests are never
// deleted.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusDenied   ApprovalStatus = "denied"
)

// ApprovalRequest is an escalated response awaiting a human decision.
// OriginRequestID ties it to the originating query request so repeated
// escalation calls within the same request stay idempotent.
type ApprovalRequest struct {
	ID              string
	OwnerScope      string
	OriginRequestID string
	ResponseText    string
	Evaluation      EvaluationResult
	Sensitivity     SensitivityReport
	Status          ApprovalStatus
	CreatedAt       time.Time
	DecidedAt       *time.Time
	DecidedBy       string
	DecisionNotes   string
}

// AccessGrant is a time-limited permission record created when an approval
// request is approved. Expired or revoked grants become inert but are kept.
type AccessGrant struct {
	ID                string
	ApprovalRequestID string
	GranteeID         string
	ExpiresAt         time.Time
	Revoked           bool
	CreatedAt         time.Time
}

// Active reports whether the grant currently permits access.
func (g *AccessGrant) Active(now time.Time) bool {
	return !g.Revoked && now.Before(g.ExpiresAt)
}

// ValidateApprovalRequest validates an ApprovalRequest instance
func ValidateApprovalRequest(a *ApprovalRequest) error {
	if a == nil {
		return fmt.Errorf("approval request cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("approval request ID is required")
	}

	if a.OwnerScope == "" {
		return ErrScopeRequired
	}

	if a.OriginRequestID == "" {
		return fmt.Errorf("approval request OriginRequestID is required")
	}

	if !isValidApprovalStatus(a.Status) {
		return ErrInvalidApprovalStatus
	}

	return nil
}

// ValidateDecision checks a human decision before it is applied.
func ValidateDecision(status ApprovalStatus, actor, notes string) error {
	if status != ApprovalStatusApproved && status != ApprovalStatusDenied {
		return ErrInvalidDecision
	}

	if actor == "" {
		return NewDomainError(ErrCodeValidation, "deciding actor is required")
	}

	if status == ApprovalStatusDenied && notes == "" {
		return ErrEmptyDenialNotes
	}

	return nil
}

// isValidApprovalStatus checks if an ApprovalStatus is valid
func isValidApprovalStatus(s ApprovalStatus) bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusDenied:
		return true
	}
	return false
}
