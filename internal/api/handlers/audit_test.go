package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/pagination"
	"github.com/grantpilot/grantpilot/internal/repository"
)

type MockAuditLister struct {
	mock.Mock
}

func (m *MockAuditLister) ListByScope(ctx context.Context, ownerScope string, cursor *pagination.Cursor, limit int) (*repository.AuditPageResult, error) {
	args := m.Called(ctx, ownerScope, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.AuditPageResult), args.Error(1)
}

func auditPage(entries ...*domain.AuditEntry) *repository.AuditPageResult {
	return &repository.AuditPageResult{Items: entries}
}

func TestAuditHandler_List(t *testing.T) {
	entry := &domain.AuditEntry{
		ID:         "audit-1",
		Timestamp:  time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		OwnerScope: "scope-a",
		Actor:      "writer-1",
		Action:     domain.AuditDecisionMade,
		SubjectID:  "req-1",
		Details:    map[string]string{"state": "accepted"},
	}

	t.Run("default page size", func(t *testing.T) {
		mockRepo := new(MockAuditLister)
		handler := NewAuditHandler(mockRepo)

		mockRepo.On("ListByScope", mock.Anything, "scope-a", (*pagination.Cursor)(nil), 50).
			Return(auditPage(entry), nil)

		w := httptest.NewRecorder()
		handler.List(w, requestWithScope(http.MethodGet, "/audit", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp["data"].(map[string]interface{})
		entries := data["entries"].([]interface{})
		require.Len(t, entries, 1)
		first := entries[0].(map[string]interface{})
		assert.Equal(t, "audit-1", first["id"])
		assert.Equal(t, string(domain.AuditDecisionMade), first["action"])
		assert.Equal(t, false, data["has_more"])
		mockRepo.AssertExpectations(t)
	})

	t.Run("explicit limit", func(t *testing.T) {
		mockRepo := new(MockAuditLister)
		handler := NewAuditHandler(mockRepo)

		mockRepo.On("ListByScope", mock.Anything, "scope-a", (*pagination.Cursor)(nil), 10).
			Return(auditPage(), nil)

		w := httptest.NewRecorder()
		handler.List(w, requestWithScope(http.MethodGet, "/audit?limit=10", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("limit is capped", func(t *testing.T) {
		mockRepo := new(MockAuditLister)
		handler := NewAuditHandler(mockRepo)

		mockRepo.On("ListByScope", mock.Anything, "scope-a", (*pagination.Cursor)(nil), 200).
			Return(auditPage(), nil)

		w := httptest.NewRecorder()
		handler.List(w, requestWithScope(http.MethodGet, "/audit?limit=1000", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		mockRepo.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		handler := NewAuditHandler(new(MockAuditLister))

		w := httptest.NewRecorder()
		handler.List(w, requestWithScope(http.MethodGet, "/audit?limit=abc", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cursor round trip", func(t *testing.T) {
		mockRepo := new(MockAuditLister)
		handler := NewAuditHandler(mockRepo)

		ts := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
		encoded := pagination.EncodeCursor("audit-0", ts)

		mockRepo.On("ListByScope", mock.Anything, "scope-a",
			mock.MatchedBy(func(c *pagination.Cursor) bool {
				return c != nil && c.LastID == "audit-0" && c.Timestamp.Equal(ts)
			}), 50).
			Return(&repository.AuditPageResult{
				Items:      []*domain.AuditEntry{entry},
				NextCursor: pagination.EncodeCursor("audit-1", entry.Timestamp),
				HasMore:    true,
			}, nil)

		w := httptest.NewRecorder()
		handler.List(w, requestWithScope(http.MethodGet, "/audit?cursor="+encoded, nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, true, data["has_more"])
		assert.NotEmpty(t, data["cursor"])
	})

	t.Run("invalid cursor", func(t *testing.T) {
		handler := NewAuditHandler(new(MockAuditLister))

		w := httptest.NewRecorder()
		handler.List(w, requestWithScope(http.MethodGet, "/audit?cursor=%21%21not-base64", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
