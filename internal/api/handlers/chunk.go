package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grantpilot/grantpilot/internal/api"
	"github.com/grantpilot/grantpilot/internal/api/middleware"
	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/service"
)

type IngestServiceInterface interface {
	IngestChunk(ctx context.Context, input service.IngestInput) (*domain.KnowledgeChunk, error)
	DeleteDocumentChunks(ctx context.Context, ownerScope, sourceDocumentID, actor string) (int64, error)
}

// DocumentArchive removes archived source documents when their chunks are
// deleted. Nil when object storage is not configured.
type DocumentArchive interface {
	DeleteObject(ctx context.Context, key string) error
}

type ChunkHandler struct {
	svc     IngestServiceInterface
	archive DocumentArchive
}

func NewChunkHandler(svc IngestServiceInterface, archive DocumentArchive) *ChunkHandler {
	return &ChunkHandler{svc: svc, archive: archive}
}

type IngestChunkRequest struct {
	SourceDocumentID string    `json:"source_document_id"`
	Text             string    `json:"text"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

type IngestChunkResponse struct {
	ID               string `json:"id"`
	SourceDocumentID string `json:"source_document_id"`
	EmbeddingQueued  bool   `json:"embedding_queued"`
}

type DeleteChunksResponse struct {
	Deleted int64 `json:"deleted"`
}

// Ingest stores one knowledge chunk. When no embedding is supplied the
// chunk is queued for asynchronous embedding and excluded from semantic
// retrieval until that completes.
func (h *ChunkHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	scope := middleware.GetScope(r.Context())
	actor := middleware.GetActor(r.Context())

	var req IngestChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunk, err := h.svc.IngestChunk(r.Context(), service.IngestInput{
		OwnerScope:       scope,
		SourceDocumentID: req.SourceDocumentID,
		Text:             req.Text,
		Embedding:        req.Embedding,
		Actor:            actor,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestChunkResponse{
		ID:               chunk.ID,
		SourceDocumentID: chunk.SourceDocumentID,
		EmbeddingQueued:  len(chunk.Embedding) == 0,
	})
}

// DeleteDocument removes every chunk belonging to one source document
// within the caller's scope.
func (h *ChunkHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	scope := middleware.GetScope(r.Context())
	actor := middleware.GetActor(r.Context())
	documentID := chi.URLParam(r, "id")

	deleted, err := h.svc.DeleteDocumentChunks(r.Context(), scope, documentID, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if h.archive != nil {
		key := "documents/" + documentID
		if err := h.archive.DeleteObject(r.Context(), key); err != nil {
			log.Printf("document archive delete failed for %s: %v", key, err)
		}
	}

	api.Success(w, http.StatusOK, DeleteChunksResponse{Deleted: deleted})
}
