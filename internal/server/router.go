package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grantpilot/grantpilot/internal/api"
	"github.com/grantpilot/grantpilot/internal/api/handlers"
	"github.com/grantpilot/grantpilot/internal/api/middleware"
)

type RouterConfig struct {
	QueryHandler    *handlers.QueryHandler
	ApprovalHandler *handlers.ApprovalHandler
	GrantHandler    *handlers.GrantHandler
	ChunkHandler    *handlers.ChunkHandler
	AuditHandler    *handlers.AuditHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ScopeContext)

		r.Post("/query", cfg.QueryHandler.Submit)

		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", cfg.ApprovalHandler.ListPending)
			r.Get("/{id}", cfg.ApprovalHandler.Get)
			r.Post("/{id}/decision", cfg.ApprovalHandler.Decide)
		})

		r.Route("/grants", func(r chi.Router) {
			r.Get("/{id}", cfg.GrantHandler.Get)
			r.Post("/{id}/revoke", cfg.GrantHandler.Revoke)
			r.Get("/{id}/content", cfg.GrantHandler.Content)
		})

		r.Post("/chunks", cfg.ChunkHandler.Ingest)
		r.Delete("/documents/{id}/chunks", cfg.ChunkHandler.DeleteDocument)

		r.Get("/audit", cfg.AuditHandler.List)
	})

	return r
}
