package middleware

import (
	"context"
	"net/http"

	"github.com/grantpilot/grantpilot/internal/api"
)

type contextKey string

const (
	ScopeKey contextKey = "owner_scope"
	ActorKey contextKey = "actor"
)

// Header names supplied by the upstream gateway. Authentication happens
// there; this service only consumes the resolved identity.
const (
	ScopeHeader = "X-Grantpilot-Scope"
	ActorHeader = "X-Grantpilot-Actor"
)

// ScopeContext extracts the owner scope and actor identity from request
// headers and rejects requests without a scope.
func ScopeContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := r.Header.Get(ScopeHeader)
		if scope == "" {
			api.Error(w, http.StatusForbidden, "missing "+ScopeHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), ScopeKey, scope)
		if actor := r.Header.Get(ActorHeader); actor != "" {
			ctx = context.WithValue(ctx, ActorKey, actor)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetScope returns the owner scope from context.
func GetScope(ctx context.Context) string {
	scope, _ := ctx.Value(ScopeKey).(string)
	return scope
}

// GetActor returns the actor identity from context.
func GetActor(ctx context.Context) string {
	actor, _ := ctx.Value(ActorKey).(string)
	return actor
}
