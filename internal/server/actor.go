package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// Headers carrying the identity a request acts for. Authentication happens upstream.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type actorKey struct{}

// withActor stores the caller identity from the request headers, if any
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role: strings.TrimSpace(r.Header.Get(HeaderActorRole)),
		}
		if actor.ID != "" {
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, actor))
		}
		next.ServeHTTP(w, r)
	})
}

// requireActor rejects mutating requests that do not say who they act for
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFrom(r.Context()); !ok {
			renderError(w, r, fmt.Errorf("%w: the %s header is required", errUnauthorized, HeaderActorID))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}
