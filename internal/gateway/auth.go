// Package gateway implements the edge HTTP service: authentication,
// authorization, rate limiting, and the public API surface described in
// spec.md §4.5 and §6. Grounded on api/pkg/openai/rate_limiter.go for the
// window/counter shape and api/pkg/server's gorilla/mux conventions.
package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/inferna-ai/inferna/internal/apierr"
	"github.com/inferna-ai/inferna/internal/types"
)

type contextKey string

const apiKeyContextKey contextKey = "gateway.apiKey"

// KeyStore is an in-memory API key registry. Grounded on the teacher's
// keystore-lookup pattern in api/pkg/auth (simple map, name+permissions).
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]*types.ApiKey
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]*types.ApiKey)}
}

// Add registers key with name and permissions, overwriting any existing
// entry for the same key value.
func (s *KeyStore) Add(key, name string, permissions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = &types.ApiKey{Key: key, Name: name, Permissions: permissions, CreatedAt: time.Now()}
}

func (s *KeyStore) lookup(key string) (*types.ApiKey, bool) {
	s.mu.RLock()
	entry, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	entry.LastUsed = time.Now()
	s.mu.Unlock()
	return entry, true
}

// extractAPIKey reads X-Api-Key or "Authorization: Bearer <key>".
func extractAPIKey(r *http.Request) string {
	if k := r.Header.Get("X-Api-Key"); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Authenticate returns middleware that resolves the caller's API key and
// attaches it to the request context. When enabled is false, every request
// passes through unauthenticated (spec.md §4.5's global-disable switch).
func Authenticate(store *KeyStore, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(rw, r)
				return
			}
			key := extractAPIKey(r)
			entry, ok := store.lookup(key)
			if !ok {
				writeError(rw, apierr.ErrUnauthenticated)
				return
			}
			ctx := context.WithValue(r.Context(), apiKeyContextKey, entry)
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// callerFromContext returns the authenticated caller, if any.
func callerFromContext(ctx context.Context) (*types.ApiKey, bool) {
	entry, ok := ctx.Value(apiKeyContextKey).(*types.ApiKey)
	return entry, ok
}

// Authorize returns middleware requiring the authenticated caller to hold
// permission (or the "*" wildcard). When auth is globally disabled no
// caller is attached to the context, so Authorize passes every request
// through — authentication and authorization are disabled together.
func Authorize(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			caller, ok := callerFromContext(r.Context())
			if !ok {
				next.ServeHTTP(rw, r)
				return
			}
			if !caller.HasPermission(permission) {
				writeError(rw, apierr.ErrForbidden)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}
