// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"net/http"
)

// tenantContextKey is an unexported type so values stashed under it
// can't collide with keys set by other packages sharing the request
// context.
type tenantContextKey struct{}

// orgHeader is the header a tenant-resolving auth layer is expected to
// set once it has authenticated the caller and resolved which
// organization they act on behalf of. Authentication/session
// management itself is an external collaborator per spec (§ scope);
// this package only consumes its output.
const orgHeader = "X-Org-ID"

// TenantFromContext returns the org_id the request is scoped to and
// whether one was present. Every handler in this package that touches
// tenant-scoped storage calls this before doing any work.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(tenantContextKey{}).(string)
	return tenant, ok && tenant != ""
}

// withTenant is a test/dev helper that injects a tenant directly into
// a context, bypassing TenantMiddleware's header parsing. Handler
// tests in this package use it in place of standing up the real auth
// layer.
func withTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantMiddleware resolves the X-Org-ID header an upstream auth proxy
// is expected to set, and stores it on the request context for
// TenantFromContext. Requests missing the header are rejected before
// reaching any handler, since every operation in this package is
// tenant-scoped.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(orgHeader)
		if tenant == "" {
			writeError(w, http.StatusUnauthorized, "missing "+orgHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenant)))
	})
}
