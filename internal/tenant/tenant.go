package tenant

import (
	"context"
	"net/http"
	"strings"
)

// DefaultDomainID is used for single-tenant deployments and backwards compatibility.
const DefaultDomainID = "default"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const domainContextKey contextKey = "domain-id"

// FromContext retrieves the tenant domain ID from the request context.
// Returns DefaultDomainID if no domain is set.
func FromContext(ctx context.Context) string {
	if domainID, ok := ctx.Value(domainContextKey).(string); ok && domainID != "" {
		return domainID
	}
	return DefaultDomainID
}

// WithDomain adds the tenant domain ID to the context.
func WithDomain(ctx context.Context, domainID string) context.Context {
	if domainID == "" {
		domainID = DefaultDomainID
	}
	return context.WithValue(ctx, domainContextKey, domainID)
}

// Extraction handles tenant domain extraction from HTTP requests.
// Supported methods, in priority order:
//  1. X-Domain-ID header (explicit)
//  2. Subdomain (acme.api.authport.dev -> acme)
//  3. Default domain for single-tenant deployments
func Extraction(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		domainID := extractDomainID(r)

		w.Header().Set("X-Domain-ID", domainID)

		ctx := WithDomain(r.Context(), domainID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractDomainID resolves the tenant domain from the request.
func extractDomainID(r *http.Request) string {
	if id := r.Header.Get("X-Domain-ID"); id != "" {
		return id
	}

	// A host like acme.api.authport.dev carries the tenant in its first label.
	host := r.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 3 && parts[0] != "www" && parts[0] != "api" {
		return parts[0]
	}

	return DefaultDomainID
}
