package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromContextDefault(t *testing.T) {
	if got := FromContext(context.Background()); got != DefaultDomainID {
		t.Errorf("expected default domain, got %q", got)
	}
}

func TestWithDomainRoundTrip(t *testing.T) {
	ctx := WithDomain(context.Background(), "acme")
	if got := FromContext(ctx); got != "acme" {
		t.Errorf("expected acme, got %q", got)
	}

	// Empty domain falls back to the default.
	ctx = WithDomain(context.Background(), "")
	if got := FromContext(ctx); got != DefaultDomainID {
		t.Errorf("expected default domain, got %q", got)
	}
}

func TestExtraction(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		header string
		want   string
	}{
		{"explicit header", "api.authport.dev", "acme", "acme"},
		{"header wins over subdomain", "globex.api.authport.dev", "acme", "acme"},
		{"subdomain", "acme.api.authport.dev", "", "acme"},
		{"subdomain with port", "acme.api.authport.dev:8080", "", "acme"},
		{"www ignored", "www.authport.dev", "", DefaultDomainID},
		{"api ignored", "api.authport.dev", "", DefaultDomainID},
		{"bare host", "localhost", "", DefaultDomainID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := Extraction(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			if tt.header != "" {
				req.Header.Set("X-Domain-ID", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got != tt.want {
				t.Errorf("expected domain %q, got %q", tt.want, got)
			}
			if echo := rec.Header().Get("X-Domain-ID"); echo != tt.want {
				t.Errorf("expected echoed domain %q, got %q", tt.want, echo)
			}
		})
	}
}
