package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestGuardDisabledPassesThrough(t *testing.T) {
	guard := NewGuard("")

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	rec := httptest.NewRecorder()

	guard.Protect(okHandler(&called))(rec, req)

	if !called {
		t.Fatal("handler should run when the guard is disabled")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestGuardRejectsMissingAndWrongToken(t *testing.T) {
	guard := NewGuard("s3cret")

	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic s3cret",
		"wrong token":    "Bearer nope",
		"empty token":    "Bearer ",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			var called bool
			req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()

			guard.Protect(okHandler(&called))(rec, req)

			if called {
				t.Fatal("handler should not run without a valid token")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestGuardAcceptsValidToken(t *testing.T) {
	guard := NewGuard("s3cret")

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()

	guard.Protect(okHandler(&called))(rec, req)

	if !called {
		t.Fatal("handler should run with a valid token")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
