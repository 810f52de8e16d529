package postgres

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestWithHTTPMethod_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "POST")
	got := httpMethodFromContext(ctx)
	if got != "POST" {
		t.Errorf("httpMethodFromContext = %q, want %q", got, "POST")
	}
}

func TestWithHTTPMethod_Empty(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "")
	got := httpMethodFromContext(ctx)
	if got != "" {
		t.Errorf("httpMethodFromContext = %q, want empty", got)
	}
}

func TestSetQueryObserver(t *testing.T) {
	t.Parallel()

	// Save and restore the global to avoid test pollution.
	defer SetQueryObserver(nil)

	called := false
	obs := QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		called = true
	})

	SetQueryObserver(obs)
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "GET", "/test", "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	got = getQueryObserver()
	if got != nil {
		t.Errorf("expected nil observer after Set(nil), got %v", got)
	}
}

func TestRoutePatternFromContext(t *testing.T) {
	t.Parallel()

	if got := routePatternFromContext(context.Background()); got != "" {
		t.Errorf("plain context route = %q, want empty", got)
	}

	var got string
	r := chi.NewRouter()
	r.Get("/api/v1/alerts/{id}", func(w http.ResponseWriter, req *http.Request) {
		got = routePatternFromContext(req.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/01HXYZ", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got != "/api/v1/alerts/{id}" {
		t.Errorf("route pattern = %q, want /api/v1/alerts/{id}", got)
	}
}
