package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/lookuploader"
)

type noCodes struct{}

func (noCodes) GetCodes(context.Context, string, []string) (map[string]map[string]any, error) {
	return nil, nil
}

func TestLoggingMiddlewareAssignsRequestID(t *testing.T) {
	var seen logging.Logger
	handler := LoggingMiddleware(logging.New("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.From(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if _, err := uuid.Parse(rec.Header().Get(RequestIDHeader)); err != nil {
		t.Fatalf("expected a uuid request id, got %q", rec.Header().Get(RequestIDHeader))
	}
	if seen == nil || seen == logging.DefaultLogger() {
		t.Fatal("expected a request scoped logger in the context")
	}
}

func TestLoggingMiddlewareKeepsClientRequestID(t *testing.T) {
	id := uuid.NewString()
	handler := LoggingMiddleware(logging.New("test"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Fatalf("expected request id %s, got %s", id, got)
	}
}

func TestDataLoaderMiddlewareCreatesLoaderPerRequest(t *testing.T) {
	var loaders []*lookuploader.CodeLoader
	handler := DataLoaderMiddleware(noCodes{}, 0)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		loaders = append(loaders, lookuploader.FromContext(r.Context()))
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if len(loaders) != 2 || loaders[0] == nil || loaders[1] == nil {
		t.Fatalf("expected a loader on every request, got %v", loaders)
	}
	if loaders[0] == loaders[1] {
		t.Fatal("expected distinct loaders per request")
	}
}
