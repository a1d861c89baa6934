package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/export"
	"github.com/rpattn/wellhistory/internal/history"
	"github.com/rpattn/wellhistory/internal/lookuploader"
	"github.com/rpattn/wellhistory/internal/repository/fixtures"
	"github.com/rpattn/wellhistory/internal/repository/memory"
	"github.com/rpattn/wellhistory/internal/schema"
)

type stubBuilder struct {
	entries []domain.HistoryEntry
	err     error
	lastRef domain.EntityRef
	loader  *lookuploader.CodeLoader
}

func (s *stubBuilder) Build(ctx context.Context, ref domain.EntityRef) ([]domain.HistoryEntry, error) {
	s.lastRef = ref
	s.loader = lookuploader.FromContext(ctx)
	return s.entries, s.err
}

func serve(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHistoryStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{name: "ok", target: "/api/v1/aquifers/42/history", want: http.StatusOK},
		{name: "not found", target: "/api/v1/wells/9/history", err: fmt.Errorf("well 9: %w", domain.ErrEntityNotFound), want: http.StatusNotFound},
		{name: "store failure", target: "/api/v1/wells/9/history", err: errors.New("connection refused"), want: http.StatusInternalServerError},
		{name: "non numeric well", target: "/api/v1/wells/abc/history", want: http.StatusBadRequest},
		{name: "negative aquifer", target: "/api/v1/aquifers/-1/history", want: http.StatusBadRequest},
		{name: "bad person id", target: "/api/v1/people/123/history", want: http.StatusBadRequest},
		{name: "bad format", target: "/api/v1/aquifers/42/history?format=csv", want: http.StatusBadRequest},
		{name: "unknown route", target: "/api/v1/licences/1/history", want: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(&stubBuilder{err: tc.err}, Options{})
			rec := serve(t, router, tc.target)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHistoryPassesKindAndID(t *testing.T) {
	builder := &stubBuilder{}
	router := NewRouter(builder, Options{})

	id := "0b6b4b3e-7d3c-4bd4-9d5e-1d2f0a9c8e11"
	rec := serve(t, router, "/api/v1/organizations/"+id+"/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if builder.lastRef != (domain.EntityRef{Kind: domain.EntityKindOrganization, ID: id}) {
		t.Fatalf("unexpected ref %v", builder.lastRef)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected an empty list, got %s", rec.Body.String())
	}
}

func TestHistoryAttachesLoaderWhenCodesConfigured(t *testing.T) {
	db, err := memory.New()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	builder := &stubBuilder{}
	router := NewRouter(builder, Options{Codes: db})

	serve(t, router, "/api/v1/wells/123/history")
	if builder.loader == nil {
		t.Fatal("expected a lookup loader in the request context")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := NewRouter(&stubBuilder{}, Options{})

	if rec := serve(t, router, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}
	if rec := serve(t, router, "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	router := NewRouter(&stubBuilder{}, Options{AllowedOrigins: []string{"https://gwells.example"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://gwells.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://gwells.example" {
		t.Fatalf("expected origin to be allowed, got %q", got)
	}
}

func seededRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := memory.New()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	fixture, err := fixtures.Sample()
	if err != nil {
		t.Fatalf("failed to read sample: %v", err)
	}
	if err := db.LoadFixture(context.Background(), fixture); err != nil {
		t.Fatalf("failed to load sample: %v", err)
	}
	registry, err := schema.DefaultRegistry()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	engine := history.NewEngine(registry, db, history.WithLookupWait(time.Millisecond))
	return NewRouter(engine, Options{Codes: db, LookupWait: time.Millisecond})
}

func TestAquiferHistoryEndToEnd(t *testing.T) {
	rec := serve(t, seededRouter(t), "/api/v1/aquifers/42/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var entries []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	last := entries[len(entries)-1]
	if last["created"] != true || last["user"] != "creator" || last["date"] != "2018-01-01T09:00:00Z" {
		t.Fatalf("unexpected creation entry %v", last)
	}
	if _, ok := entries[0]["created"]; ok {
		t.Fatalf("created must be omitted on change entries: %v", entries[0])
	}

	if rec := serve(t, seededRouter(t), "/api/v1/aquifers/999/history"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing aquifer, got %d", rec.Code)
	}
}

func TestWellHistoryAsWorkbook(t *testing.T) {
	rec := serve(t, seededRouter(t), "/api/v1/wells/123/history?format=xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != export.MimeType {
		t.Fatalf("unexpected content type %s", got)
	}
}
