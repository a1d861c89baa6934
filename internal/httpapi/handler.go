// Package httpapi serves entity histories over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/export"
	"github.com/rpattn/wellhistory/internal/logging"
	"github.com/rpattn/wellhistory/internal/lookuploader"
	"github.com/rpattn/wellhistory/internal/middleware"
)

// HistoryBuilder builds the change history of one entity.
type HistoryBuilder interface {
	Build(ctx context.Context, ref domain.EntityRef) ([]domain.HistoryEntry, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// Codes backs the per request lookup loader. Nil leaves loader creation
	// to the history builder.
	Codes      lookuploader.CodeSource
	LookupWait time.Duration
	Logger     logging.Logger
}

// idKind says how the path id of a resource is validated.
type idKind int

const (
	numericID idKind = iota
	uuidID
)

var resources = []struct {
	path string
	kind domain.EntityKind
	id   idKind
}{
	{path: "aquifers", kind: domain.EntityKindAquifer, id: numericID},
	{path: "wells", kind: domain.EntityKindWell, id: numericID},
	{path: "organizations", kind: domain.EntityKindOrganization, id: uuidID},
	{path: "people", kind: domain.EntityKindPerson, id: uuidID},
}

// Handler serves history feeds.
type Handler struct {
	builder HistoryBuilder
}

// NewRouter wires the history, health and metrics endpoints behind the
// logging, lookup loader and CORS middleware.
func NewRouter(builder HistoryBuilder, opts Options) http.Handler {
	h := &Handler{builder: builder}

	mux := http.NewServeMux()
	for _, resource := range resources {
		mux.HandleFunc("GET /api/v1/"+resource.path+"/{id}/history", h.history(resource.kind, resource.id))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if opts.Codes != nil {
		handler = middleware.DataLoaderMiddleware(opts.Codes, opts.LookupWait)(handler)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New("http")
	}
	handler = middleware.LoggingMiddleware(logger)(handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Content-Disposition"},
	})
	return corsHandler.Handler(handler)
}

func (h *Handler) history(kind domain.EntityKind, id idKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.PathValue("id"))
		if err := validateID(raw, id); err != nil {
			http.Error(w, "invalid "+string(kind)+" identifier: "+err.Error(), http.StatusBadRequest)
			return
		}

		format := strings.ToLower(r.URL.Query().Get("format"))
		if format != "" && format != "json" && format != "xlsx" {
			http.Error(w, "unsupported format "+format, http.StatusBadRequest)
			return
		}

		ref := domain.EntityRef{Kind: kind, ID: raw}
		entries, err := h.builder.Build(r.Context(), ref)
		if err != nil {
			writeBuildError(w, r, ref, err)
			return
		}

		if format == "xlsx" {
			if err := export.ServeWorkbook(w, ref, entries); err != nil {
				logging.From(r.Context()).Errorf("failed to write workbook for %s: %v", ref, err)
			}
			return
		}
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func validateID(raw string, kind idKind) error {
	switch kind {
	case uuidID:
		_, err := uuid.Parse(raw)
		return err
	default:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		if n <= 0 {
			return errors.New("must be positive")
		}
		return nil
	}
}

func writeBuildError(w http.ResponseWriter, r *http.Request, ref domain.EntityRef, err error) {
	if errors.Is(err, domain.ErrEntityNotFound) {
		http.Error(w, ref.String()+" not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	logging.From(r.Context()).Errorf("failed to build history of %s: %v", ref, err)
	http.Error(w, "failed to build history", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
