package middleware

import (
	"net/http"
	"time"

	"github.com/rpattn/wellhistory/internal/lookuploader"
)

// DataLoaderMiddleware attaches a fresh code loader to every request so
// lookups are batched and cached for that request only.
func DataLoaderMiddleware(source lookuploader.CodeSource, wait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := lookuploader.New(source, wait)
			ctx := lookuploader.WithLoader(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
