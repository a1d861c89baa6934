// Package lookuploader batches code table lookups made while a history is
// normalized.
package lookuploader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graph-gophers/dataloader"
)

// DefaultWait is how long the loader collects keys before it queries.
const DefaultWait = 2 * time.Millisecond

// CodeSource resolves code table rows.
type CodeSource interface {
	GetCodes(ctx context.Context, table string, codes []string) (map[string]map[string]any, error)
}

// CodeRef addresses one code table row.
type CodeRef struct {
	Table string
	Code  string
}

func (r CodeRef) key() dataloader.Key {
	return dataloader.StringKey(r.Table + "/" + r.Code)
}

func parseKey(key string) (CodeRef, error) {
	table, code, ok := strings.Cut(key, "/")
	if !ok || table == "" {
		return CodeRef{}, fmt.Errorf("invalid code key %q", key)
	}
	return CodeRef{Table: table, Code: code}, nil
}

// CodeLoader batches and caches code table reads for the lifetime of one
// request.
type CodeLoader struct {
	Loader *dataloader.Loader
}

// New creates a loader that reads from source. A non-positive wait uses
// DefaultWait.
func New(source CodeSource, wait time.Duration) *CodeLoader {
	if wait <= 0 {
		wait = DefaultWait
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))
		refs := make([]CodeRef, len(keys))
		byTable := make(map[string][]string)
		for i, k := range keys {
			ref, err := parseKey(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			refs[i] = ref
			byTable[ref.Table] = append(byTable[ref.Table], ref.Code)
		}

		found := make(map[string]map[string]map[string]any, len(byTable))
		failed := make(map[string]error)
		for table, codes := range byTable {
			rows, err := source.GetCodes(ctx, table, codes)
			if err != nil {
				failed[table] = err
				continue
			}
			found[table] = rows
		}

		for i, ref := range refs {
			if results[i] != nil {
				continue
			}
			if err, ok := failed[ref.Table]; ok {
				results[i] = &dataloader.Result{Error: err}
				continue
			}
			if row, ok := found[ref.Table][ref.Code]; ok {
				results[i] = &dataloader.Result{Data: row}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(wait))

	return &CodeLoader{Loader: loader}
}

// Load returns the attributes of one code table row. ok is false when the
// code does not exist.
func (l *CodeLoader) Load(ctx context.Context, table, code string) (map[string]any, bool, error) {
	data, err := l.Loader.Load(ctx, CodeRef{Table: table, Code: code}.key())()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s code %s: %w", table, code, err)
	}
	row, ok := data.(map[string]any)
	if !ok || row == nil {
		return nil, false, nil
	}
	return row, true, nil
}

// Prefetch loads every ref in one batch so later Load calls are served from
// the cache.
func (l *CodeLoader) Prefetch(ctx context.Context, refs []CodeRef) error {
	if len(refs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(refs))
	keys := make(dataloader.Keys, 0, len(refs))
	for _, ref := range refs {
		key := ref.key()
		if _, dup := seen[key.String()]; dup {
			continue
		}
		seen[key.String()] = struct{}{}
		keys = append(keys, key)
	}

	if _, errs := l.Loader.LoadMany(ctx, keys)(); len(errs) > 0 {
		for _, err := range errs {
			if err != nil {
				return fmt.Errorf("failed to prefetch codes: %w", err)
			}
		}
	}
	return nil
}

type ctxKey string

const codeLoaderKey ctxKey = "codeLoader"

// WithLoader stores the loader in the context.
func WithLoader(ctx context.Context, loader *CodeLoader) context.Context {
	return context.WithValue(ctx, codeLoaderKey, loader)
}

// FromContext retrieves the loader stored in the context, if any.
func FromContext(ctx context.Context) *CodeLoader {
	if l, ok := ctx.Value(codeLoaderKey).(*CodeLoader); ok {
		return l
	}
	return nil
}
