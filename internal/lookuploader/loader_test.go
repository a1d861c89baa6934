package lookuploader

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	rows  map[string]map[string]map[string]any
	err   error
}

func (s *countingSource) GetCodes(_ context.Context, table string, codes []string) (map[string]map[string]any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]map[string]any{}
	for _, code := range codes {
		if row, ok := s.rows[table][code]; ok {
			out[code] = row
		}
	}
	return out, nil
}

func newSource() *countingSource {
	return &countingSource{rows: map[string]map[string]map[string]any{
		"aquifer_material": {
			"SG": {"description": "Sand and Gravel"},
			"G":  {"description": "Gravel"},
		},
		"water_use": {
			"DOM": {"description": "Domestic"},
		},
	}}
}

func TestPrefetchBatchesPerTable(t *testing.T) {
	source := newSource()
	loader := New(source, 0)
	ctx := context.Background()

	err := loader.Prefetch(ctx, []CodeRef{
		{Table: "aquifer_material", Code: "SG"},
		{Table: "aquifer_material", Code: "G"},
		{Table: "aquifer_material", Code: "SG"},
		{Table: "water_use", Code: "DOM"},
	})
	if err != nil {
		t.Fatalf("unexpected prefetch error: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected one query per table, got %d", source.calls)
	}

	row, ok, err := loader.Load(ctx, "aquifer_material", "G")
	if err != nil || !ok {
		t.Fatalf("expected cached row, got ok=%v err=%v", ok, err)
	}
	if row["description"] != "Gravel" {
		t.Fatalf("unexpected row: %#v", row)
	}
	if source.calls != 2 {
		t.Fatalf("expected cached load to skip the source, got %d calls", source.calls)
	}
}

func TestLoadMissingCode(t *testing.T) {
	loader := New(newSource(), 0)

	row, ok, err := loader.Load(context.Background(), "aquifer_material", "XX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || row != nil {
		t.Fatalf("expected missing code, got %#v", row)
	}
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	source := newSource()
	source.err = errors.New("db down")
	loader := New(source, 0)

	if _, _, err := loader.Load(context.Background(), "aquifer_material", "SG"); err == nil {
		t.Fatalf("expected source error")
	}
	if err := New(source, 0).Prefetch(context.Background(), []CodeRef{{Table: "water_use", Code: "DOM"}}); err == nil {
		t.Fatalf("expected prefetch error")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no loader in empty context")
	}
	loader := New(newSource(), 0)
	if FromContext(WithLoader(context.Background(), loader)) != loader {
		t.Fatalf("expected loader from context")
	}
}

func TestParseKey(t *testing.T) {
	ref, err := parseKey("person/a/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Table != "person" || ref.Code != "a/b" {
		t.Fatalf("unexpected ref: %#v", ref)
	}
	if _, err := parseKey("nope"); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
