package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestHistoryEntryCanonicalText(t *testing.T) {
	entry := HistoryEntry{
		Timestamp:   time.Date(2019, 3, 4, 10, 0, 0, 0, time.UTC),
		Editor:      "jdoe",
		EntityLabel: "Aquifer 42",
		ChangedFields: map[string]any{
			"aquifer_name": "Fraser",
			"extents": []any{
				map[string]any{"start": float64(0), "end": float64(5)},
			},
		},
	}

	lines, err := entry.CanonicalText(false)
	if err != nil {
		t.Fatalf("unexpected error generating canonical text: %v", err)
	}

	expected := []string{
		"Name: Aquifer 42",
		"User: jdoe",
		"Date: 2019-03-04T10:00:00Z",
		"Fields:",
		"  aquifer_name: \"Fraser\"",
		"  extents[0].end: 5",
		"  extents[0].start: 0",
	}

	if len(lines) != len(expected) {
		t.Fatalf("expected %d canonical lines, got %d\n%v", len(expected), len(lines), lines)
	}

	for idx, line := range expected {
		if lines[idx] != line {
			t.Errorf("line %d mismatch: expected %q got %q", idx, line, lines[idx])
		}
	}

	prevLines, err := entry.CanonicalText(true)
	if err != nil {
		t.Fatalf("unexpected error generating previous canonical text: %v", err)
	}
	if prevLines[len(prevLines)-1] != "  (empty)" {
		t.Errorf("expected empty previous side, got %v", prevLines)
	}
}

func TestRenderUnified(t *testing.T) {
	entry := HistoryEntry{
		Timestamp:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Editor:         "editor",
		EntityLabel:    "Aquifer 7",
		ChangedFields:  map[string]any{"status": "Inactive", "area": 12.5},
		PreviousFields: map[string]any{"status": "Active", "area": nil},
	}

	diff, err := RenderUnified(entry)
	if err != nil {
		t.Fatalf("unexpected diff error: %v", err)
	}

	if !strings.Contains(diff, "-  status: \"Active\"") {
		t.Errorf("diff missing previous status: %s", diff)
	}
	if !strings.Contains(diff, "+  status: \"Inactive\"") {
		t.Errorf("diff missing new status: %s", diff)
	}
	if !strings.Contains(diff, "+  area: 12.5") {
		t.Errorf("diff missing new area: %s", diff)
	}
	if !strings.Contains(diff, "-  area: null") {
		t.Errorf("diff missing previous area: %s", diff)
	}
}

func TestRenderUnifiedCreation(t *testing.T) {
	entry := NewCreationEntry("Aquifer 1", "creator", time.Date(2018, 5, 6, 0, 0, 0, 0, time.UTC))
	diff, err := RenderUnified(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(diff, "*** Aquifer 1 created by creator") {
		t.Errorf("unexpected creation rendering: %s", diff)
	}
}

func TestValuesEqual(t *testing.T) {
	cases := []struct {
		name  string
		a, b  any
		equal bool
	}{
		{"both nil", nil, nil, true},
		{"nil and typed nil slice", nil, []any(nil), true},
		{"nil and value", nil, "x", false},
		{"int and float", 5, float64(5), true},
		{"floats differ", 12.5, 12.50001, false},
		{"lists by value", []map[string]any{{"a": 1}}, []any{map[string]any{"a": float64(1)}}, true},
		{"list order matters", []any{1, 2}, []any{2, 1}, false},
		{"strings", "Active", "Active", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValuesEqual(tc.a, tc.b); got != tc.equal {
				t.Fatalf("ValuesEqual(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.equal)
			}
		})
	}
}

func TestHistoryEntryJSONShape(t *testing.T) {
	created := NewCreationEntry("Aquifer 3", "creator", time.Date(2018, 1, 2, 3, 4, 5, 0, time.UTC))
	encoded, err := json.Marshal(created)
	if err != nil {
		t.Fatalf("marshal creation entry: %v", err)
	}
	expected := `{"diff":{},"prev":{},"user":"creator","date":"2018-01-02T03:04:05Z","name":"Aquifer 3","created":true}`
	if string(encoded) != expected {
		t.Fatalf("unexpected JSON:\n got %s\nwant %s", encoded, expected)
	}

	change := HistoryEntry{
		Timestamp:      time.Date(2018, 1, 3, 0, 0, 0, 0, time.UTC),
		Editor:         "editor",
		ChangedFields:  map[string]any{"status": "Inactive"},
		PreviousFields: map[string]any{"status": "Active"},
	}
	encoded, err = json.Marshal(change)
	if err != nil {
		t.Fatalf("marshal change entry: %v", err)
	}
	if strings.Contains(string(encoded), "created") || strings.Contains(string(encoded), "name") {
		t.Fatalf("optional keys should be omitted: %s", encoded)
	}

	var decoded HistoryEntry
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal change entry: %v", err)
	}
	if !decoded.Timestamp.Equal(change.Timestamp) || decoded.ChangedFields["status"] != "Inactive" {
		t.Fatalf("decoded entry mismatch: %+v", decoded)
	}
}

func TestSortNewestFirstIsStable(t *testing.T) {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []HistoryEntry{
		{Timestamp: t0, Editor: "a"},
		{Timestamp: t0.Add(time.Hour), Editor: "b"},
		{Timestamp: t0, Editor: "c"},
		{Timestamp: t0.Add(time.Hour), Editor: "d"},
	}
	SortNewestFirst(entries)

	got := []string{entries[0].Editor, entries[1].Editor, entries[2].Editor, entries[3].Editor}
	want := []string{"b", "d", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}

func TestStripIDSuffix(t *testing.T) {
	if got := StripIDSuffix("company_id"); got != "company" {
		t.Fatalf("expected company, got %s", got)
	}
	if got := StripIDSuffix("_id"); got != "_id" {
		t.Fatalf("expected _id unchanged, got %s", got)
	}
	if got := StripIDSuffix("surname"); got != "surname" {
		t.Fatalf("expected surname unchanged, got %s", got)
	}
}
