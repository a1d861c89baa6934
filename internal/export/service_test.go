package export

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/wellhistory/internal/domain"
)

func sampleEntries() []domain.HistoryEntry {
	at := time.Date(2018, 2, 1, 10, 0, 0, 0, time.UTC)
	return []domain.HistoryEntry{
		{
			Timestamp:      at,
			Editor:         "editor",
			EntityLabel:    "Aquifer 42",
			ChangedFields:  map[string]any{"material": "Gravel", "area": 12.5},
			PreviousFields: map[string]any{"material": "Sand and Gravel", "area": nil},
			Actions:        map[string]domain.Action{"area": domain.ActionAdded},
		},
		domain.NewCreationEntry("Aquifer 42", "creator", at.AddDate(0, -1, 0)),
	}
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("failed to read rows: %v", err)
	}
	return rows
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sampleEntries()); err != nil {
		t.Fatalf("WriteWorkbook returned error: %v", err)
	}

	rows := readRows(t, buf.Bytes())
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Date" || rows[0][6] != "New" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if got := rows[1]; got[3] != "Added" || got[4] != "area" || got[6] != "12.5" {
		t.Fatalf("unexpected area row %v", got)
	}
	if got := rows[2]; got[3] != "Updated" || got[5] != "Sand and Gravel" || got[6] != "Gravel" {
		t.Fatalf("unexpected material row %v", got)
	}
	if got := rows[3]; got[1] != "creator" || got[3] != "Created" {
		t.Fatalf("unexpected creation row %v", got)
	}
}

func TestServeWorkbook(t *testing.T) {
	rec := httptest.NewRecorder()
	ref := domain.EntityRef{Kind: domain.EntityKindWell, ID: "123"}
	if err := ServeWorkbook(rec, ref, sampleEntries()); err != nil {
		t.Fatalf("ServeWorkbook returned error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != MimeType {
		t.Fatalf("unexpected content type %s", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="well-123-history.xlsx"` {
		t.Fatalf("unexpected disposition %s", got)
	}
	if rows := readRows(t, rec.Body.Bytes()); len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"x", "x"},
		{42.0, "42"},
		{true, "true"},
		{[]any{map[string]any{"code": "AIR"}}, `[{"code":"AIR"}]`},
	}
	for _, tc := range cases {
		if got := formatValue(tc.value); got != tc.want {
			t.Fatalf("formatValue(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFileNameSanitizes(t *testing.T) {
	got := FileName(domain.EntityRef{Kind: domain.EntityKindPerson, ID: "../Jo Driller"})
	if got != "person-jo-driller-history.xlsx" {
		t.Fatalf("unexpected file name %s", got)
	}
}
