// Package export renders history feeds as spreadsheets.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/wellhistory/internal/domain"
)

// SheetName is the worksheet history rows are written to.
const SheetName = "History"

// MimeType is the content type of the generated workbook.
const MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []string{"Date", "User", "Name", "Action", "Field", "Previous", "New"}

// WriteWorkbook writes one row per changed field of every entry, in the
// order given. Creation entries get a single "Created" row.
func WriteWorkbook(w io.Writer, entries []domain.HistoryEntry) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	row := 1
	if err := writeRow(f, row, header); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	for _, entry := range entries {
		for _, cells := range entryRows(entry) {
			row++
			if err := writeRow(f, row, cells); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	values := make([]any, len(cells))
	for i, value := range cells {
		values[i] = value
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func entryRows(entry domain.HistoryEntry) [][]string {
	date := domain.FormatHistoryDate(entry.Timestamp)
	if entry.IsCreation {
		return [][]string{{date, entry.Editor, entry.EntityLabel, "Created", "", "", ""}}
	}

	fields := make([]string, 0, len(entry.ChangedFields))
	for field := range entry.ChangedFields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	rows := make([][]string, 0, len(fields))
	for _, field := range fields {
		action := string(entry.Actions[field])
		if action == "" {
			action = string(domain.ActionUpdated)
		}
		rows = append(rows, []string{
			date,
			entry.Editor,
			entry.EntityLabel,
			action,
			field,
			formatValue(entry.PreviousFields[field]),
			formatValue(entry.ChangedFields[field]),
		})
	}
	return rows
}

// FileName returns the attachment name for a history export.
func FileName(ref domain.EntityRef) string {
	return fmt.Sprintf("%s-%s-history.xlsx", sanitizeFileComponent(string(ref.Kind)), sanitizeFileComponent(ref.ID))
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "export"
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float32, float64, int, int32, int64:
		return fmt.Sprintf("%v", v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
