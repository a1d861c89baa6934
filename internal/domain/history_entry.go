package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Action classifies a single field change.
type Action string

const (
	ActionAdded   Action = "Added"
	ActionUpdated Action = "Updated"
	ActionRemoved Action = "Removed"
)

// HistoryEntry is one row of an entity's change log.
type HistoryEntry struct {
	Timestamp      time.Time
	Editor         string
	EntityLabel    string
	IsCreation     bool
	ChangedFields  map[string]any
	PreviousFields map[string]any
	Actions        map[string]Action
}

// NewCreationEntry builds the entry that marks a record's creation.
func NewCreationEntry(label, editor string, at time.Time) HistoryEntry {
	return HistoryEntry{
		Timestamp:      at,
		Editor:         editor,
		EntityLabel:    label,
		IsCreation:     true,
		ChangedFields:  map[string]any{},
		PreviousFields: map[string]any{},
	}
}

// HasChanges reports whether the entry carries at least one changed field.
func (e HistoryEntry) HasChanges() bool {
	return len(e.ChangedFields) > 0
}

type historyEntryJSON struct {
	Diff    map[string]any    `json:"diff"`
	Prev    map[string]any    `json:"prev"`
	User    string            `json:"user"`
	Date    string            `json:"date"`
	Name    string            `json:"name,omitempty"`
	Created bool              `json:"created,omitempty"`
	Actions map[string]Action `json:"actions,omitempty"`
}

// MarshalJSON renders the entry in the registry's history wire shape.
func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	diff := e.ChangedFields
	if diff == nil {
		diff = map[string]any{}
	}
	prev := e.PreviousFields
	if prev == nil {
		prev = map[string]any{}
	}
	return json.Marshal(historyEntryJSON{
		Diff:    diff,
		Prev:    prev,
		User:    e.Editor,
		Date:    FormatHistoryDate(e.Timestamp),
		Name:    e.EntityLabel,
		Created: e.IsCreation,
		Actions: e.Actions,
	})
}

// UnmarshalJSON reads the wire shape produced by MarshalJSON.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw historyEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Date)
	if err != nil {
		return err
	}
	*e = HistoryEntry{
		Timestamp:      ts,
		Editor:         raw.User,
		EntityLabel:    raw.Name,
		IsCreation:     raw.Created,
		ChangedFields:  raw.Diff,
		PreviousFields: raw.Prev,
		Actions:        raw.Actions,
	}
	return nil
}

// FormatHistoryDate renders history timestamps as ISO-8601 in UTC.
func FormatHistoryDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// SortNewestFirst orders entries by timestamp descending. Entries sharing a
// timestamp keep their emission order.
func SortNewestFirst(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
