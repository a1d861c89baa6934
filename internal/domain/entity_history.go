package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies which registry record type a history belongs to.
type EntityKind string

const (
	EntityKindAquifer      EntityKind = "aquifer"
	EntityKindWell         EntityKind = "well"
	EntityKindOrganization EntityKind = "organization"
	EntityKindPerson       EntityKind = "person"
)

// EntityRef addresses one logical entity in the record store.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

func (r EntityRef) String() string {
	return string(r.Kind) + "/" + r.ID
}

// EntityHeader carries the audit stamps of the live record.
type EntityHeader struct {
	Ref        EntityRef
	CreateUser string
	CreateDate time.Time
}

// Snapshot captures one stored revision of a record's field values.
type Snapshot struct {
	ID         uuid.UUID
	EntityID   string
	Sequence   int64
	CreateUser string
	CreateDate time.Time
	UpdateUser string
	UpdateDate *time.Time
	Fields     map[string]any
	// Related holds the other objects logged in the same revision keyed by
	// object id. Revision scoped lookups resolve against it.
	Related map[string]map[string]any
	// Serialized is the revision payload exactly as it was stored.
	Serialized json.RawMessage

	// Set for activity submissions only.
	ActivityType   string
	FieldsProvided []string
}

// Editor returns the user credited with this revision.
func (s Snapshot) Editor() string {
	if s.UpdateUser != "" {
		return s.UpdateUser
	}
	return s.CreateUser
}

// Timestamp returns when this revision was recorded.
func (s Snapshot) Timestamp() time.Time {
	if s.UpdateDate != nil && !s.UpdateDate.IsZero() {
		return *s.UpdateDate
	}
	return s.CreateDate
}

// Value returns the raw stored value of a field.
func (s Snapshot) Value(field string) (any, bool) {
	if s.Fields == nil {
		return nil, false
	}
	value, ok := s.Fields[field]
	return value, ok
}

// ChildRow is one raw row of a batch-written child table, e.g. a vertical
// aquifer extent.
type ChildRow struct {
	ID         int64
	ParentKey  string
	CreateUser string
	CreateDate time.Time
	Values     map[string]any
}

// ChildGroup is a set of child rows written together in one batch.
type ChildGroup struct {
	CreateUser string
	CreateDate time.Time
	Rows       []map[string]any
}

// Snapshot presents the group as one revision whose only field is key.
func (g ChildGroup) Snapshot(parentID, key string, sequence int64) Snapshot {
	rows := make([]any, len(g.Rows))
	for i, row := range g.Rows {
		rows[i] = row
	}
	return Snapshot{
		EntityID:   parentID,
		Sequence:   sequence,
		CreateUser: g.CreateUser,
		CreateDate: g.CreateDate,
		Fields:     map[string]any{key: rows},
	}
}

// CorrelationChange records a bulk move of a well from one aquifer to another.
type CorrelationChange struct {
	WellTagNumber string
	FromAquifer   *int64
	ToAquifer     int64
	CreateUser    string
	CreateDate    time.Time
}

// RelatedRecord is a versioned record that belongs to a parent entity, such
// as a person's registration.
type RelatedRecord struct {
	ID        string
	Label     string
	Snapshots []Snapshot
}
