package repository

import (
	"context"
	"time"

	"github.com/rpattn/wellhistory/internal/domain"
)

// RecordStore is the read side of the registry revision storage. Every
// method returns domain.ErrEntityNotFound (wrapped) only where noted;
// empty results are not errors.
type RecordStore interface {
	// GetEntityHeader returns the live record's audit stamps, or
	// ErrEntityNotFound when the entity does not exist.
	GetEntityHeader(ctx context.Context, ref domain.EntityRef) (domain.EntityHeader, error)
	// ListRevisions returns every stored revision of a versioned record.
	ListRevisions(ctx context.Context, ref domain.EntityRef) ([]domain.Snapshot, error)
	// ListChildRows returns the rows of a batch-written child table that
	// belong to the parent.
	ListChildRows(ctx context.Context, query ChildRowQuery) ([]domain.ChildRow, error)
	// ListSubmissions returns the activity submissions filed against a well.
	ListSubmissions(ctx context.Context, wellTagNumber string) ([]domain.Snapshot, error)
	// ListCorrelationChanges returns bulk aquifer correlation changes for a well.
	ListCorrelationChanges(ctx context.Context, wellTagNumber string) ([]domain.CorrelationChange, error)
	// ListRelatedRecords returns the versioned records owned by the parent
	// through the named relation, each with its revisions.
	ListRelatedRecords(ctx context.Context, parent domain.EntityRef, relation string) ([]domain.RelatedRecord, error)
	// GetCodes returns the attributes of the requested code table rows keyed
	// by code. Missing codes are absent from the result.
	GetCodes(ctx context.Context, table string, codes []string) (map[string]map[string]any, error)
}

// ChildRowQuery addresses a batch-written child table.
type ChildRowQuery struct {
	Table        string
	ParentColumn string
	ParentKey    string
}

// FixtureLoader writes registry records so a store can be seeded for local
// use and tests.
type FixtureLoader interface {
	LoadFixture(ctx context.Context, fixture Fixture) error
}

// Fixture is a set of registry records to seed into a store.
type Fixture struct {
	Entities     []FixtureEntity      `yaml:"entities"`
	Revisions    []FixtureRevision    `yaml:"revisions"`
	Related      []FixtureRelated     `yaml:"related"`
	Submissions  []FixtureSubmission  `yaml:"submissions"`
	ChildRows    []FixtureChildRow    `yaml:"child_rows"`
	Correlations []FixtureCorrelation `yaml:"correlations"`
	Codes        []FixtureCode        `yaml:"codes"`
}

// FixtureEntity is the live record header of an entity.
type FixtureEntity struct {
	Kind       domain.EntityKind `yaml:"kind"`
	ID         string            `yaml:"id"`
	CreateUser string            `yaml:"create_user"`
	CreateDate time.Time         `yaml:"create_date"`
}

// FixtureRevision is one stored revision of a versioned record.
type FixtureRevision struct {
	Kind       domain.EntityKind         `yaml:"kind"`
	EntityID   string                    `yaml:"entity_id"`
	Sequence   int64                     `yaml:"sequence"`
	CreateUser string                    `yaml:"create_user"`
	CreateDate time.Time                 `yaml:"create_date"`
	UpdateUser string                    `yaml:"update_user"`
	UpdateDate *time.Time                `yaml:"update_date"`
	Fields     map[string]any            `yaml:"fields"`
	Related    map[string]map[string]any `yaml:"related"`
	Serialized string                    `yaml:"serialized"`
}

// FixtureRelated links a versioned record to its parent.
type FixtureRelated struct {
	ParentKind domain.EntityKind `yaml:"parent_kind"`
	ParentID   string            `yaml:"parent_id"`
	Relation   string            `yaml:"relation"`
	RecordKind domain.EntityKind `yaml:"record_kind"`
	RecordID   string            `yaml:"record_id"`
	Label      string            `yaml:"label"`
}

// FixtureSubmission is one activity submission filed against a well.
type FixtureSubmission struct {
	FilingNumber   int64          `yaml:"filing_number"`
	WellTagNumber  string         `yaml:"well_tag_number"`
	ActivityType   string         `yaml:"well_activity_type"`
	CreateUser     string         `yaml:"create_user"`
	CreateDate     time.Time      `yaml:"create_date"`
	Fields         map[string]any `yaml:"fields"`
	FieldsProvided []string       `yaml:"fields_provided"`
}

// FixtureChildRow is one row of a batch-written child table.
type FixtureChildRow struct {
	Table      string         `yaml:"table"`
	CreateUser string         `yaml:"create_user"`
	CreateDate time.Time      `yaml:"create_date"`
	Values     map[string]any `yaml:"values"`
}

// FixtureCorrelation is one bulk aquifer correlation change.
type FixtureCorrelation struct {
	WellTagNumber string    `yaml:"well_tag_number"`
	FromAquifer   *int64    `yaml:"from_aquifer"`
	ToAquifer     int64     `yaml:"to_aquifer"`
	CreateUser    string    `yaml:"create_user"`
	CreateDate    time.Time `yaml:"create_date"`
}

// FixtureCode is one code table row.
type FixtureCode struct {
	Table      string         `yaml:"table"`
	Code       string         `yaml:"code"`
	Attributes map[string]any `yaml:"attributes"`
}
