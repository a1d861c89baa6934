// Package memory implements the record store using an in-memory database.
package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/repository"
)

// DB is an in-memory record store for tests, local runs and fixtures.
type DB struct {
	db *memdb.MemDB

	// Row counters, only touched while holding the write transaction.
	lastChildID       int64
	lastCorrelationID int64
}

// New returns a new in-memory record store.
func New() (*DB, error) {
	memDB, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}

	return &DB{db: memDB}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return nil
}

type headerRecord struct {
	Key    string
	Header domain.EntityHeader
}

type revisionRecord struct {
	ID        string
	EntityKey string
	Snapshot  domain.Snapshot
}

type relatedRecord struct {
	ID        string
	ParentKey string
	Relation  string
	Record    domain.EntityRef
	Label     string
}

type submissionRecord struct {
	ID            string
	WellTagNumber string
	Snapshot      domain.Snapshot
}

type childRecord struct {
	ID    string
	Table string
	Row   domain.ChildRow
}

type correlationRecord struct {
	ID            string
	WellTagNumber string
	Change        domain.CorrelationChange
}

type codeRecord struct {
	Table      string
	Code       string
	Attributes map[string]any
}

// GetEntityHeader returns the live record header of the entity.
func (d *DB) GetEntityHeader(_ context.Context, ref domain.EntityRef) (domain.EntityHeader, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblHeaders, "id", ref.String())
	if err != nil {
		return domain.EntityHeader{}, fmt.Errorf("find header %s: %w", ref, err)
	}
	if raw == nil {
		return domain.EntityHeader{}, fmt.Errorf("%s: %w", ref, domain.ErrEntityNotFound)
	}

	return raw.(*headerRecord).Header, nil
}

// ListRevisions returns the revisions of the entity ordered by sequence.
func (d *DB) ListRevisions(_ context.Context, ref domain.EntityRef) ([]domain.Snapshot, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	return listRevisions(txn, ref)
}

func listRevisions(txn *memdb.Txn, ref domain.EntityRef) ([]domain.Snapshot, error) {
	it, err := txn.Get(tblRevisions, "entity", ref.String())
	if err != nil {
		return nil, fmt.Errorf("find revisions of %s: %w", ref, err)
	}

	var snapshots []domain.Snapshot
	for raw := it.Next(); raw != nil; raw = it.Next() {
		snapshots = append(snapshots, raw.(*revisionRecord).Snapshot)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Sequence < snapshots[j].Sequence
	})

	return snapshots, nil
}

// ListChildRows returns the rows of the child table that belong to the parent.
func (d *DB) ListChildRows(_ context.Context, query repository.ChildRowQuery) ([]domain.ChildRow, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblChildRows, "table", query.Table)
	if err != nil {
		return nil, fmt.Errorf("find rows of %s: %w", query.Table, err)
	}

	var rows []domain.ChildRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		row := raw.(*childRecord).Row
		if repository.KeyString(row.Values[query.ParentColumn]) != query.ParentKey {
			continue
		}
		row.ParentKey = query.ParentKey
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	return rows, nil
}

// ListSubmissions returns the activity submissions of the well by filing number.
func (d *DB) ListSubmissions(_ context.Context, wellTagNumber string) ([]domain.Snapshot, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblSubmissions, "well", wellTagNumber)
	if err != nil {
		return nil, fmt.Errorf("find submissions of well %s: %w", wellTagNumber, err)
	}

	var submissions []domain.Snapshot
	for raw := it.Next(); raw != nil; raw = it.Next() {
		submissions = append(submissions, raw.(*submissionRecord).Snapshot)
	}
	sort.SliceStable(submissions, func(i, j int) bool {
		return submissions[i].Sequence < submissions[j].Sequence
	})

	return submissions, nil
}

// ListCorrelationChanges returns the bulk correlation changes of the well.
func (d *DB) ListCorrelationChanges(_ context.Context, wellTagNumber string) ([]domain.CorrelationChange, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblCorrelations, "well", wellTagNumber)
	if err != nil {
		return nil, fmt.Errorf("find correlations of well %s: %w", wellTagNumber, err)
	}

	var changes []domain.CorrelationChange
	for raw := it.Next(); raw != nil; raw = it.Next() {
		changes = append(changes, raw.(*correlationRecord).Change)
	}

	return changes, nil
}

// ListRelatedRecords returns the records owned by the parent through relation.
func (d *DB) ListRelatedRecords(
	_ context.Context,
	parent domain.EntityRef,
	relation string,
) ([]domain.RelatedRecord, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblRelated, "parent_relation", parent.String(), relation)
	if err != nil {
		return nil, fmt.Errorf("find %s of %s: %w", relation, parent, err)
	}

	var links []*relatedRecord
	for raw := it.Next(); raw != nil; raw = it.Next() {
		links = append(links, raw.(*relatedRecord))
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Record.ID < links[j].Record.ID })

	records := make([]domain.RelatedRecord, 0, len(links))
	for _, link := range links {
		snapshots, err := listRevisions(txn, link.Record)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.RelatedRecord{
			ID:        link.Record.ID,
			Label:     link.Label,
			Snapshots: snapshots,
		})
	}

	return records, nil
}

// GetCodes returns the attributes of the requested codes of a code table.
func (d *DB) GetCodes(_ context.Context, table string, codes []string) (map[string]map[string]any, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	found := make(map[string]map[string]any, len(codes))
	for _, code := range codes {
		raw, err := txn.First(tblCodes, "id", table, code)
		if err != nil {
			return nil, fmt.Errorf("find code %s/%s: %w", table, code, err)
		}
		if raw == nil {
			continue
		}
		found[code] = raw.(*codeRecord).Attributes
	}

	return found, nil
}

// LoadFixture inserts every record of the fixture in one transaction.
func (d *DB) LoadFixture(_ context.Context, fixture repository.Fixture) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	for _, entity := range fixture.Entities {
		ref := domain.EntityRef{Kind: entity.Kind, ID: entity.ID}
		if err := txn.Insert(tblHeaders, &headerRecord{
			Key: ref.String(),
			Header: domain.EntityHeader{
				Ref:        ref,
				CreateUser: entity.CreateUser,
				CreateDate: entity.CreateDate,
			},
		}); err != nil {
			return fmt.Errorf("insert header %s: %w", ref, err)
		}
	}

	for _, revision := range fixture.Revisions {
		ref := domain.EntityRef{Kind: revision.Kind, ID: revision.EntityID}
		id := uuid.New()
		if err := txn.Insert(tblRevisions, &revisionRecord{
			ID:        id.String(),
			EntityKey: ref.String(),
			Snapshot:  revision.Snapshot(id),
		}); err != nil {
			return fmt.Errorf("insert revision of %s: %w", ref, err)
		}
	}

	for _, related := range fixture.Related {
		parent := domain.EntityRef{Kind: related.ParentKind, ID: related.ParentID}
		record := domain.EntityRef{Kind: related.RecordKind, ID: related.RecordID}
		if err := txn.Insert(tblRelated, &relatedRecord{
			ID:        parent.String() + "/" + related.Relation + "/" + record.String(),
			ParentKey: parent.String(),
			Relation:  related.Relation,
			Record:    record,
			Label:     related.Label,
		}); err != nil {
			return fmt.Errorf("insert %s of %s: %w", related.Relation, parent, err)
		}
	}

	for _, submission := range fixture.Submissions {
		if err := txn.Insert(tblSubmissions, &submissionRecord{
			ID:            fmt.Sprintf("%020d", submission.FilingNumber),
			WellTagNumber: submission.WellTagNumber,
			Snapshot:      submission.Snapshot(),
		}); err != nil {
			return fmt.Errorf("insert submission %d: %w", submission.FilingNumber, err)
		}
	}

	for _, row := range fixture.ChildRows {
		d.lastChildID++
		id := d.lastChildID
		if err := txn.Insert(tblChildRows, &childRecord{
			ID:    fmt.Sprintf("%020d", id),
			Table: row.Table,
			Row: domain.ChildRow{
				ID:         id,
				CreateUser: row.CreateUser,
				CreateDate: row.CreateDate,
				Values:     row.Values,
			},
		}); err != nil {
			return fmt.Errorf("insert %s row: %w", row.Table, err)
		}
	}

	for _, correlation := range fixture.Correlations {
		d.lastCorrelationID++
		if err := txn.Insert(tblCorrelations, &correlationRecord{
			ID:            fmt.Sprintf("%020d", d.lastCorrelationID),
			WellTagNumber: correlation.WellTagNumber,
			Change: domain.CorrelationChange{
				WellTagNumber: correlation.WellTagNumber,
				FromAquifer:   correlation.FromAquifer,
				ToAquifer:     correlation.ToAquifer,
				CreateUser:    correlation.CreateUser,
				CreateDate:    correlation.CreateDate,
			},
		}); err != nil {
			return fmt.Errorf("insert correlation of well %s: %w", correlation.WellTagNumber, err)
		}
	}

	for _, code := range fixture.Codes {
		if err := txn.Insert(tblCodes, &codeRecord{
			Table:      code.Table,
			Code:       code.Code,
			Attributes: code.Attributes,
		}); err != nil {
			return fmt.Errorf("insert code %s/%s: %w", code.Table, code.Code, err)
		}
	}

	txn.Commit()
	return nil
}

var (
	_ repository.RecordStore   = (*DB)(nil)
	_ repository.FixtureLoader = (*DB)(nil)
)
