// Package sqlite implements the record store over a local SQLite extract of
// the registry history tables.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/repository"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entity_header (
	kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	create_user TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMP NOT NULL,
	PRIMARY KEY (kind, entity_id)
);
CREATE TABLE IF NOT EXISTS entity_revision (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	create_user TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMP NOT NULL,
	update_user TEXT NOT NULL DEFAULT '',
	update_date TIMESTAMP,
	fields TEXT NOT NULL DEFAULT '{}',
	related TEXT NOT NULL DEFAULT '{}',
	serialized TEXT
);
CREATE INDEX IF NOT EXISTS idx_entity_revision_entity ON entity_revision (kind, entity_id, sequence);
CREATE TABLE IF NOT EXISTS related_record (
	parent_kind TEXT NOT NULL,
	parent_id TEXT NOT NULL,
	relation TEXT NOT NULL,
	record_kind TEXT NOT NULL,
	record_id TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (parent_kind, parent_id, relation, record_kind, record_id)
);
CREATE TABLE IF NOT EXISTS activity_submission (
	filing_number INTEGER PRIMARY KEY,
	well_tag_number TEXT NOT NULL,
	well_activity_type TEXT NOT NULL,
	create_user TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMP NOT NULL,
	fields TEXT NOT NULL DEFAULT '{}',
	fields_provided TEXT
);
CREATE TABLE IF NOT EXISTS vertical_aquifer_extents_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	aquifer_id INTEGER,
	well_tag_number TEXT,
	start REAL,
	"end" REAL,
	create_user TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS bulk_well_aquifer_correlation_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	well_tag_number TEXT NOT NULL,
	from_aquifer_id INTEGER,
	to_aquifer_id INTEGER NOT NULL,
	create_user TEXT NOT NULL DEFAULT '',
	create_date TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS code_table (
	table_name TEXT NOT NULL,
	code TEXT NOT NULL,
	attributes TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (table_name, code)
);`

// Store is a record store backed by a SQLite file.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating when needed) the SQLite database at path and applies
// the history table schema. Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &Store{db: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type revisionRow struct {
	ID         string         `db:"id"`
	EntityID   string         `db:"entity_id"`
	Sequence   int64          `db:"sequence"`
	CreateUser string         `db:"create_user"`
	CreateDate time.Time      `db:"create_date"`
	UpdateUser string         `db:"update_user"`
	UpdateDate sql.NullTime   `db:"update_date"`
	Fields     string         `db:"fields"`
	Related    string         `db:"related"`
	Serialized sql.NullString `db:"serialized"`
}

type submissionRow struct {
	FilingNumber   int64          `db:"filing_number"`
	WellTagNumber  string         `db:"well_tag_number"`
	ActivityType   string         `db:"well_activity_type"`
	CreateUser     string         `db:"create_user"`
	CreateDate     time.Time      `db:"create_date"`
	Fields         string         `db:"fields"`
	FieldsProvided sql.NullString `db:"fields_provided"`
}

type correlationRow struct {
	WellTagNumber string        `db:"well_tag_number"`
	FromAquifer   sql.NullInt64 `db:"from_aquifer_id"`
	ToAquifer     int64         `db:"to_aquifer_id"`
	CreateUser    string        `db:"create_user"`
	CreateDate    time.Time     `db:"create_date"`
}

type relatedRow struct {
	RecordKind string `db:"record_kind"`
	RecordID   string `db:"record_id"`
	Label      string `db:"label"`
}

type codeRow struct {
	Code       string `db:"code"`
	Attributes string `db:"attributes"`
}

// GetEntityHeader returns the audit stamps of the live record.
func (s *Store) GetEntityHeader(ctx context.Context, ref domain.EntityRef) (domain.EntityHeader, error) {
	var row struct {
		CreateUser string    `db:"create_user"`
		CreateDate time.Time `db:"create_date"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT create_user, create_date FROM entity_header WHERE kind = ? AND entity_id = ?`,
		string(ref.Kind), ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EntityHeader{}, fmt.Errorf("%s: %w", ref, domain.ErrEntityNotFound)
	}
	if err != nil {
		return domain.EntityHeader{}, fmt.Errorf("failed to get entity header: %w", err)
	}
	return domain.EntityHeader{Ref: ref, CreateUser: row.CreateUser, CreateDate: row.CreateDate}, nil
}

// ListRevisions returns the revisions of the entity ordered by sequence.
func (s *Store) ListRevisions(ctx context.Context, ref domain.EntityRef) ([]domain.Snapshot, error) {
	var rows []revisionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, entity_id, sequence, create_user, create_date, update_user, update_date, fields, related, serialized
		 FROM entity_revision WHERE kind = ? AND entity_id = ? ORDER BY sequence, id`,
		string(ref.Kind), ref.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}

	snapshots := make([]domain.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := row.snapshot()
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (r revisionRow) snapshot() (domain.Snapshot, error) {
	id, err := parseUUID(r.ID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snapshot := domain.Snapshot{
		ID:         id,
		EntityID:   r.EntityID,
		Sequence:   r.Sequence,
		CreateUser: r.CreateUser,
		CreateDate: r.CreateDate,
		UpdateUser: r.UpdateUser,
	}
	if r.UpdateDate.Valid {
		updated := r.UpdateDate.Time
		snapshot.UpdateDate = &updated
	}
	if err := json.Unmarshal([]byte(r.Fields), &snapshot.Fields); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decode fields of revision %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Related), &snapshot.Related); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to decode related objects of revision %s: %w", r.ID, err)
	}
	if r.Serialized.Valid && r.Serialized.String != "" {
		snapshot.Serialized = json.RawMessage(r.Serialized.String)
	}
	return snapshot, nil
}

// ListChildRows returns the rows of a batch-written child table.
func (s *Store) ListChildRows(ctx context.Context, query repository.ChildRowQuery) ([]domain.ChildRow, error) {
	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf(
		`SELECT * FROM %s WHERE CAST(%s AS TEXT) = ? ORDER BY id`,
		quoteIdent(query.Table), quoteIdent(query.ParentColumn),
	), query.ParentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rows: %w", query.Table, err)
	}
	defer rows.Close()

	var result []domain.ChildRow
	for rows.Next() {
		values := map[string]any{}
		if err := rows.MapScan(values); err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", query.Table, err)
		}

		row := domain.ChildRow{ParentKey: query.ParentKey, Values: make(map[string]any, len(values))}
		for column, value := range values {
			switch column {
			case "id":
				row.ID, _ = value.(int64)
			case "create_user":
				row.CreateUser = asString(value)
			case "create_date":
				row.CreateDate, _ = value.(time.Time)
			default:
				if raw, ok := value.([]byte); ok {
					value = string(raw)
				}
				row.Values[column] = value
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", query.Table, err)
	}
	return result, nil
}

// ListSubmissions returns the activity submissions of a well by filing number.
func (s *Store) ListSubmissions(ctx context.Context, wellTagNumber string) ([]domain.Snapshot, error) {
	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT filing_number, well_tag_number, well_activity_type, create_user, create_date, fields, fields_provided
		 FROM activity_submission WHERE well_tag_number = ? ORDER BY filing_number`,
		wellTagNumber,
	); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	submissions := make([]domain.Snapshot, 0, len(rows))
	for _, row := range rows {
		fixture := repository.FixtureSubmission{
			FilingNumber:  row.FilingNumber,
			WellTagNumber: row.WellTagNumber,
			ActivityType:  row.ActivityType,
			CreateUser:    row.CreateUser,
			CreateDate:    row.CreateDate,
		}
		if err := json.Unmarshal([]byte(row.Fields), &fixture.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode submission %d: %w", row.FilingNumber, err)
		}
		if row.FieldsProvided.Valid && row.FieldsProvided.String != "" {
			if err := json.Unmarshal([]byte(row.FieldsProvided.String), &fixture.FieldsProvided); err != nil {
				return nil, fmt.Errorf("failed to decode fields provided of submission %d: %w", row.FilingNumber, err)
			}
		}
		submissions = append(submissions, fixture.Snapshot())
	}
	return submissions, nil
}

// ListCorrelationChanges returns the bulk correlation changes of a well.
func (s *Store) ListCorrelationChanges(ctx context.Context, wellTagNumber string) ([]domain.CorrelationChange, error) {
	var rows []correlationRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT well_tag_number, from_aquifer_id, to_aquifer_id, create_user, create_date
		 FROM bulk_well_aquifer_correlation_history WHERE well_tag_number = ? ORDER BY create_date, id`,
		wellTagNumber,
	); err != nil {
		return nil, fmt.Errorf("failed to list correlation changes: %w", err)
	}

	changes := make([]domain.CorrelationChange, 0, len(rows))
	for _, row := range rows {
		change := domain.CorrelationChange{
			WellTagNumber: row.WellTagNumber,
			ToAquifer:     row.ToAquifer,
			CreateUser:    row.CreateUser,
			CreateDate:    row.CreateDate,
		}
		if row.FromAquifer.Valid {
			from := row.FromAquifer.Int64
			change.FromAquifer = &from
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// ListRelatedRecords returns the records owned by the parent with their revisions.
func (s *Store) ListRelatedRecords(
	ctx context.Context,
	parent domain.EntityRef,
	relation string,
) ([]domain.RelatedRecord, error) {
	var links []relatedRow
	if err := s.db.SelectContext(ctx, &links,
		`SELECT record_kind, record_id, label FROM related_record
		 WHERE parent_kind = ? AND parent_id = ? AND relation = ? ORDER BY record_id`,
		string(parent.Kind), parent.ID, relation,
	); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", relation, err)
	}

	records := make([]domain.RelatedRecord, 0, len(links))
	for _, link := range links {
		snapshots, err := s.ListRevisions(ctx, domain.EntityRef{Kind: domain.EntityKind(link.RecordKind), ID: link.RecordID})
		if err != nil {
			return nil, err
		}
		records = append(records, domain.RelatedRecord{ID: link.RecordID, Label: link.Label, Snapshots: snapshots})
	}
	return records, nil
}

// GetCodes returns the attributes of the requested codes of a code table.
func (s *Store) GetCodes(ctx context.Context, table string, codes []string) (map[string]map[string]any, error) {
	found := make(map[string]map[string]any, len(codes))
	if len(codes) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(`SELECT code, attributes FROM code_table WHERE table_name = ? AND code IN (?)`, table, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s code query: %w", table, err)
	}
	query = s.db.Rebind(query)

	var rows []codeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get %s codes: %w", table, err)
	}
	for _, row := range rows {
		var attributes map[string]any
		if err := json.Unmarshal([]byte(row.Attributes), &attributes); err != nil {
			return nil, fmt.Errorf("failed to decode %s code %s: %w", table, row.Code, err)
		}
		found[row.Code] = attributes
	}
	return found, nil
}

// LoadFixture writes the fixture in a single transaction.
func (s *Store) LoadFixture(ctx context.Context, fixture repository.Fixture) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := loadFixture(ctx, tx, fixture); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixture: %w", err)
	}
	return nil
}

func loadFixture(ctx context.Context, tx *sqlx.Tx, fixture repository.Fixture) error {
	for _, entity := range fixture.Entities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_header (kind, entity_id, create_user, create_date) VALUES (?, ?, ?, ?)
			 ON CONFLICT(kind, entity_id) DO UPDATE SET create_user = excluded.create_user, create_date = excluded.create_date`,
			string(entity.Kind), entity.ID, entity.CreateUser, entity.CreateDate,
		); err != nil {
			return fmt.Errorf("failed to insert %s %s: %w", entity.Kind, entity.ID, err)
		}
	}

	for _, revision := range fixture.Revisions {
		fields, err := marshalText(revision.Fields, "{}")
		if err != nil {
			return err
		}
		related, err := marshalText(revision.Related, "{}")
		if err != nil {
			return err
		}
		var serialized sql.NullString
		if strings.TrimSpace(revision.Serialized) != "" {
			serialized = sql.NullString{String: revision.Serialized, Valid: true}
		}
		var updated sql.NullTime
		if revision.UpdateDate != nil {
			updated = sql.NullTime{Time: *revision.UpdateDate, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_revision
			 (id, kind, entity_id, sequence, create_user, create_date, update_user, update_date, fields, related, serialized)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newUUID(), string(revision.Kind), revision.EntityID, revision.Sequence,
			revision.CreateUser, revision.CreateDate, revision.UpdateUser, updated,
			fields, related, serialized,
		); err != nil {
			return fmt.Errorf("failed to insert revision of %s %s: %w", revision.Kind, revision.EntityID, err)
		}
	}

	for _, link := range fixture.Related {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO related_record (parent_kind, parent_id, relation, record_kind, record_id, label)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(link.ParentKind), link.ParentID, link.Relation, string(link.RecordKind), link.RecordID, link.Label,
		); err != nil {
			return fmt.Errorf("failed to insert %s link: %w", link.Relation, err)
		}
	}

	for _, submission := range fixture.Submissions {
		fields, err := marshalText(submission.Fields, "{}")
		if err != nil {
			return err
		}
		var provided sql.NullString
		if submission.FieldsProvided != nil {
			encoded, err := json.Marshal(submission.FieldsProvided)
			if err != nil {
				return fmt.Errorf("failed to marshal fields provided: %w", err)
			}
			provided = sql.NullString{String: string(encoded), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_submission
			 (filing_number, well_tag_number, well_activity_type, create_user, create_date, fields, fields_provided)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			submission.FilingNumber, submission.WellTagNumber, submission.ActivityType,
			submission.CreateUser, submission.CreateDate, fields, provided,
		); err != nil {
			return fmt.Errorf("failed to insert submission %d: %w", submission.FilingNumber, err)
		}
	}

	for _, row := range fixture.ChildRows {
		columns := make([]string, 0, len(row.Values))
		for column := range row.Values {
			columns = append(columns, column)
		}
		sort.Strings(columns)

		quoted := make([]string, 0, len(columns)+2)
		args := make([]any, 0, len(columns)+2)
		for _, column := range columns {
			quoted = append(quoted, quoteIdent(column))
			args = append(args, row.Values[column])
		}
		quoted = append(quoted, "create_user", "create_date")
		args = append(args, row.CreateUser, row.CreateDate)

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(row.Table),
			strings.Join(quoted, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "),
		)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert %s row: %w", row.Table, err)
		}
	}

	for _, correlation := range fixture.Correlations {
		var from sql.NullInt64
		if correlation.FromAquifer != nil {
			from = sql.NullInt64{Int64: *correlation.FromAquifer, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bulk_well_aquifer_correlation_history
			 (well_tag_number, from_aquifer_id, to_aquifer_id, create_user, create_date) VALUES (?, ?, ?, ?, ?)`,
			correlation.WellTagNumber, from, correlation.ToAquifer, correlation.CreateUser, correlation.CreateDate,
		); err != nil {
			return fmt.Errorf("failed to insert correlation of well %s: %w", correlation.WellTagNumber, err)
		}
	}

	for _, code := range fixture.Codes {
		attributes, err := marshalText(code.Attributes, "{}")
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO code_table (table_name, code, attributes) VALUES (?, ?, ?)
			 ON CONFLICT(table_name, code) DO UPDATE SET attributes = excluded.attributes`,
			code.Table, code.Code, attributes,
		); err != nil {
			return fmt.Errorf("failed to insert code %s/%s: %w", code.Table, code.Code, err)
		}
	}

	return nil
}

func newUUID() string {
	return uuid.NewString()
}

func parseUUID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid revision id %q: %w", value, err)
	}
	return id, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func asString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return ""
	}
}

func marshalText[T any](value T, empty string) (string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fixture value: %w", err)
	}
	if string(encoded) == "null" {
		return empty, nil
	}
	return string(encoded), nil
}

var (
	_ repository.RecordStore   = (*Store)(nil)
	_ repository.FixtureLoader = (*Store)(nil)
)
