package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/wellhistory/internal/db"
	"github.com/rpattn/wellhistory/internal/domain"
)

// PostgresStore reads registry revisions from the history tables created by
// the embedded migrations.
type PostgresStore struct {
	conn *db.Connection
	pool *pgxpool.Pool
}

// NewPostgresStore creates a record store on top of the connection pool.
func NewPostgresStore(conn *db.Connection) *PostgresStore {
	return &PostgresStore{conn: conn, pool: conn.Pool}
}

const (
	selectHeaderSQL = `SELECT create_user, create_date FROM entity_header WHERE kind = $1 AND entity_id = $2`

	selectRevisionsSQL = `
		SELECT id, entity_id, sequence, create_user, create_date, update_user, update_date, fields, related, serialized
		FROM entity_revision
		WHERE kind = $1 AND entity_id = $2
		ORDER BY sequence, id`

	selectSubmissionsSQL = `
		SELECT filing_number, well_tag_number, well_activity_type, create_user, create_date, fields, fields_provided
		FROM activity_submission
		WHERE well_tag_number = $1
		ORDER BY filing_number`

	selectCorrelationsSQL = `
		SELECT well_tag_number, from_aquifer_id, to_aquifer_id, create_user, create_date
		FROM bulk_well_aquifer_correlation_history
		WHERE well_tag_number = $1
		ORDER BY create_date, id`

	selectRelatedSQL = `
		SELECT record_kind, record_id, label
		FROM related_record
		WHERE parent_kind = $1 AND parent_id = $2 AND relation = $3
		ORDER BY record_id`

	selectCodesSQL = `SELECT code, attributes FROM code_table WHERE table_name = $1 AND code = ANY($2)`
)

// GetEntityHeader returns the audit stamps of the live record.
func (s *PostgresStore) GetEntityHeader(ctx context.Context, ref domain.EntityRef) (domain.EntityHeader, error) {
	header := domain.EntityHeader{Ref: ref}
	err := s.pool.QueryRow(ctx, selectHeaderSQL, string(ref.Kind), ref.ID).Scan(&header.CreateUser, &header.CreateDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EntityHeader{}, fmt.Errorf("%s: %w", ref, domain.ErrEntityNotFound)
	}
	if err != nil {
		return domain.EntityHeader{}, fmt.Errorf("failed to get entity header: %w", err)
	}
	return header, nil
}

// ListRevisions returns every stored revision of the entity ordered by sequence.
func (s *PostgresStore) ListRevisions(ctx context.Context, ref domain.EntityRef) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx, selectRevisionsSQL, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		var (
			snapshot   domain.Snapshot
			fieldsJSON []byte
			relatedRaw []byte
			serialized []byte
		)
		if err := rows.Scan(
			&snapshot.ID,
			&snapshot.EntityID,
			&snapshot.Sequence,
			&snapshot.CreateUser,
			&snapshot.CreateDate,
			&snapshot.UpdateUser,
			&snapshot.UpdateDate,
			&fieldsJSON,
			&relatedRaw,
			&serialized,
		); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		if err := decodeJSON(fieldsJSON, &snapshot.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of revision %s: %w", snapshot.ID, err)
		}
		if err := decodeJSON(relatedRaw, &snapshot.Related); err != nil {
			return nil, fmt.Errorf("failed to decode related objects of revision %s: %w", snapshot.ID, err)
		}
		if len(serialized) > 0 {
			snapshot.Serialized = json.RawMessage(serialized)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revisions: %w", err)
	}

	return snapshots, nil
}

// ListChildRows returns the rows of a batch-written child table. Table and
// column names come from the schema registry and are quoted as identifiers.
func (s *PostgresStore) ListChildRows(ctx context.Context, query ChildRowQuery) ([]domain.ChildRow, error) {
	sql := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s::text = $1 ORDER BY id",
		pgx.Identifier{query.Table}.Sanitize(),
		pgx.Identifier{query.ParentColumn}.Sanitize(),
	)

	rows, err := s.pool.Query(ctx, sql, query.ParentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rows: %w", query.Table, err)
	}
	defer rows.Close()

	descriptions := rows.FieldDescriptions()
	var result []domain.ChildRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", query.Table, err)
		}

		row := domain.ChildRow{ParentKey: query.ParentKey, Values: make(map[string]any, len(values))}
		for i, description := range descriptions {
			switch description.Name {
			case "id":
				id, ok := values[i].(int64)
				if !ok {
					return nil, fmt.Errorf("unexpected id type %T in %s", values[i], query.Table)
				}
				row.ID = id
			case "create_user":
				row.CreateUser, _ = values[i].(string)
			case "create_date":
				row.CreateDate, _ = values[i].(time.Time)
			default:
				row.Values[description.Name] = plainValue(values[i])
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
func (s *PostgresStore) ListSubmissions(ctx context.Context, wellTagNumber string) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx, selectSubmissionsSQL, wellTagNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []domain.Snapshot
	for rows.Next() {
		var (
			snapshot   domain.Snapshot
			fieldsJSON []byte
		)
		if err := rows.Scan(
			&snapshot.Sequence,
			&snapshot.EntityID,
			&snapshot.ActivityType,
			&snapshot.CreateUser,
			&snapshot.CreateDate,
			&fieldsJSON,
			&snapshot.FieldsProvided,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		if err := decodeJSON(fieldsJSON, &snapshot.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode submission %d: %w", snapshot.Sequence, err)
		}
		snapshot.ID = submissionID(snapshot.Sequence)
		submissions = append(submissions, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	return submissions, nil
}

// ListCorrelationChanges returns the bulk correlation changes of a well.
func (s *PostgresStore) ListCorrelationChanges(ctx context.Context, wellTagNumber string) ([]domain.CorrelationChange, error) {
	rows, err := s.pool.Query(ctx, selectCorrelationsSQL, wellTagNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list correlation changes: %w", err)
	}
	defer rows.Close()

	var changes []domain.CorrelationChange
	for rows.Next() {
		var (
			change domain.CorrelationChange
			from   pgtype.Int8
		)
		if err := rows.Scan(&change.WellTagNumber, &from, &change.ToAquifer, &change.CreateUser, &change.CreateDate); err != nil {
			return nil, fmt.Errorf("failed to scan correlation change: %w", err)
		}
		if from.Valid {
			value := from.Int64
			change.FromAquifer = &value
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate correlation changes: %w", err)
	}

	return changes, nil
}

// ListRelatedRecords returns the records owned by the parent with their revisions.
func (s *PostgresStore) ListRelatedRecords(
	ctx context.Context,
	parent domain.EntityRef,
	relation string,
) ([]domain.RelatedRecord, error) {
	type link struct {
		ref   domain.EntityRef
		label string
	}

	rows, err := s.pool.Query(ctx, selectRelatedSQL, string(parent.Kind), parent.ID, relation)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", relation, err)
	}
	var links []link
	for rows.Next() {
		var (
			l    link
			kind string
		)
		if err := rows.Scan(&kind, &l.ref.ID, &l.label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan %s: %w", relation, err)
		}
		l.ref.Kind = domain.EntityKind(kind)
		links = append(links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", relation, err)
	}

	records := make([]domain.RelatedRecord, 0, len(links))
	for _, l := range links {
		snapshots, err := s.ListRevisions(ctx, l.ref)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.RelatedRecord{ID: l.ref.ID, Label: l.label, Snapshots: snapshots})
	}

	return records, nil
}

// GetCodes returns the attributes of the requested codes of a code table.
func (s *PostgresStore) GetCodes(ctx context.Context, table string, codes []string) (map[string]map[string]any, error) {
	found := make(map[string]map[string]any, len(codes))
	if len(codes) == 0 {
		return found, nil
	}

	rows, err := s.pool.Query(ctx, selectCodesSQL, table, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s codes: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			code       string
			attributes []byte
		)
		if err := rows.Scan(&code, &attributes); err != nil {
			return nil, fmt.Errorf("failed to scan %s code: %w", table, err)
		}
		var decoded map[string]any
		if err := decodeJSON(attributes, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode %s code %s: %w", table, code, err)
		}
		found[code] = decoded
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s codes: %w", table, err)
	}

	return found, nil
}

// LoadFixture writes the fixture in a single transaction.
func (s *PostgresStore) LoadFixture(ctx context.Context, fixture Fixture) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, entity := range fixture.Entities {
			if _, err := tx.Exec(ctx,
				`INSERT INTO entity_header (kind, entity_id, create_user, create_date) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (kind, entity_id) DO UPDATE SET create_user = EXCLUDED.create_user, create_date = EXCLUDED.create_date`,
				string(entity.Kind), entity.ID, entity.CreateUser, entity.CreateDate,
			); err != nil {
				return fmt.Errorf("failed to insert %s %s: %w", entity.Kind, entity.ID, err)
			}
		}

		for _, revision := range fixture.Revisions {
			fieldsJSON, err := json.Marshal(emptyIfNil(revision.Fields))
			if err != nil {
				return fmt.Errorf("failed to marshal revision fields: %w", err)
			}
			relatedJSON, err := json.Marshal(revision.Related)
			if err != nil {
				return fmt.Errorf("failed to marshal revision related objects: %w", err)
			}
			if revision.Related == nil {
				relatedJSON = []byte("{}")
			}
			var serialized []byte
			if strings.TrimSpace(revision.Serialized) != "" {
				serialized = []byte(revision.Serialized)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO entity_revision
				 (kind, entity_id, sequence, create_user, create_date, update_user, update_date, fields, related, serialized)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				string(revision.Kind), revision.EntityID, revision.Sequence,
				revision.CreateUser, revision.CreateDate, revision.UpdateUser, revision.UpdateDate,
				fieldsJSON, relatedJSON, serialized,
			); err != nil {
				return fmt.Errorf("failed to insert revision of %s %s: %w", revision.Kind, revision.EntityID, err)
			}
		}

		for _, related := range fixture.Related {
			if _, err := tx.Exec(ctx,
				`INSERT INTO related_record (parent_kind, parent_id, relation, record_kind, record_id, label)
				 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
				string(related.ParentKind), related.ParentID, related.Relation,
				string(related.RecordKind), related.RecordID, related.Label,
			); err != nil {
				return fmt.Errorf("failed to insert %s link: %w", related.Relation, err)
			}
		}

		for _, submission := range fixture.Submissions {
			fieldsJSON, err := json.Marshal(emptyIfNil(submission.Fields))
			if err != nil {
				return fmt.Errorf("failed to marshal submission fields: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO activity_submission
				 (filing_number, well_tag_number, well_activity_type, create_user, create_date, fields, fields_provided)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				submission.FilingNumber, submission.WellTagNumber, submission.ActivityType,
				submission.CreateUser, submission.CreateDate, fieldsJSON, submission.FieldsProvided,
			); err != nil {
				return fmt.Errorf("failed to insert submission %d: %w", submission.FilingNumber, err)
			}
		}

		for _, row := range fixture.ChildRows {
			sql, args := childInsert(row)
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("failed to insert %s row: %w", row.Table, err)
			}
		}

		for _, correlation := range fixture.Correlations {
			if _, err := tx.Exec(ctx,
				`INSERT INTO bulk_well_aquifer_correlation_history
				 (well_tag_number, from_aquifer_id, to_aquifer_id, create_user, create_date)
				 VALUES ($1, $2, $3, $4, $5)`,
				correlation.WellTagNumber, correlation.FromAquifer, correlation.ToAquifer,
				correlation.CreateUser, correlation.CreateDate,
			); err != nil {
				return fmt.Errorf("failed to insert correlation of well %s: %w", correlation.WellTagNumber, err)
			}
		}

		for _, code := range fixture.Codes {
			attributes, err := json.Marshal(emptyIfNil(code.Attributes))
			if err != nil {
				return fmt.Errorf("failed to marshal code attributes: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO code_table (table_name, code, attributes) VALUES ($1, $2, $3)
				 ON CONFLICT (table_name, code) DO UPDATE SET attributes = EXCLUDED.attributes`,
				code.Table, code.Code, attributes,
			); err != nil {
				return fmt.Errorf("failed to insert code %s/%s: %w", code.Table, code.Code, err)
			}
		}

		return nil
	})
}

func childInsert(row FixtureChildRow) (string, []any) {
	columns := make([]string, 0, len(row.Values))
	for column := range row.Values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	quoted := make([]string, 0, len(columns)+2)
	placeholders := make([]string, 0, len(columns)+2)
	args := make([]any, 0, len(columns)+2)
	for _, column := range columns {
		quoted = append(quoted, pgx.Identifier{column}.Sanitize())
		args = append(args, row.Values[column])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	quoted = append(quoted, "create_user", "create_date")
	args = append(args, row.CreateUser, row.CreateDate)
	placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)-1), fmt.Sprintf("$%d", len(args)))

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{row.Table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	return sql, args
}

// plainValue converts driver specific values into the JSON-like values the
// normalizer compares.
func plainValue(value any) any {
	switch typed := value.(type) {
	case pgtype.Numeric:
		if !typed.Valid {
			return nil
		}
		f, err := typed.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(typed).String()
	default:
		return value
	}
}

func decodeJSON[T any](raw []byte, target *T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func emptyIfNil(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	return values
}

func submissionID(filingNumber int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("submission/%d", filingNumber)))
}

var (
	_ RecordStore   = (*PostgresStore)(nil)
	_ FixtureLoader = (*PostgresStore)(nil)
)
