// Package collector reads the ordered revision sequences the history engine
// diffs out of a record store.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/repository"
	"github.com/rpattn/wellhistory/internal/schema"
)

// Collector retrieves snapshots from the record store in diff order.
type Collector struct {
	store repository.RecordStore
}

// New creates a collector over the record store.
func New(store repository.RecordStore) *Collector {
	return &Collector{store: store}
}

// Header returns the live record header, failing with ErrEntityNotFound when
// the entity does not exist.
func (c *Collector) Header(ctx context.Context, ref domain.EntityRef) (domain.EntityHeader, error) {
	header, err := c.store.GetEntityHeader(ctx, ref)
	if err != nil {
		return domain.EntityHeader{}, fmt.Errorf("failed to get %s: %w", ref, err)
	}
	return header, nil
}

// FullObject returns every revision of the record, oldest first. Revisions
// sharing a timestamp keep sequence order, then revision id order. An entity
// without revisions is reported as not found.
func (c *Collector) FullObject(ctx context.Context, ref domain.EntityRef) ([]domain.Snapshot, error) {
	snapshots, err := c.store.ListRevisions(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of %s: %w", ref, err)
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%s has no revisions: %w", ref, domain.ErrEntityNotFound)
	}

	SortRevisions(snapshots)
	return snapshots, nil
}

// SortRevisions orders revisions ascending by timestamp, sequence and id.
func SortRevisions(snapshots []domain.Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		a, b := snapshots[i], snapshots[j]
		if ta, tb := a.Timestamp(), b.Timestamp(); !ta.Equal(tb) {
			return ta.Before(tb)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ID.String() < b.ID.String()
	})
}

// Grouped returns one snapshot per batch of child rows written at the same
// instant. Each snapshot carries a single field, the child key, holding the
// batch rows trimmed to the display columns. No rows yields no snapshots.
func (c *Collector) Grouped(ctx context.Context, child schema.ChildCollection, parentID string) ([]domain.Snapshot, error) {
	rows, err := c.store.ListChildRows(ctx, repository.ChildRowQuery{
		Table:        child.Table,
		ParentColumn: child.ParentColumn,
		ParentKey:    parentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rows: %w", child.Table, err)
	}

	groups := GroupRows(rows, child.Columns)
	snapshots := make([]domain.Snapshot, len(groups))
	for i, group := range groups {
		snapshots[i] = group.Snapshot(parentID, child.Key, int64(i))
	}
	return snapshots, nil
}

// GroupRows sorts rows by (create_date, start) and splits them into batches
// sharing a create_date. Rows keep only the listed columns.
func GroupRows(rows []domain.ChildRow, columns []string) []domain.ChildGroup {
	ordered := make([]domain.ChildRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreateDate.Equal(b.CreateDate) {
			return a.CreateDate.Before(b.CreateDate)
		}
		return compareValues(a.Values["start"], b.Values["start"]) < 0
	})

	var groups []domain.ChildGroup
	for _, row := range ordered {
		if n := len(groups); n == 0 || !groups[n-1].CreateDate.Equal(row.CreateDate) {
			groups = append(groups, domain.ChildGroup{
				CreateUser: row.CreateUser,
				CreateDate: row.CreateDate,
			})
		}
		trimmed := make(map[string]any, len(columns))
		for _, column := range columns {
			trimmed[column] = row.Values[column]
		}
		last := &groups[len(groups)-1]
		last.Rows = append(last.Rows, trimmed)
	}
	return groups
}

// Submissions returns the activity reports of a well with the legacy record
// first and the rest by filing number.
func (c *Collector) Submissions(ctx context.Context, wellTagNumber string) ([]domain.Snapshot, error) {
	submissions, err := c.store.ListSubmissions(ctx, wellTagNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions of well %s: %w", wellTagNumber, err)
	}

	sort.SliceStable(submissions, func(i, j int) bool {
		a, b := submissions[i], submissions[j]
		aLegacy := strings.EqualFold(a.ActivityType, schema.ActivityLegacy)
		bLegacy := strings.EqualFold(b.ActivityType, schema.ActivityLegacy)
		if aLegacy != bLegacy {
			return aLegacy
		}
		return a.Sequence < b.Sequence
	})
	return submissions, nil
}

// Correlations returns the bulk aquifer correlation changes of a well, oldest
// first.
func (c *Collector) Correlations(ctx context.Context, wellTagNumber string) ([]domain.CorrelationChange, error) {
	changes, err := c.store.ListCorrelationChanges(ctx, wellTagNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list correlation changes of well %s: %w", wellTagNumber, err)
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].CreateDate.Before(changes[j].CreateDate)
	})
	return changes, nil
}

// Related returns the records owned by the parent through relation, each
// with its revisions in diff order. Records without revisions are dropped.
func (c *Collector) Related(ctx context.Context, parent domain.EntityRef, relation string) ([]domain.RelatedRecord, error) {
	records, err := c.store.ListRelatedRecords(ctx, parent, relation)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s of %s: %w", relation, parent, err)
	}

	out := make([]domain.RelatedRecord, 0, len(records))
	for _, record := range records {
		if len(record.Snapshots) == 0 {
			continue
		}
		SortRevisions(record.Snapshots)
		out = append(out, record)
	}
	return out, nil
}

// compareValues orders numbers numerically and everything else by its text
// form. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}
