package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/repository"
	"github.com/rpattn/wellhistory/internal/schema"
)

type stubStore struct {
	revisions    []domain.Snapshot
	rows         []domain.ChildRow
	submissions  []domain.Snapshot
	correlations []domain.CorrelationChange
	related      []domain.RelatedRecord
	err          error
	lastQuery    repository.ChildRowQuery
}

func (s *stubStore) GetEntityHeader(_ context.Context, ref domain.EntityRef) (domain.EntityHeader, error) {
	if s.err != nil {
		return domain.EntityHeader{}, s.err
	}
	return domain.EntityHeader{Ref: ref}, nil
}

func (s *stubStore) ListRevisions(context.Context, domain.EntityRef) ([]domain.Snapshot, error) {
	return s.revisions, s.err
}

func (s *stubStore) ListChildRows(_ context.Context, query repository.ChildRowQuery) ([]domain.ChildRow, error) {
	s.lastQuery = query
	return s.rows, s.err
}

func (s *stubStore) ListSubmissions(context.Context, string) ([]domain.Snapshot, error) {
	return s.submissions, s.err
}

func (s *stubStore) ListCorrelationChanges(context.Context, string) ([]domain.CorrelationChange, error) {
	return s.correlations, s.err
}

func (s *stubStore) ListRelatedRecords(context.Context, domain.EntityRef, string) ([]domain.RelatedRecord, error) {
	return s.related, s.err
}

func (s *stubStore) GetCodes(context.Context, string, []string) (map[string]map[string]any, error) {
	return nil, s.err
}

var base = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

func at(days int) time.Time {
	return base.AddDate(0, 0, days)
}

func TestFullObjectOrdersByTimestampThenSequence(t *testing.T) {
	updated := at(10)
	store := &stubStore{revisions: []domain.Snapshot{
		{Sequence: 3, CreateDate: at(0), UpdateDate: &updated},
		{Sequence: 2, CreateDate: at(5)},
		{Sequence: 1, CreateDate: at(5)},
		{Sequence: 0, CreateDate: at(0)},
	}}

	snapshots, err := New(store).FullObject(context.Background(), domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "1"})
	require.NoError(t, err)

	var sequences []int64
	for _, snapshot := range snapshots {
		sequences = append(sequences, snapshot.Sequence)
	}
	assert.Equal(t, []int64{0, 1, 2, 3}, sequences)
}

func TestFullObjectTieBreaksOnRevisionID(t *testing.T) {
	first := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	second := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	snapshots := []domain.Snapshot{
		{ID: second, CreateDate: at(0)},
		{ID: first, CreateDate: at(0)},
	}

	SortRevisions(snapshots)
	assert.Equal(t, first, snapshots[0].ID)
}

func TestFullObjectWithoutRevisionsIsNotFound(t *testing.T) {
	_, err := New(&stubStore{}).FullObject(context.Background(), domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	c := New(&stubStore{err: boom})
	ctx := context.Background()

	_, err := c.FullObject(ctx, domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "1"})
	assert.ErrorIs(t, err, boom)
	_, err = c.Submissions(ctx, "1")
	assert.ErrorIs(t, err, boom)
	_, err = c.Grouped(ctx, schema.Aquifer().Children[0], "1")
	assert.ErrorIs(t, err, boom)
}

func TestGroupedBatchesByCreateDate(t *testing.T) {
	store := &stubStore{rows: []domain.ChildRow{
		{ID: 3, CreateUser: "b", CreateDate: at(1), Values: map[string]any{"well_tag_number": "2", "start": 1.0, "end": 3.0, "geom": "x"}},
		{ID: 1, CreateUser: "a", CreateDate: at(0), Values: map[string]any{"well_tag_number": "1", "start": 0, "end": 5}},
		{ID: 2, CreateUser: "b", CreateDate: at(1), Values: map[string]any{"well_tag_number": "1", "start": 0, "end": 5}},
	}}
	child := schema.Aquifer().Children[0]

	snapshots, err := New(store).Grouped(context.Background(), child, "42")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	assert.Equal(t, repository.ChildRowQuery{
		Table:        "vertical_aquifer_extents_history",
		ParentColumn: "aquifer_id",
		ParentKey:    "42",
	}, store.lastQuery)

	assert.Equal(t, "a", snapshots[0].CreateUser)
	assert.Equal(t, at(0), snapshots[0].Timestamp())
	assert.Equal(t, []any{
		map[string]any{"well_tag_number": "1", "start": 0, "end": 5},
	}, snapshots[0].Fields["extents"])

	assert.Equal(t, []any{
		map[string]any{"well_tag_number": "1", "start": 0, "end": 5},
		map[string]any{"well_tag_number": "2", "start": 1.0, "end": 3.0},
	}, snapshots[1].Fields["extents"])
	assert.Len(t, snapshots[1].Fields, 1)
}

func TestGroupedWithoutRowsIsEmpty(t *testing.T) {
	snapshots, err := New(&stubStore{}).Grouped(context.Background(), schema.Aquifer().Children[0], "42")
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestSubmissionsPutLegacyFirst(t *testing.T) {
	store := &stubStore{submissions: []domain.Snapshot{
		{Sequence: 3, ActivityType: schema.ActivityStaffEdit},
		{Sequence: 1, ActivityType: schema.ActivityConstruction},
		{Sequence: 9, ActivityType: schema.ActivityLegacy},
		{Sequence: 2, ActivityType: schema.ActivityAlteration},
	}}

	submissions, err := New(store).Submissions(context.Background(), "123")
	require.NoError(t, err)

	var order []int64
	for _, submission := range submissions {
		order = append(order, submission.Sequence)
	}
	assert.Equal(t, []int64{9, 1, 2, 3}, order)
}

func TestCorrelationsOldestFirst(t *testing.T) {
	store := &stubStore{correlations: []domain.CorrelationChange{
		{ToAquifer: 2, CreateDate: at(3)},
		{ToAquifer: 1, CreateDate: at(1)},
	}}

	changes, err := New(store).Correlations(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changes[0].ToAquifer)
}

func TestRelatedDropsEmptyRecordsAndSorts(t *testing.T) {
	store := &stubStore{related: []domain.RelatedRecord{
		{ID: "empty"},
		{ID: "r1", Snapshots: []domain.Snapshot{{Sequence: 2, CreateDate: at(2)}, {Sequence: 1, CreateDate: at(1)}}},
	}}

	records, err := New(store).Related(context.Background(), domain.EntityRef{Kind: domain.EntityKindPerson, ID: "p"}, "registrations")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Snapshots[0].Sequence)
}
