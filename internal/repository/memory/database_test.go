package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/wellhistory/internal/domain"
	"github.com/rpattn/wellhistory/internal/repository"
	"github.com/rpattn/wellhistory/internal/repository/fixtures"
)

func seededDB(t *testing.T) *DB {
	t.Helper()

	db, err := New()
	require.NoError(t, err)
	fixture, err := fixtures.Sample()
	require.NoError(t, err)
	require.NoError(t, db.LoadFixture(context.Background(), fixture))
	return db
}

func TestGetEntityHeader(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	header, err := db.GetEntityHeader(ctx, domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "creator", header.CreateUser)

	_, err = db.GetEntityHeader(ctx, domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "999"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}

func TestListRevisionsOrderedBySequence(t *testing.T) {
	db := seededDB(t)

	snapshots, err := db.ListRevisions(context.Background(), domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "42"})
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	for i, snapshot := range snapshots {
		assert.Equal(t, int64(i+1), snapshot.Sequence)
		assert.NotEmpty(t, snapshot.Serialized)
	}
	assert.Equal(t, "editor", snapshots[1].Editor())
}

func TestListChildRowsFiltersByParent(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	rows, err := db.ListChildRows(ctx, repository.ChildRowQuery{
		Table:        "vertical_aquifer_extents_history",
		ParentColumn: "aquifer_id",
		ParentKey:    "42",
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, "42", rows[0].ParentKey)

	rows, err = db.ListChildRows(ctx, repository.ChildRowQuery{
		Table:        "vertical_aquifer_extents_history",
		ParentColumn: "well_tag_number",
		ParentKey:    "2",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestListSubmissionsAndCorrelations(t *testing.T) {
	db := seededDB(t)
	ctx := context.Background()

	submissions, err := db.ListSubmissions(ctx, "123")
	require.NoError(t, err)
	require.Len(t, submissions, 3)
	assert.Equal(t, "LEGACY", submissions[0].ActivityType)
	assert.Equal(t, []string{"owner_full_name"}, submissions[2].FieldsProvided)

	changes, err := db.ListCorrelationChanges(ctx, "123")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].FromAquifer)
	assert.Equal(t, int64(42), changes[0].ToAquifer)

	none, err := db.ListSubmissions(ctx, "404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListRelatedRecords(t *testing.T) {
	db := seededDB(t)

	records, err := db.ListRelatedRecords(
		context.Background(),
		domain.EntityRef{Kind: domain.EntityKindPerson, ID: "5c9e2f7a-3b1d-4e8f-a6c2-7d4b9e1f0a22"},
		"registrations",
	)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Well Driller registration", records[0].Label)
	assert.Len(t, records[0].Snapshots, 2)
}

func TestGetCodesSkipsMissing(t *testing.T) {
	db := seededDB(t)

	codes, err := db.GetCodes(context.Background(), "aquifer_material", []string{"SG", "XX"})
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]any{
		"SG": {"description": "Sand and Gravel"},
	}, codes)
}

func TestLoadFixtureTwiceKeepsRowsDistinct(t *testing.T) {
	db, err := New()
	require.NoError(t, err)
	ctx := context.Background()

	fixture := repository.Fixture{
		ChildRows: []repository.FixtureChildRow{{
			Table:  "vertical_aquifer_extents_history",
			Values: map[string]any{"aquifer_id": 7, "start": 0, "end": 1},
		}},
	}
	require.NoError(t, db.LoadFixture(ctx, fixture))
	require.NoError(t, db.LoadFixture(ctx, fixture))

	rows, err := db.ListChildRows(ctx, repository.ChildRowQuery{
		Table:        "vertical_aquifer_extents_history",
		ParentColumn: "aquifer_id",
		ParentKey:    "7",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []int64{1, 2}, []int64{rows[0].ID, rows[1].ID})
}
