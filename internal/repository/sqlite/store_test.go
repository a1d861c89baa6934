package sqlite

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

func seededStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fixture, err := fixtures.Sample()
	require.NoError(t, err)
	require.NoError(t, store.LoadFixture(context.Background(), fixture))
	return store
}

func TestStoreHeadersAndRevisions(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	aquifer := domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "42"}

	header, err := store.GetEntityHeader(ctx, aquifer)
	require.NoError(t, err)
	assert.Equal(t, "creator", header.CreateUser)

	_, err = store.GetEntityHeader(ctx, domain.EntityRef{Kind: domain.EntityKindAquifer, ID: "404"})
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))

	revisions, err := store.ListRevisions(ctx, aquifer)
	require.NoError(t, err)
	require.Len(t, revisions, 3)
	assert.Nil(t, revisions[0].UpdateDate)
	require.NotNil(t, revisions[1].UpdateDate)
	assert.Equal(t, "editor", revisions[1].Editor())
	assert.Equal(t, "SG", revisions[0].Fields["material"])
	assert.NotEmpty(t, revisions[0].Serialized)
}

func TestStoreChildRows(t *testing.T) {
	store := seededStore(t)

	rows, err := store.ListChildRows(context.Background(), repository.ChildRowQuery{
		Table:        "vertical_aquifer_extents_history",
		ParentColumn: "aquifer_id",
		ParentKey:    "42",
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "mapper", rows[0].CreateUser)
	assert.False(t, rows[0].CreateDate.IsZero())
	assert.Equal(t, "1", rows[0].Values["well_tag_number"])
	assert.Equal(t, float64(5), rows[0].Values["end"])
	assert.NotContains(t, rows[0].Values, "create_date")
}

func TestStoreSubmissionsCorrelationsAndCodes(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	submissions, err := store.ListSubmissions(ctx, "123")
	require.NoError(t, err)
	require.Len(t, submissions, 3)
	assert.Equal(t, int64(7), submissions[0].Sequence)
	assert.Equal(t, []string{"owner_full_name"}, submissions[2].FieldsProvided)
	assert.Nil(t, submissions[0].FieldsProvided)

	changes, err := store.ListCorrelationChanges(ctx, "123")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].FromAquifer)

	codes, err := store.GetCodes(ctx, "aquifer_material", []string{"G", "SG", "nope"})
	require.NoError(t, err)
	assert.Len(t, codes, 2)
	assert.Equal(t, "Gravel", codes["G"]["description"])
}

func TestStoreRelatedRecords(t *testing.T) {
	store := seededStore(t)

	records, err := store.ListRelatedRecords(
		context.Background(),
		domain.EntityRef{Kind: domain.EntityKindPerson, ID: "5c9e2f7a-3b1d-4e8f-a6c2-7d4b9e1f0a22"},
		"registrations",
	)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Snapshots, 2)
	assert.Equal(t, "Well Driller", records[0].Snapshots[0].Related["DRILL"]["description"])
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"end"`, quoteIdent("end"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
