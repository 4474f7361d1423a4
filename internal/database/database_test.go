package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housematch/server/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEntityRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	doc := models.RawDoc{"type": "전세", "deposit": float64(8000)}
	require.NoError(t, db.PutEntity(ctx, models.KindListing, "l1", doc))

	got, err := db.GetEntity(ctx, models.KindListing, "l1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "전세", got["type"])
	assert.Equal(t, float64(8000), got["deposit"])

	// overwrite
	require.NoError(t, db.PutEntity(ctx, models.KindListing, "l1", models.RawDoc{"type": "매매"}))
	got, err = db.GetEntity(ctx, models.KindListing, "l1")
	require.NoError(t, err)
	assert.Equal(t, "매매", got["type"])
	assert.NotContains(t, got, "deposit")

	// absent documents come back nil without error
	got, err = db.GetEntity(ctx, models.KindListing, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	// kinds are isolated
	got, err = db.GetEntity(ctx, models.KindBuyer, "l1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, db.DeleteEntity(ctx, models.KindListing, "l1"))
	got, err = db.GetEntity(ctx, models.KindListing, "l1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListEntitiesPage(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("l%03d", i)
		require.NoError(t, db.PutEntity(ctx, models.KindListing, id, models.RawDoc{"n": float64(i)}))
	}

	var seen []string
	afterID := ""
	for {
		page, err := db.ListEntitiesPage(ctx, models.KindListing, afterID, 10)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, doc := range page {
			seen = append(seen, doc.ID)
		}
		afterID = page[len(page)-1].ID
	}

	require.Len(t, seen, 25)
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i], "pages must be id-ordered without duplicates")
	}
}

func TestListingSnapshotMergeSemantics(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	area := 25.0
	deposit := int64(8000)

	view := &models.ListingView{
		ID:      "l1",
		Type:    models.TypeJeonse,
		Status:  "진행중",
		AreaPy:  &area,
		Deposit: &deposit,
	}
	require.NoError(t, db.UpsertListingProjection(ctx, view))

	entries := []models.MatchEntry{{ID: "b1", Score: 3, Strict: true}}
	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetListingMatches(ctx, "l1", []string{"b1"}, entries, at))

	doc, err := db.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, models.TypeJeonse, doc.Type)
	assert.Equal(t, []string{"b1"}, []string(doc.MatchedBuyerIDs))
	assert.Equal(t, 3, doc.MatchedBuyers[0].Score)

	// re-upserting the projection must not clear the matches
	view.Status = "가격조정"
	require.NoError(t, db.UpsertListingProjection(ctx, view))
	doc, err = db.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "가격조정", doc.Status)
	assert.Equal(t, []string{"b1"}, []string(doc.MatchedBuyerIDs))

	// setting matches must not clear the projection
	require.NoError(t, db.SetListingMatches(ctx, "l1", []string{}, nil, at))
	doc, err = db.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "가격조정", doc.Status)
	assert.Empty(t, []string(doc.MatchedBuyerIDs))
	require.NotNil(t, doc.Deposit)
	assert.Equal(t, int64(8000), *doc.Deposit)
}

func TestSetListingMatchesWithoutProjection(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	// matches can arrive before a projection exists
	at := time.Now().UTC()
	require.NoError(t, db.SetListingMatches(ctx, "l1", []string{"b1"}, []models.MatchEntry{{ID: "b1", Score: 1}}, at))

	doc, err := db.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, []string{"b1"}, []string(doc.MatchedBuyerIDs))
}

func TestBuyerSnapshotRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	entries := []models.MatchEntry{{ID: "l1", Score: 2}, {ID: "l2", Score: 1}}
	require.NoError(t, db.SetBuyerMatches(ctx, "b1", []string{"l1", "l2"}, entries, at))

	doc, err := db.GetBuyerMatch(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, []string{"l1", "l2"}, []string(doc.ListingIDs))
	assert.Len(t, doc.Matches, 2)

	require.NoError(t, db.DeleteBuyerMatch(ctx, "b1"))
	doc, err = db.GetBuyerMatch(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestDeleteAllListingMatches(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	at := time.Now().UTC()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("l%d", i)
		require.NoError(t, db.SetListingMatches(ctx, id, nil, nil, at))
	}
	require.NoError(t, db.DeleteAllListingMatches(ctx))

	for i := 0; i < 5; i++ {
		doc, err := db.GetListingMatch(ctx, fmt.Sprintf("l%d", i))
		require.NoError(t, err)
		assert.Nil(t, doc)
	}
}

func TestAccumulateUsageTransaction(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.AppendSession(ctx, &models.SessionLog{
		ID: "s1", UserID: "u1", Role: "viewer", StartedAt: start,
	}))
	require.NoError(t, db.AccumulateUsage(ctx, "s1", start.Add(10*time.Minute)))

	stats, err := db.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SessionCount)
	assert.Equal(t, int64(1), stats.UniqueUsers)
	assert.Equal(t, int64(600), stats.TotalDurationSec)

	// closing again changes nothing
	require.NoError(t, db.AccumulateUsage(ctx, "s1", start.Add(20*time.Minute)))
	stats, err = db.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SessionCount)
	assert.Equal(t, int64(600), stats.TotalDurationSec)

	// closing an unknown session is a no-op, not an error
	require.NoError(t, db.AccumulateUsage(ctx, "missing", start))

	session, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Closed)
	assert.Equal(t, int64(600), session.DurationSec)
}

func TestActivityRetentionOps(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var ids []uint
	for i := 0; i < 6; i++ {
		entry := models.ActivityLog{UserID: "u1", Action: "view", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, db.AppendActivity(ctx, &entry))
		ids = append(ids, entry.ID)
	}
	require.NoError(t, db.AppendActivity(ctx, &models.ActivityLog{UserID: "u2", Action: "view", CreatedAt: base}))

	users, err := db.ListActivityUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	entries, err := db.ListActivityByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 6)
	assert.True(t, entries[0].CreatedAt.After(entries[5].CreatedAt))

	require.NoError(t, db.DeleteActivity(ctx, ids[:3]))
	entries, err = db.ListActivityByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
