package reindex

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housematch/server/config"
	"housematch/server/internal/models"
	"housematch/server/internal/store"
)

// countingStore wraps the in-memory store and counts snapshot writes so the
// debounce behavior can be asserted.
type countingStore struct {
	*store.Memory
	listingWrites int
	buyerWrites   int
}

func (c *countingStore) SetListingMatches(ctx context.Context, listingID string, buyerIDs []string, entries []models.MatchEntry, at time.Time) error {
	c.listingWrites++
	return c.Memory.SetListingMatches(ctx, listingID, buyerIDs, entries, at)
}

func (c *countingStore) SetBuyerMatches(ctx context.Context, buyerID string, listingIDs []string, entries []models.MatchEntry, at time.Time) error {
	c.buyerWrites++
	return c.Memory.SetBuyerMatches(ctx, buyerID, listingIDs, entries, at)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Matching.SnapshotLimit = 20
	cfg.Matching.RebuildPageSize = 400
	cfg.Matching.ReindexWorkers = 4
	return cfg
}

func newTestReindexer(s store.Store) *Reindexer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	r := NewReindexer(s, testConfig(), logger)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func putListing(t *testing.T, s store.Store, r *Reindexer, id string, doc models.RawDoc) {
	t.Helper()
	ctx := context.Background()
	before, err := s.GetEntity(ctx, models.KindListing, id)
	require.NoError(t, err)
	require.NoError(t, s.PutEntity(ctx, models.KindListing, id, doc))
	require.NoError(t, r.OnListingWritten(ctx, id, before, doc))
}

func putBuyer(t *testing.T, s store.Store, r *Reindexer, id string, doc models.RawDoc) {
	t.Helper()
	ctx := context.Background()
	before, err := s.GetEntity(ctx, models.KindBuyer, id)
	require.NoError(t, err)
	require.NoError(t, s.PutEntity(ctx, models.KindBuyer, id, doc))
	require.NoError(t, r.OnBuyerWritten(ctx, id, before, doc))
}

func jeonseListingDoc(deposit, area float64) models.RawDoc {
	return models.RawDoc{"type": "전세", "deposit": deposit, "area_py": area, "status": "진행중"}
}

func jeonseBuyerDoc(budgetMin, budgetMax float64) models.RawDoc {
	return models.RawDoc{"typePrefs": []any{"전세"}, "budgetMin": budgetMin, "budgetMax": budgetMax}
}

// assertMutuallyConsistent checks that for every buyer/listing pair, the
// listing appears in the buyer's snapshot exactly when the buyer appears in
// the listing's snapshot.
func assertMutuallyConsistent(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	listings, err := s.ListEntities(ctx, models.KindListing)
	require.NoError(t, err)
	buyers, err := s.ListEntities(ctx, models.KindBuyer)
	require.NoError(t, err)

	for _, l := range listings {
		lSnap, err := s.GetListingMatch(ctx, l.ID)
		require.NoError(t, err)
		for _, b := range buyers {
			bSnap, err := s.GetBuyerMatch(ctx, b.ID)
			require.NoError(t, err)
			inListing := lSnap != nil && contains(lSnap.MatchedBuyerIDs, b.ID)
			inBuyer := bSnap != nil && contains(bSnap.ListingIDs, l.ID)
			assert.Equal(t, inListing, inBuyer,
				"listing %s / buyer %s snapshots disagree", l.ID, b.ID)
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestListingWriteIndexesBothSides(t *testing.T) {
	s := store.NewMemory()
	r := newTestReindexer(s)

	putBuyer(t, s, r, "b1", jeonseBuyerDoc(5000, 10000))
	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))

	lSnap, err := s.GetListingMatch(context.Background(), "l1")
	require.NoError(t, err)
	require.NotNil(t, lSnap)
	assert.Equal(t, []string{"b1"}, []string(lSnap.MatchedBuyerIDs))
	require.Len(t, lSnap.MatchedBuyers, 1)
	assert.Equal(t, 3, lSnap.MatchedBuyers[0].Score)

	// projection fields were written alongside the matches
	assert.Equal(t, models.TypeJeonse, lSnap.Type)
	require.NotNil(t, lSnap.Deposit)
	assert.Equal(t, int64(8000), *lSnap.Deposit)

	bSnap, err := s.GetBuyerMatch(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, bSnap)
	assert.Equal(t, []string{"l1"}, []string(bSnap.ListingIDs))

	assertMutuallyConsistent(t, s)
}

func TestListingUpdateDropsStaleBuyer(t *testing.T) {
	s := store.NewMemory()
	r := newTestReindexer(s)
	ctx := context.Background()

	// b1 wants 20-26 py, b2 takes anything
	putBuyer(t, s, r, "b1", models.RawDoc{"typePrefs": []any{"전세"}, "areaMinPy": float64(20), "areaMaxPy": float64(26)})
	putBuyer(t, s, r, "b2", models.RawDoc{})
	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))

	lSnap, err := s.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "b2"}, []string(lSnap.MatchedBuyerIDs))

	// area moves outside b1's range but stays fine for b2
	putListing(t, s, r, "l1", jeonseListingDoc(8000, 40))

	lSnap, err = s.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, []string(lSnap.MatchedBuyerIDs))

	b1Snap, err := s.GetBuyerMatch(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, b1Snap)
	assert.NotContains(t, []string(b1Snap.ListingIDs), "l1")

	b2Snap, err := s.GetBuyerMatch(ctx, "b2")
	require.NoError(t, err)
	assert.Contains(t, []string(b2Snap.ListingIDs), "l1")

	assertMutuallyConsistent(t, s)
}

func TestListingTombstoneRemovesEverywhere(t *testing.T) {
	s := store.NewMemory()
	r := newTestReindexer(s)
	ctx := context.Background()

	putBuyer(t, s, r, "b1", jeonseBuyerDoc(5000, 10000))
	putBuyer(t, s, r, "b2", models.RawDoc{})
	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))

	// soft delete
	doc := jeonseListingDoc(8000, 25)
	doc["deletedAt"] = float64(1700000001000)
	putListing(t, s, r, "l1", doc)

	lSnap, err := s.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	assert.Nil(t, lSnap)

	for _, buyerID := range []string{"b1", "b2"} {
		bSnap, err := s.GetBuyerMatch(ctx, buyerID)
		require.NoError(t, err)
		require.NotNil(t, bSnap)
		assert.NotContains(t, []string(bSnap.ListingIDs), "l1")
	}
}

func TestHardDeleteEvent(t *testing.T) {
	s := store.NewMemory()
	r := newTestReindexer(s)
	ctx := context.Background()

	putBuyer(t, s, r, "b1", jeonseBuyerDoc(5000, 10000))
	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))

	before, err := s.GetEntity(ctx, models.KindListing, "l1")
	require.NoError(t, err)
	require.NoError(t, s.DeleteEntity(ctx, models.KindListing, "l1"))
	require.NoError(t, r.OnListingWritten(ctx, "l1", before, nil))

	lSnap, err := s.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	assert.Nil(t, lSnap)

	bSnap, err := s.GetBuyerMatch(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, bSnap)
	assert.Empty(t, []string(bSnap.ListingIDs))
}

func TestBuyerWriteDebounce(t *testing.T) {
	mem := store.NewMemory()
	s := &countingStore{Memory: mem}
	r := newTestReindexer(s)
	ctx := context.Background()

	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))
	doc := jeonseBuyerDoc(5000, 10000)
	doc["name"] = "Kim"
	putBuyer(t, s, r, "b1", doc)

	writesBefore := s.buyerWrites + s.listingWrites

	// a display-only change must cause zero snapshot writes
	updated := jeonseBuyerDoc(5000, 10000)
	updated["name"] = "Kim (VIP)"
	require.NoError(t, s.PutEntity(ctx, models.KindBuyer, "b1", updated))
	require.NoError(t, r.OnBuyerWritten(ctx, "b1", doc, updated))
	assert.Equal(t, writesBefore, s.buyerWrites+s.listingWrites)

	// a match-relevant change does reindex
	narrowed := jeonseBuyerDoc(9000, 10000)
	require.NoError(t, s.PutEntity(ctx, models.KindBuyer, "b1", narrowed))
	require.NoError(t, r.OnBuyerWritten(ctx, "b1", updated, narrowed))
	assert.Greater(t, s.buyerWrites+s.listingWrites, writesBefore)

	bSnap, err := s.GetBuyerMatch(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, bSnap)
	assert.Empty(t, []string(bSnap.ListingIDs), "deposit 8000 is below the narrowed budgetMin")
	assertMutuallyConsistent(t, s)
}

func TestBuyerArchivalDeindexes(t *testing.T) {
	s := store.NewMemory()
	r := newTestReindexer(s)
	ctx := context.Background()

	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))
	putBuyer(t, s, r, "b1", jeonseBuyerDoc(5000, 10000))

	archived := jeonseBuyerDoc(5000, 10000)
	archived["status"] = "상담 종료"
	putBuyer(t, s, r, "b1", archived)

	bSnap, err := s.GetBuyerMatch(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, bSnap)

	lSnap, err := s.GetListingMatch(ctx, "l1")
	require.NoError(t, err)
	require.NotNil(t, lSnap)
	assert.Empty(t, []string(lSnap.MatchedBuyerIDs))
}

func TestMutualConsistencyAfterMixedWrites(t *testing.T) {
	s := store.NewMemory()
	r := newTestReindexer(s)

	putBuyer(t, s, r, "b1", jeonseBuyerDoc(5000, 10000))
	putListing(t, s, r, "l1", jeonseListingDoc(8000, 25))
	putListing(t, s, r, "l2", models.RawDoc{"type": "매매", "price": float64(45000), "area_py": float64(32)})
	putBuyer(t, s, r, "b2", models.RawDoc{})
	putListing(t, s, r, "l1", jeonseListingDoc(12000, 25))
	putBuyer(t, s, r, "b1", jeonseBuyerDoc(5000, 9000))

	assertMutuallyConsistent(t, s)
}
