package reindex

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"housematch/server/internal/match"
	"housematch/server/internal/models"
	"housematch/server/internal/normalize"
)

// RebuildResult reports how many listings were indexed and how many were
// excluded as non-indexable.
type RebuildResult struct {
	Total   int `json:"total"`
	Skipped int `json:"skipped"`
}

// RebuildAll rebuilds every snapshot from scratch: clear the listing
// snapshot collection, page through all listings (cursor on id, so stable
// under concurrent inserts), project the indexable ones, then compute all
// listing matches and recompute each touched buyer exactly once. The
// two-phase structure avoids paying a full propagate per listing. The whole
// operation is idempotent and safe to restart after a partial failure.
func (r *Reindexer) RebuildAll(ctx context.Context) (*RebuildResult, error) {
	if err := r.store.DeleteAllListingMatches(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear listing snapshots: %w", err)
	}

	var views []*models.ListingView
	skipped := 0
	afterID := ""
	for {
		page, err := r.store.ListEntitiesPage(ctx, models.KindListing, afterID, r.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to page listings after %q: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}
		for _, doc := range page {
			view := normalize.NormalizeListing(doc.ID, doc.Data)
			if view == nil {
				skipped++
				continue
			}
			if err := r.writeWithRetry(ctx, "listing projection "+doc.ID, func() error {
				return r.store.UpsertListingProjection(ctx, view)
			}); err != nil {
				return nil, err
			}
			views = append(views, view)
		}
		afterID = page[len(page)-1].ID
		if len(page) < r.pageSize {
			break
		}
	}

	buyers, err := r.loadBuyerViews(ctx)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]struct{})
	for _, view := range views {
		entries := match.MatchBuyersForListing(view, buyers, r.limit)
		buyerIDs := match.EntryIDs(entries)
		if err := r.writeWithRetry(ctx, "listing snapshot "+view.ID, func() error {
			return r.store.SetListingMatches(ctx, view.ID, buyerIDs, entries, r.now())
		}); err != nil {
			return nil, err
		}
		for _, id := range buyerIDs {
			touched[id] = struct{}{}
		}
	}

	touchedIDs := make([]string, 0, len(touched))
	for id := range touched {
		touchedIDs = append(touchedIDs, id)
	}
	sort.Strings(touchedIDs)
	for _, id := range touchedIDs {
		if err := r.recomputeBuyer(ctx, id, views); err != nil {
			return nil, err
		}
	}

	r.logger.WithFields(logrus.Fields{
		"total":          len(views),
		"skipped":        skipped,
		"buyers_touched": len(touchedIDs),
	}).Info("Bulk rebuild complete")
	return &RebuildResult{Total: len(views), Skipped: skipped}, nil
}
