// Package reindex keeps the denormalized match snapshots consistent as
// listings and buyers change. Each write event recomputes the changed
// entity's snapshot and propagates recomputation to every counterpart whose
// cached matches it touched, before or after the write.
package reindex

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"housematch/server/config"
	"housematch/server/internal/match"
	"housematch/server/internal/models"
	"housematch/server/internal/normalize"
	"housematch/server/internal/store"
)

// Reindexer is the event-driven orchestrator for incremental match-index
// maintenance.
type Reindexer struct {
	store      store.Store
	logger     *logrus.Logger
	limit      int
	pageSize   int
	workers    int
	retries    int
	retryDelay time.Duration
	locks      *entityLocks
	now        func() time.Time
}

// NewReindexer creates a reindexer using the matching section of the config.
func NewReindexer(s store.Store, cfg *config.Config, logger *logrus.Logger) *Reindexer {
	if logger == nil {
		logger = logrus.New()
	}
	limit := cfg.Matching.SnapshotLimit
	if limit <= 0 {
		limit = match.DefaultLimit
	}
	workers := cfg.Matching.ReindexWorkers
	if workers <= 0 {
		workers = 1
	}
	pageSize := cfg.Matching.RebuildPageSize
	if pageSize <= 0 {
		pageSize = 400
	}
	return &Reindexer{
		store:      s,
		logger:     logger,
		limit:      limit,
		pageSize:   pageSize,
		workers:    workers,
		retries:    cfg.Matching.WriteRetries,
		retryDelay: time.Duration(cfg.Matching.WriteRetryDelay) * time.Second,
		locks:      newEntityLocks(),
		now:        time.Now,
	}
}

// OnEntityWritten dispatches a write event to the listing or buyer flow.
// A nil before means create, a nil after means delete.
func (r *Reindexer) OnEntityWritten(ctx context.Context, kind models.Kind, id string, before, after models.RawDoc) error {
	switch kind {
	case models.KindListing:
		return r.OnListingWritten(ctx, id, before, after)
	case models.KindBuyer:
		return r.OnBuyerWritten(ctx, id, before, after)
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
}

// OnListingWritten handles a write to a listing. A non-indexable result
// (hard delete or tombstone) removes the listing's snapshot and recomputes
// the buyers that previously matched it. An indexable result refreshes the
// projection and snapshot, then recomputes the union of previously and
// newly matched buyers, so buyers that dropped out get cleaned up too.
func (r *Reindexer) OnListingWritten(ctx context.Context, id string, before, after models.RawDoc) error {
	unlock := r.locks.acquire(models.KindListing, id)
	defer unlock()

	view := normalize.NormalizeListing(id, after)

	prev, err := r.store.GetListingMatch(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read listing snapshot %s: %w", id, err)
	}
	var prevBuyerIDs []string
	if prev != nil {
		prevBuyerIDs = prev.MatchedBuyerIDs
	}

	if view == nil {
		r.bestEffortDeleteListingMatch(ctx, id)
		r.logger.WithFields(logrus.Fields{
			"listing_id": id,
			"impacted":   len(prevBuyerIDs),
		}).Info("Deindexed listing")
		return r.propagateToBuyers(ctx, prevBuyerIDs)
	}

	if err := r.writeWithRetry(ctx, "listing projection "+id, func() error {
		return r.store.UpsertListingProjection(ctx, view)
	}); err != nil {
		return err
	}

	buyers, err := r.loadBuyerViews(ctx)
	if err != nil {
		return err
	}
	entries := match.MatchBuyersForListing(view, buyers, r.limit)
	buyerIDs := match.EntryIDs(entries)
	if err := r.writeWithRetry(ctx, "listing snapshot "+id, func() error {
		return r.store.SetListingMatches(ctx, id, buyerIDs, entries, r.now())
	}); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"listing_id": id,
		"matches":    len(entries),
	}).Info("Reindexed listing")
	return r.propagateToBuyers(ctx, union(prevBuyerIDs, buyerIDs))
}

// OnBuyerWritten handles a write to a buyer. Writes that leave every
// match-relevant field unchanged are skipped entirely, so edits to display
// fields cause zero snapshot churn.
func (r *Reindexer) OnBuyerWritten(ctx context.Context, id string, before, after models.RawDoc) error {
	if before != nil && after != nil {
		prevFields := normalize.ExtractBuyerMatchFields(before)
		nextFields := normalize.ExtractBuyerMatchFields(after)
		if reflect.DeepEqual(prevFields, nextFields) {
			r.logger.WithField("buyer_id", id).Debug("Buyer write skipped, match fields unchanged")
			return nil
		}
	}

	unlock := r.locks.acquire(models.KindBuyer, id)
	defer unlock()

	view := normalize.NormalizeBuyer(id, after)

	prev, err := r.store.GetBuyerMatch(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read buyer snapshot %s: %w", id, err)
	}
	var prevListingIDs []string
	if prev != nil {
		prevListingIDs = prev.ListingIDs
	}

	if view == nil {
		r.bestEffortDeleteBuyerMatch(ctx, id)
		r.logger.WithFields(logrus.Fields{
			"buyer_id": id,
			"impacted": len(prevListingIDs),
		}).Info("Deindexed buyer")
		return r.propagateToListings(ctx, prevListingIDs)
	}

	listings, err := r.loadListingViews(ctx)
	if err != nil {
		return err
	}
	entries := match.MatchListingsForBuyer(view, listings, r.limit)
	listingIDs := match.EntryIDs(entries)
	if err := r.writeWithRetry(ctx, "buyer snapshot "+id, func() error {
		return r.store.SetBuyerMatches(ctx, id, listingIDs, entries, r.now())
	}); err != nil {
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"buyer_id": id,
		"matches":  len(entries),
	}).Info("Reindexed buyer")
	return r.propagateToListings(ctx, union(prevListingIDs, listingIDs))
}

// propagateToBuyers recomputes each impacted buyer's snapshot from scratch
// against the current listing collection. Recomputations are independent,
// so they run on a bounded worker pool.
func (r *Reindexer) propagateToBuyers(ctx context.Context, buyerIDs []string) error {
	buyerIDs = dedupe(buyerIDs)
	if len(buyerIDs) == 0 {
		return nil
	}
	listings, err := r.loadListingViews(ctx)
	if err != nil {
		return err
	}
	return r.forEachParallel(buyerIDs, func(id string) error {
		return r.recomputeBuyer(ctx, id, listings)
	})
}

// propagateToListings is the mirror of propagateToBuyers.
func (r *Reindexer) propagateToListings(ctx context.Context, listingIDs []string) error {
	listingIDs = dedupe(listingIDs)
	if len(listingIDs) == 0 {
		return nil
	}
	buyers, err := r.loadBuyerViews(ctx)
	if err != nil {
		return err
	}
	return r.forEachParallel(listingIDs, func(id string) error {
		return r.recomputeListing(ctx, id, buyers)
	})
}

func (r *Reindexer) recomputeBuyer(ctx context.Context, id string, listings []*models.ListingView) error {
	raw, err := r.store.GetEntity(ctx, models.KindBuyer, id)
	if err != nil {
		return fmt.Errorf("failed to load buyer %s: %w", id, err)
	}
	view := normalize.NormalizeBuyer(id, raw)
	if view == nil {
		r.bestEffortDeleteBuyerMatch(ctx, id)
		return nil
	}
	entries := match.MatchListingsForBuyer(view, listings, r.limit)
	return r.writeWithRetry(ctx, "buyer snapshot "+id, func() error {
		return r.store.SetBuyerMatches(ctx, id, match.EntryIDs(entries), entries, r.now())
	})
}

func (r *Reindexer) recomputeListing(ctx context.Context, id string, buyers []*models.BuyerView) error {
	raw, err := r.store.GetEntity(ctx, models.KindListing, id)
	if err != nil {
		return fmt.Errorf("failed to load listing %s: %w", id, err)
	}
	view := normalize.NormalizeListing(id, raw)
	if view == nil {
		r.bestEffortDeleteListingMatch(ctx, id)
		return nil
	}
	entries := match.MatchBuyersForListing(view, buyers, r.limit)
	return r.writeWithRetry(ctx, "listing snapshot "+id, func() error {
		return r.store.SetListingMatches(ctx, id, match.EntryIDs(entries), entries, r.now())
	})
}

// forEachParallel runs fn for every id on a bounded worker pool and returns
// the first error after all workers finish.
func (r *Reindexer) forEachParallel(ids []string, fn func(id string) error) error {
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)
	var mu sync.Mutex
	var firstErr error

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(id); err != nil {
				r.logger.WithError(err).WithField("id", id).Error("Counterpart recomputation failed")
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return firstErr
}

// writeWithRetry retries a snapshot write a few times before giving up.
// Write failures propagate: a silently failed write would break the mutual
// consistency of the two snapshot collections undetectably.
func (r *Reindexer) writeWithRetry(ctx context.Context, what string, write func() error) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			r.logger.Infof("Retrying write of %s, attempt %d of %d", what, attempt, r.retries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
		if err = write(); err == nil {
			return nil
		}
		r.logger.WithError(err).Errorf("Write of %s failed", what)
	}
	return fmt.Errorf("failed to write %s after %d attempts: %w", what, r.retries+1, err)
}

// Snapshot deletes are best-effort: a missing or stale snapshot self-heals
// on the next write to the same entity.
func (r *Reindexer) bestEffortDeleteListingMatch(ctx context.Context, id string) {
	if err := r.store.DeleteListingMatch(ctx, id); err != nil {
		r.logger.WithError(err).WithField("listing_id", id).Warn("Failed to delete listing snapshot")
	}
}

func (r *Reindexer) bestEffortDeleteBuyerMatch(ctx context.Context, id string) {
	if err := r.store.DeleteBuyerMatch(ctx, id); err != nil {
		r.logger.WithError(err).WithField("buyer_id", id).Warn("Failed to delete buyer snapshot")
	}
}

func (r *Reindexer) loadListingViews(ctx context.Context) ([]*models.ListingView, error) {
	docs, err := r.store.ListEntities(ctx, models.KindListing)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	views := make([]*models.ListingView, 0, len(docs))
	for _, doc := range docs {
		if v := normalize.NormalizeListing(doc.ID, doc.Data); v != nil {
			views = append(views, v)
		}
	}
	return views, nil
}

func (r *Reindexer) loadBuyerViews(ctx context.Context) ([]*models.BuyerView, error) {
	docs, err := r.store.ListEntities(ctx, models.KindBuyer)
	if err != nil {
		return nil, fmt.Errorf("failed to list buyers: %w", err)
	}
	views := make([]*models.BuyerView, 0, len(docs))
	for _, doc := range docs {
		if v := normalize.NormalizeBuyer(doc.ID, doc.Data); v != nil {
			views = append(views, v)
		}
	}
	return views, nil
}

func union(a, b []string) []string {
	return dedupe(append(append([]string{}, a...), b...))
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
