// Package jobs holds the scheduled maintenance jobs: activity-log retention
// pruning and usage-stat accumulation.
package jobs

import (
	"context"

	"github.com/sirupsen/logrus"

	"housematch/server/config"
	"housematch/server/internal/store"
)

// RetentionPruner keeps only the newest activity-log entries per user and
// deletes the rest in bounded batches.
type RetentionPruner struct {
	store     store.Store
	logger    *logrus.Logger
	keep      int
	batchSize int
}

func NewRetentionPruner(s store.Store, cfg *config.Config, logger *logrus.Logger) *RetentionPruner {
	if logger == nil {
		logger = logrus.New()
	}
	keep := cfg.Retention.KeepPerUser
	if keep <= 0 {
		keep = 5
	}
	batchSize := cfg.Retention.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 400
	}
	return &RetentionPruner{store: s, logger: logger, keep: keep, batchSize: batchSize}
}

// Run prunes every user's activity log and returns the number of deleted
// entries.
func (p *RetentionPruner) Run(ctx context.Context) (int, error) {
	userIDs, err := p.store.ListActivityUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, userID := range userIDs {
		entries, err := p.store.ListActivityByUser(ctx, userID)
		if err != nil {
			return deleted, err
		}
		if len(entries) <= p.keep {
			continue
		}
		stale := entries[p.keep:]
		ids := make([]uint, 0, len(stale))
		for _, e := range stale {
			ids = append(ids, e.ID)
		}
		for start := 0; start < len(ids); start += p.batchSize {
			end := start + p.batchSize
			if end > len(ids) {
				end = len(ids)
			}
			if err := p.store.DeleteActivity(ctx, ids[start:end]); err != nil {
				return deleted, err
			}
			deleted += end - start
		}
		p.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"deleted": len(ids),
		}).Info("Pruned activity log")
	}
	return deleted, nil
}
