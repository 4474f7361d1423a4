package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"housematch/server/internal/models"
	"housematch/server/internal/store"
)

// UsageAccumulator records viewer sessions and folds closed sessions into
// the global, per-user and per-role usage counters.
type UsageAccumulator struct {
	store  store.Store
	logger *logrus.Logger
}

func NewUsageAccumulator(s store.Store, logger *logrus.Logger) *UsageAccumulator {
	if logger == nil {
		logger = logrus.New()
	}
	return &UsageAccumulator{store: s, logger: logger}
}

// OpenSession appends a new session-log entry.
func (u *UsageAccumulator) OpenSession(ctx context.Context, s *models.SessionLog) error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("session user id is required")
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	return u.store.AppendSession(ctx, s)
}

// CloseSession closes the session and applies its usage deltas. The store
// runs the read-modify-write inside one transaction and ignores sessions
// that are already closed, so duplicate close events are harmless.
func (u *UsageAccumulator) CloseSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	if err := u.store.AccumulateUsage(ctx, sessionID, endedAt); err != nil {
		return fmt.Errorf("failed to accumulate usage for session %s: %w", sessionID, err)
	}
	u.logger.WithField("session_id", sessionID).Info("Session closed")
	return nil
}
