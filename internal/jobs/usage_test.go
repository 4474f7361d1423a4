package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housematch/server/internal/models"
	"housematch/server/internal/store"
)

func openSession(t *testing.T, u *UsageAccumulator, id, userID string, startedAt time.Time) {
	t.Helper()
	s := &models.SessionLog{ID: id, UserID: userID, Role: "viewer", StartedAt: startedAt}
	require.NoError(t, u.OpenSession(context.Background(), s))
}

func TestUsageAccumulation(t *testing.T) {
	s := store.NewMemory()
	u := NewUsageAccumulator(s, logrus.New())
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	openSession(t, u, "s1", "u1", start)
	require.NoError(t, u.CloseSession(ctx, "s1", start.Add(10*time.Minute)))

	stats, err := s.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SessionCount)
	assert.Equal(t, int64(1), stats.UniqueUsers)
	assert.Equal(t, int64(0), stats.RepeatUsers)
	assert.Equal(t, int64(600), stats.TotalDurationSec)

	// second session by the same user makes them a repeat user
	openSession(t, u, "s2", "u1", start.Add(time.Hour))
	require.NoError(t, u.CloseSession(ctx, "s2", start.Add(time.Hour+5*time.Minute)))

	stats, err = s.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.SessionCount)
	assert.Equal(t, int64(1), stats.UniqueUsers)
	assert.Equal(t, int64(1), stats.RepeatUsers)
	assert.Equal(t, int64(900), stats.TotalDurationSec)

	// a different user bumps unique, not repeat
	openSession(t, u, "s3", "u2", start)
	require.NoError(t, u.CloseSession(ctx, "s3", start.Add(time.Minute)))

	stats, err = s.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.SessionCount)
	assert.Equal(t, int64(2), stats.UniqueUsers)
	assert.Equal(t, int64(1), stats.RepeatUsers)
}

func TestUsageDoubleCloseIsNoop(t *testing.T) {
	s := store.NewMemory()
	u := NewUsageAccumulator(s, logrus.New())
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	openSession(t, u, "s1", "u1", start)
	require.NoError(t, u.CloseSession(ctx, "s1", start.Add(time.Minute)))
	require.NoError(t, u.CloseSession(ctx, "s1", start.Add(2*time.Minute)))

	stats, err := s.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SessionCount)
	assert.Equal(t, int64(60), stats.TotalDurationSec)
}

func TestUsageNegativeDurationClamped(t *testing.T) {
	s := store.NewMemory()
	u := NewUsageAccumulator(s, logrus.New())
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	openSession(t, u, "s1", "u1", start)
	require.NoError(t, u.CloseSession(ctx, "s1", start.Add(-time.Minute)))

	stats, err := s.GetUsageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalDurationSec)
	assert.Equal(t, int64(1), stats.SessionCount)
}

func TestOpenSessionValidation(t *testing.T) {
	s := store.NewMemory()
	u := NewUsageAccumulator(s, logrus.New())

	err := u.OpenSession(context.Background(), &models.SessionLog{UserID: "u1"})
	assert.Error(t, err)

	err = u.OpenSession(context.Background(), &models.SessionLog{ID: "s1"})
	assert.Error(t, err)
}
