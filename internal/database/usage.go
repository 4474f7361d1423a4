package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"housematch/server/internal/models"
)

func (d *Database) AppendActivity(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return d.db.WithContext(ctx).Create(entry).Error
}

func (d *Database) ListActivityUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&models.ActivityLog{}).
		Distinct("user_id").Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}

func (d *Database) ListActivityByUser(ctx context.Context, userID string) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Find(&entries).Error
	return entries, err
}

func (d *Database) DeleteActivity(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.ActivityLog{}).Error
}

func (d *Database) AppendSession(ctx context.Context, s *models.SessionLog) error {
	return d.db.WithContext(ctx).Create(s).Error
}

func (d *Database) GetSession(ctx context.Context, id string) (*models.SessionLog, error) {
	var s models.SessionLog
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// AccumulateUsage closes the session and applies the counter deltas in one
// transaction: read the session, user, global and role rows, compute the
// increments, write everything back. Already-closed sessions are a no-op so
// duplicate close events cannot double-count.
func (d *Database) AccumulateUsage(ctx context.Context, sessionID string, endedAt time.Time) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.SessionLog
		err := tx.Where("id = ?", sessionID).First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.Closed {
			return nil
		}

		duration := int64(endedAt.Sub(s.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}
		s.Closed = true
		s.EndedAt = &endedAt
		s.DurationSec = duration
		if err := tx.Save(&s).Error; err != nil {
			return err
		}

		var us models.UserStats
		err = tx.Where("user_id = ?", s.UserID).First(&us).Error
		newUser := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !newUser {
			return err
		}
		if newUser {
			us = models.UserStats{UserID: s.UserID}
		}

		var global models.UsageStats
		err = tx.Where("id = ?", 1).First(&global).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			global = models.UsageStats{ID: 1}
		} else if err != nil {
			return err
		}

		global.SessionCount++
		global.TotalDurationSec += duration
		if newUser {
			global.UniqueUsers++
		} else if us.SessionCount == 1 {
			global.RepeatUsers++
		}

		us.SessionCount++
		us.TotalDurationSec += duration
		us.LastSessionAt = endedAt

		if err := tx.Save(&global).Error; err != nil {
			return err
		}
		if err := tx.Save(&us).Error; err != nil {
			return err
		}

		if s.Role != "" {
			var rs models.RoleStats
			err = tx.Where("role = ?", s.Role).First(&rs).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rs = models.RoleStats{Role: s.Role}
			} else if err != nil {
				return err
			}
			rs.SessionCount++
			rs.TotalDurationSec += duration
			if err := tx.Save(&rs).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Database) GetUsageStats(ctx context.Context) (*models.UsageStats, error) {
	var stats models.UsageStats
	err := d.db.WithContext(ctx).Where("id = ?", 1).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UsageStats{ID: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
