// Package database implements the store.Store interface on sqlite via gorm.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"housematch/server/internal/models"
)

type Database struct {
	db *gorm.DB
}

// NewDatabase opens (or creates) the sqlite database at dbPath.
func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// RunMigrations creates or updates the schema.
func (d *Database) RunMigrations() error {
	return d.db.AutoMigrate(
		&models.Entity{},
		&models.ListingMatchDoc{},
		&models.BuyerMatchDoc{},
		&models.ActivityLog{},
		&models.SessionLog{},
		&models.UsageStats{},
		&models.RoleStats{},
		&models.UserStats{},
	)
}

// GetDB exposes the underlying gorm handle for tests.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetEntity(ctx context.Context, kind models.Kind, id string) (models.RawDoc, error) {
	var row models.Entity
	err := d.db.WithContext(ctx).Where("kind = ? AND id = ?", kind, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDoc(row.Data)
}

func (d *Database) PutEntity(ctx context.Context, kind models.Kind, id string, doc models.RawDoc) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", kind, err)
	}
	row := models.Entity{Kind: kind, ID: id, Data: string(data), UpdatedAt: time.Now()}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
}

func (d *Database) DeleteEntity(ctx context.Context, kind models.Kind, id string) error {
	return d.db.WithContext(ctx).Where("kind = ? AND id = ?", kind, id).Delete(&models.Entity{}).Error
}

func (d *Database) ListEntities(ctx context.Context, kind models.Kind) ([]models.EntityDoc, error) {
	return d.listEntities(ctx, kind, "", 0)
}

func (d *Database) ListEntitiesPage(ctx context.Context, kind models.Kind, afterID string, limit int) ([]models.EntityDoc, error) {
	return d.listEntities(ctx, kind, afterID, limit)
}

func (d *Database) listEntities(ctx context.Context, kind models.Kind, afterID string, limit int) ([]models.EntityDoc, error) {
	q := d.db.WithContext(ctx).Where("kind = ? AND id > ?", kind, afterID).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Entity
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.EntityDoc, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDoc(row.Data)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s document %s: %w", kind, row.ID, err)
		}
		out = append(out, models.EntityDoc{ID: row.ID, Data: doc})
	}
	return out, nil
}

func (d *Database) GetListingMatch(ctx context.Context, listingID string) (*models.ListingMatchDoc, error) {
	var doc models.ListingMatchDoc
	err := d.db.WithContext(ctx).Where("listing_id = ?", listingID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

var listingProjectionColumns = []string{
	"type", "status", "area_py", "price", "deposit", "monthly",
	"closed_by_us", "ownership", "listing_updated_at",
}

func (d *Database) UpsertListingProjection(ctx context.Context, v *models.ListingView) error {
	doc := models.ListingMatchDoc{
		ListingID:        v.ID,
		Type:             v.Type,
		Status:           v.Status,
		AreaPy:           v.AreaPy,
		Price:            v.Price,
		Deposit:          v.Deposit,
		Monthly:          v.Monthly,
		ClosedByUs:       v.ClosedByUs,
		Ownership:        v.Ownership,
		ListingUpdatedAt: v.UpdatedAt,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns(listingProjectionColumns),
	}).Create(&doc).Error
}

func (d *Database) SetListingMatches(ctx context.Context, listingID string, buyerIDs []string, entries []models.MatchEntry, at time.Time) error {
	doc := models.ListingMatchDoc{
		ListingID:        listingID,
		MatchedBuyerIDs:  models.StringList(buyerIDs),
		MatchedBuyers:    models.MatchEntryList(entries),
		MatchesUpdatedAt: at,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"matched_buyer_ids", "matched_buyers", "matches_updated_at"}),
	}).Create(&doc).Error
}

func (d *Database) DeleteListingMatch(ctx context.Context, listingID string) error {
	return d.db.WithContext(ctx).Where("listing_id = ?", listingID).Delete(&models.ListingMatchDoc{}).Error
}

func (d *Database) DeleteAllListingMatches(ctx context.Context) error {
	return d.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ListingMatchDoc{}).Error
}

func (d *Database) GetBuyerMatch(ctx context.Context, buyerID string) (*models.BuyerMatchDoc, error) {
	var doc models.BuyerMatchDoc
	err := d.db.WithContext(ctx).Where("buyer_id = ?", buyerID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Database) SetBuyerMatches(ctx context.Context, buyerID string, listingIDs []string, entries []models.MatchEntry, at time.Time) error {
	doc := models.BuyerMatchDoc{
		BuyerID:    buyerID,
		ListingIDs: models.StringList(listingIDs),
		Matches:    models.MatchEntryList(entries),
		UpdatedAt:  at,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "buyer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"listing_ids", "matches", "updated_at"}),
	}).Create(&doc).Error
}

func (d *Database) DeleteBuyerMatch(ctx context.Context, buyerID string) error {
	return d.db.WithContext(ctx).Where("buyer_id = ?", buyerID).Delete(&models.BuyerMatchDoc{}).Error
}

func decodeDoc(data string) (models.RawDoc, error) {
	if data == "" {
		return models.RawDoc{}, nil
	}
	var doc models.RawDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
