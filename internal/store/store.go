// Package store defines the document-store interface the matching engine is
// written against, plus an in-memory implementation used in tests. The
// production implementation lives in internal/database.
package store

import (
	"context"
	"time"

	"housematch/server/internal/models"
)

// Store is the document-store collaborator: authoritative entity documents,
// the two denormalized snapshot collections, and the activity/usage
// collections the scheduled jobs maintain.
//
// Snapshot setters are merge upserts: fields a setter does not cover are
// preserved, never cleared. Getters return (nil, nil) for absent documents.
type Store interface {
	// Authoritative entities.
	GetEntity(ctx context.Context, kind models.Kind, id string) (models.RawDoc, error)
	PutEntity(ctx context.Context, kind models.Kind, id string, doc models.RawDoc) error
	DeleteEntity(ctx context.Context, kind models.Kind, id string) error
	// ListEntities returns all documents of a kind ordered by id.
	ListEntities(ctx context.Context, kind models.Kind) ([]models.EntityDoc, error)
	// ListEntitiesPage returns up to limit documents with id > afterID,
	// ordered by id. Cursor-based so it is stable under concurrent inserts.
	ListEntitiesPage(ctx context.Context, kind models.Kind, afterID string, limit int) ([]models.EntityDoc, error)

	// Listing-side snapshots.
	GetListingMatch(ctx context.Context, listingID string) (*models.ListingMatchDoc, error)
	UpsertListingProjection(ctx context.Context, v *models.ListingView) error
	SetListingMatches(ctx context.Context, listingID string, buyerIDs []string, entries []models.MatchEntry, at time.Time) error
	DeleteListingMatch(ctx context.Context, listingID string) error
	DeleteAllListingMatches(ctx context.Context) error

	// Buyer-side snapshots.
	GetBuyerMatch(ctx context.Context, buyerID string) (*models.BuyerMatchDoc, error)
	SetBuyerMatches(ctx context.Context, buyerID string, listingIDs []string, entries []models.MatchEntry, at time.Time) error
	DeleteBuyerMatch(ctx context.Context, buyerID string) error

	// Activity log (retention pruning).
	AppendActivity(ctx context.Context, entry *models.ActivityLog) error
	ListActivityUserIDs(ctx context.Context) ([]string, error)
	// ListActivityByUser returns entries newest first.
	ListActivityByUser(ctx context.Context, userID string) ([]models.ActivityLog, error)
	DeleteActivity(ctx context.Context, ids []uint) error

	// Session log and usage counters.
	AppendSession(ctx context.Context, s *models.SessionLog) error
	GetSession(ctx context.Context, id string) (*models.SessionLog, error)
	// AccumulateUsage atomically closes the session and applies the counter
	// deltas (session count, unique/repeat users, total duration) to the
	// global, per-user and per-role stats inside one transaction. Closing an
	// already-closed session is a no-op.
	AccumulateUsage(ctx context.Context, sessionID string, endedAt time.Time) error
	GetUsageStats(ctx context.Context) (*models.UsageStats, error)
}
