package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"housematch/server/internal/models"
)

// Memory is an in-memory Store used by the engine tests. Behavior mirrors
// the database implementation: ordered listing, cursor paging, merge-upsert
// snapshot writes.
type Memory struct {
	mu         sync.RWMutex
	entities   map[models.Kind]map[string]models.RawDoc
	listings   map[string]*models.ListingMatchDoc
	buyers     map[string]*models.BuyerMatchDoc
	activity   []models.ActivityLog
	nextLogID  uint
	sessions   map[string]*models.SessionLog
	usage      models.UsageStats
	roleStats  map[string]*models.RoleStats
	userStats  map[string]*models.UserStats
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entities: map[models.Kind]map[string]models.RawDoc{
			models.KindListing: {},
			models.KindBuyer:   {},
		},
		listings:  map[string]*models.ListingMatchDoc{},
		buyers:    map[string]*models.BuyerMatchDoc{},
		nextLogID: 1,
		sessions:  map[string]*models.SessionLog{},
		usage:     models.UsageStats{ID: 1},
		roleStats: map[string]*models.RoleStats{},
		userStats: map[string]*models.UserStats{},
	}
}

func (m *Memory) GetEntity(_ context.Context, kind models.Kind, id string) (models.RawDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.entities[kind][id]
	if !ok {
		return nil, nil
	}
	return copyDoc(doc), nil
}

func (m *Memory) PutEntity(_ context.Context, kind models.Kind, id string, doc models.RawDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[kind][id] = copyDoc(doc)
	return nil
}

func (m *Memory) DeleteEntity(_ context.Context, kind models.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities[kind], id)
	return nil
}

func (m *Memory) ListEntities(_ context.Context, kind models.Kind) ([]models.EntityDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(kind, "", 0), nil
}

func (m *Memory) ListEntitiesPage(_ context.Context, kind models.Kind, afterID string, limit int) ([]models.EntityDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(kind, afterID, limit), nil
}

func (m *Memory) listLocked(kind models.Kind, afterID string, limit int) []models.EntityDoc {
	ids := make([]string, 0, len(m.entities[kind]))
	for id := range m.entities[kind] {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]models.EntityDoc, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.EntityDoc{ID: id, Data: copyDoc(m.entities[kind][id])})
	}
	return out
}

func (m *Memory) GetListingMatch(_ context.Context, listingID string) (*models.ListingMatchDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.listings[listingID]
	if !ok {
		return nil, nil
	}
	cp := *doc
	cp.MatchedBuyerIDs = append(models.StringList{}, doc.MatchedBuyerIDs...)
	cp.MatchedBuyers = append(models.MatchEntryList{}, doc.MatchedBuyers...)
	return &cp, nil
}

func (m *Memory) UpsertListingProjection(_ context.Context, v *models.ListingView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.listings[v.ID]
	if !ok {
		doc = &models.ListingMatchDoc{ListingID: v.ID}
		m.listings[v.ID] = doc
	}
	doc.Type = v.Type
	doc.Status = v.Status
	doc.AreaPy = v.AreaPy
	doc.Price = v.Price
	doc.Deposit = v.Deposit
	doc.Monthly = v.Monthly
	doc.ClosedByUs = v.ClosedByUs
	doc.Ownership = v.Ownership
	doc.ListingUpdatedAt = v.UpdatedAt
	return nil
}

func (m *Memory) SetListingMatches(_ context.Context, listingID string, buyerIDs []string, entries []models.MatchEntry, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.listings[listingID]
	if !ok {
		doc = &models.ListingMatchDoc{ListingID: listingID}
		m.listings[listingID] = doc
	}
	doc.MatchedBuyerIDs = append(models.StringList{}, buyerIDs...)
	doc.MatchedBuyers = append(models.MatchEntryList{}, entries...)
	doc.MatchesUpdatedAt = at
	return nil
}

func (m *Memory) DeleteListingMatch(_ context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, listingID)
	return nil
}

func (m *Memory) DeleteAllListingMatches(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings = map[string]*models.ListingMatchDoc{}
	return nil
}

func (m *Memory) GetBuyerMatch(_ context.Context, buyerID string) (*models.BuyerMatchDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.buyers[buyerID]
	if !ok {
		return nil, nil
	}
	cp := *doc
	cp.ListingIDs = append(models.StringList{}, doc.ListingIDs...)
	cp.Matches = append(models.MatchEntryList{}, doc.Matches...)
	return &cp, nil
}

func (m *Memory) SetBuyerMatches(_ context.Context, buyerID string, listingIDs []string, entries []models.MatchEntry, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.buyers[buyerID]
	if !ok {
		doc = &models.BuyerMatchDoc{BuyerID: buyerID}
		m.buyers[buyerID] = doc
	}
	doc.ListingIDs = append(models.StringList{}, listingIDs...)
	doc.Matches = append(models.MatchEntryList{}, entries...)
	doc.UpdatedAt = at
	return nil
}

func (m *Memory) DeleteBuyerMatch(_ context.Context, buyerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buyers, buyerID)
	return nil
}

func (m *Memory) AppendActivity(_ context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.nextLogID
	m.nextLogID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.activity = append(m.activity, *entry)
	return nil
}

func (m *Memory) ListActivityUserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]struct{}{}
	var ids []string
	for _, e := range m.activity {
		if _, ok := seen[e.UserID]; !ok {
			seen[e.UserID] = struct{}{}
			ids = append(ids, e.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) ListActivityByUser(_ context.Context, userID string) ([]models.ActivityLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ActivityLog
	for _, e := range m.activity {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteActivity(_ context.Context, ids []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[uint]struct{}{}
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := m.activity[:0]
	for _, e := range m.activity {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	m.activity = kept
	return nil
}

func (m *Memory) AppendSession(_ context.Context, s *models.SessionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*models.SessionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) AccumulateUsage(_ context.Context, sessionID string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.Closed {
		return nil
	}
	duration := int64(endedAt.Sub(s.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	s.Closed = true
	s.EndedAt = &endedAt
	s.DurationSec = duration

	us, ok := m.userStats[s.UserID]
	if !ok {
		us = &models.UserStats{UserID: s.UserID}
		m.userStats[s.UserID] = us
		m.usage.UniqueUsers++
	} else if us.SessionCount == 1 {
		m.usage.RepeatUsers++
	}
	us.SessionCount++
	us.TotalDurationSec += duration
	us.LastSessionAt = endedAt

	m.usage.SessionCount++
	m.usage.TotalDurationSec += duration

	if s.Role != "" {
		rs, ok := m.roleStats[s.Role]
		if !ok {
			rs = &models.RoleStats{Role: s.Role}
			m.roleStats[s.Role] = rs
		}
		rs.SessionCount++
		rs.TotalDurationSec += duration
	}
	return nil
}

func (m *Memory) GetUsageStats(_ context.Context) (*models.UsageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := m.usage
	return &cp, nil
}

func copyDoc(doc models.RawDoc) models.RawDoc {
	if doc == nil {
		return nil
	}
	cp := make(models.RawDoc, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp
}
