package match

import (
	"sort"

	"housematch/server/internal/models"
)

// DefaultLimit bounds every snapshot list so documents stay small.
const DefaultLimit = 20

// MatchListingsForBuyer scores every listing for the buyer, drops
// non-matches, sorts by descending score and truncates. The sort is stable:
// ties keep the input order, so snapshots are reproducible.
func MatchListingsForBuyer(b *models.BuyerView, listings []*models.ListingView, limit int) []models.MatchEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var out []models.MatchEntry
	for _, l := range listings {
		score := CalcMatchScore(b, l)
		if score == 0 {
			continue
		}
		out = append(out, models.MatchEntry{ID: l.ID, Score: score, Strict: IsStrictMatch(b, l)})
	}
	sortByScore(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MatchBuyersForListing is the mirror operation for the listing side.
func MatchBuyersForListing(l *models.ListingView, buyers []*models.BuyerView, limit int) []models.MatchEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var out []models.MatchEntry
	for _, b := range buyers {
		score := CalcMatchScore(b, l)
		if score == 0 {
			continue
		}
		out = append(out, models.MatchEntry{ID: b.ID, Score: score, Strict: IsStrictMatch(b, l)})
	}
	sortByScore(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortByScore(entries []models.MatchEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
}

// EntryIDs projects match entries to their counterpart ids, preserving rank
// order.
func EntryIDs(entries []models.MatchEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
