// Package normalize converts raw stored listing/buyer documents into the
// canonical typed views the matching engine works with. It never fails on
// bad data: unparseable values are coerced to nil/zero, and entities are
// only excluded via the tombstone and status rules.
package normalize

import (
	"strings"

	"housematch/server/internal/models"
)

// listingClosedKeywords mark a listing's status as transaction-closed.
// Checked at scoring time, not at indexing time.
var listingClosedKeywords = []string{"완료", "종료", "마감"}

// buyerArchivedKeywords exclude a buyer from matching entirely.
var buyerArchivedKeywords = []string{"archived", "inactive", "완료", "종료"}

// NormalizeType maps the free-text transaction type to a tagged variant.
func NormalizeType(s string) models.ListingType {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return models.TypeUnknown
	}
	switch {
	case strings.Contains(t, "매매") || strings.Contains(t, "sale"):
		return models.TypeSale
	case strings.Contains(t, "전세") || strings.Contains(t, "jeonse"):
		return models.TypeJeonse
	case strings.Contains(t, "월세") || strings.Contains(t, "rent"):
		return models.TypeWolse
	default:
		return models.TypeUnknown
	}
}

// IsListingClosed reports whether the status text contains a
// transaction-closing keyword.
func IsListingClosed(status string) bool {
	return containsAny(status, listingClosedKeywords)
}

func isBuyerArchived(status string) bool {
	return containsAny(status, buyerArchivedKeywords)
}

func containsAny(s string, keywords []string) bool {
	folded := strings.ToLower(stripSpace(s))
	if folded == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

// NormalizeListing builds a ListingView from a raw document. Returns nil
// when the document is absent or tombstoned (deletedAt > 0).
func NormalizeListing(id string, raw models.RawDoc) *models.ListingView {
	if raw == nil {
		return nil
	}
	if deletedAt(raw) > 0 {
		return nil
	}
	return &models.ListingView{
		ID:         id,
		Type:       NormalizeType(coerceString(raw["type"])),
		Status:     coerceString(raw["status"]),
		AreaPy:     coerceFloat(raw["area_py"]),
		Price:      coerceInt(raw["price"]),
		Deposit:    coerceInt(raw["deposit"]),
		Monthly:    coerceInt(raw["monthly"]),
		ClosedByUs: coerceBool(raw["closedByUs"]),
		Ownership:  coerceOwnership(raw["ownershipType"]),
		UpdatedAt:  coerceEpoch(raw["updatedAt"]),
	}
}

// NormalizeBuyer builds a BuyerView from a raw document. Returns nil when
// the document is absent, tombstoned, or the status text contains an
// archival keyword.
func NormalizeBuyer(id string, raw models.RawDoc) *models.BuyerView {
	if raw == nil {
		return nil
	}
	if deletedAt(raw) > 0 {
		return nil
	}
	status := coerceString(raw["status"])
	if isBuyerArchived(status) {
		return nil
	}
	return &models.BuyerView{
		ID:          id,
		TypePrefs:   normalizeTypePrefs(raw["typePrefs"]),
		BudgetMin:   coerceInt(raw["budgetMin"]),
		BudgetMax:   coerceInt(raw["budgetMax"]),
		MonthlyMax:  coerceInt(raw["monthlyMax"]),
		AreaMinPy:   coerceFloat(raw["areaMinPy"]),
		AreaMaxPy:   coerceFloat(raw["areaMaxPy"]),
		AreaPrefsPy: coerceFloatSlice(raw["areaPrefsPy"]),
		Status:      status,
	}
}

// BuyerMatchFields is the projection of a buyer document to exactly the
// fields that influence matching. Two writes with equal projections need no
// reindexing.
type BuyerMatchFields struct {
	TypePrefs   []models.ListingType
	BudgetMin   *int64
	BudgetMax   *int64
	MonthlyMax  *int64
	AreaMinPy   *float64
	AreaMaxPy   *float64
	AreaPrefsPy []float64
	Status      string
	DeletedAt   int64
}

// ExtractBuyerMatchFields projects a raw buyer document to its
// match-relevant fields for the reindexer's debounce comparison.
func ExtractBuyerMatchFields(raw models.RawDoc) BuyerMatchFields {
	if raw == nil {
		return BuyerMatchFields{}
	}
	return BuyerMatchFields{
		TypePrefs:   normalizeTypePrefs(raw["typePrefs"]),
		BudgetMin:   coerceInt(raw["budgetMin"]),
		BudgetMax:   coerceInt(raw["budgetMax"]),
		MonthlyMax:  coerceInt(raw["monthlyMax"]),
		AreaMinPy:   coerceFloat(raw["areaMinPy"]),
		AreaMaxPy:   coerceFloat(raw["areaMaxPy"]),
		AreaPrefsPy: coerceFloatSlice(raw["areaPrefsPy"]),
		Status:      coerceString(raw["status"]),
		DeletedAt:   deletedAt(raw),
	}
}

func normalizeTypePrefs(v any) []models.ListingType {
	rawPrefs := coerceStringSlice(v)
	if len(rawPrefs) == 0 {
		return nil
	}
	prefs := make([]models.ListingType, 0, len(rawPrefs))
	for _, p := range rawPrefs {
		prefs = append(prefs, NormalizeType(p))
	}
	return prefs
}

func deletedAt(raw models.RawDoc) int64 {
	return coerceEpoch(raw["deletedAt"])
}

func coerceOwnership(v any) models.OwnershipType {
	if coerceString(v) == string(models.OwnershipPartner) {
		return models.OwnershipPartner
	}
	return models.OwnershipOur
}
