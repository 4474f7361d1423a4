// Package match implements the rule-based buyer/listing compatibility model:
// a lenient 0..3 score used for ranking and a stricter all-fields-present
// predicate used only as a confidence flag.
package match

import (
	"housematch/server/internal/models"
	"housematch/server/internal/normalize"
)

// CalcMatchScore scores a buyer against a listing. 0 means incompatible;
// passing listings score 1..3, one point per resolved field (type, area,
// price), with a floor of 1. Unknown fields count as compatible so a
// listing is never hidden just because it is incomplete.
func CalcMatchScore(b *models.BuyerView, l *models.ListingView) int {
	if !passesBasicMatch(b, l) {
		return 0
	}
	score := 0
	if l.Type != models.TypeUnknown {
		score++
	}
	if l.AreaPy != nil {
		score++
	}
	if resolvePrice(l) != nil {
		score++
	}
	if score == 0 {
		score = 1
	}
	return score
}

// IsStrictMatch is the stricter confidence predicate: every relevant field
// must be present and inside the buyer's constraints. Unlike the lenient
// score, a missing area or price fails.
func IsStrictMatch(b *models.BuyerView, l *models.ListingView) bool {
	if normalize.IsListingClosed(l.Status) {
		return false
	}
	if len(b.TypePrefs) == 0 || l.Type == models.TypeUnknown || !acceptsType(b.TypePrefs, l.Type) {
		return false
	}
	price := resolvePrice(l)
	if price == nil {
		return false
	}
	if b.BudgetMin != nil && *price < *b.BudgetMin {
		return false
	}
	if b.BudgetMax != nil && *price > *b.BudgetMax {
		return false
	}
	if !passesJeonseMonthlyCap(b, l) {
		return false
	}
	if l.AreaPy == nil {
		return false
	}
	area := *l.AreaPy
	if b.AreaMinPy != nil && area < *b.AreaMinPy {
		return false
	}
	if b.AreaMaxPy != nil && area > *b.AreaMaxPy {
		return false
	}
	if len(b.AreaPrefsPy) > 0 && !nearPreferredArea(b.AreaPrefsPy, area) {
		return false
	}
	return true
}

func passesBasicMatch(b *models.BuyerView, l *models.ListingView) bool {
	if normalize.IsListingClosed(l.Status) {
		return false
	}
	if len(b.TypePrefs) > 0 && !acceptsType(b.TypePrefs, l.Type) {
		return false
	}
	if l.AreaPy != nil {
		area := *l.AreaPy
		if b.AreaMinPy != nil && area < *b.AreaMinPy {
			return false
		}
		if b.AreaMaxPy != nil && area > *b.AreaMaxPy {
			return false
		}
		if len(b.AreaPrefsPy) > 0 && !nearPreferredArea(b.AreaPrefsPy, area) {
			return false
		}
	}
	price := resolvePrice(l)
	if price != nil {
		if b.BudgetMin != nil && *price < *b.BudgetMin {
			return false
		}
		if b.BudgetMax != nil && *price > *b.BudgetMax {
			return false
		}
		if !passesJeonseMonthlyCap(b, l) {
			return false
		}
	}
	return true
}

// resolvePrice picks the comparison price by transaction type: SALE uses the
// sale price, JEONSE the deposit with sale-price fallback, WOLSE the monthly
// rent with deposit then price fallbacks.
func resolvePrice(l *models.ListingView) *int64 {
	switch l.Type {
	case models.TypeSale:
		return l.Price
	case models.TypeJeonse:
		return firstInt(l.Deposit, l.Price)
	case models.TypeWolse:
		return firstInt(l.Monthly, l.Deposit, l.Price)
	default:
		return firstInt(l.Price, l.Deposit, l.Monthly)
	}
}

func passesJeonseMonthlyCap(b *models.BuyerView, l *models.ListingView) bool {
	if l.Type != models.TypeJeonse || b.MonthlyMax == nil {
		return true
	}
	monthly := firstInt(l.Monthly, l.Price)
	if monthly == nil {
		return true
	}
	return *monthly <= *b.MonthlyMax
}

func acceptsType(prefs []models.ListingType, t models.ListingType) bool {
	for _, p := range prefs {
		if p == t {
			return true
		}
	}
	return false
}

// nearPreferredArea reports whether the area is within ±1 pyeong of any
// discrete preferred size.
func nearPreferredArea(prefs []float64, area float64) bool {
	for _, p := range prefs {
		diff := area - p
		if diff < 0 {
			diff = -diff
		}
		if diff <= 1 {
			return true
		}
	}
	return false
}

func firstInt(vals ...*int64) *int64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
