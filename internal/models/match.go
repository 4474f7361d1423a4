package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MatchEntry is one scored counterpart inside a snapshot document.
type MatchEntry struct {
	ID     string `json:"id"`
	Score  int    `json:"score"`
	Strict bool   `json:"strict"`
}

// StringList stores a []string as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value any) error {
	return scanJSON(value, l)
}

// MatchEntryList stores a []MatchEntry as a JSON text column.
type MatchEntryList []MatchEntry

func (l MatchEntryList) Value() (driver.Value, error) {
	if l == nil {
		l = MatchEntryList{}
	}
	return json.Marshal(l)
}

func (l *MatchEntryList) Scan(value any) error {
	return scanJSON(value, l)
}

func scanJSON(value, dest any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

// ListingMatchDoc is the listing-side snapshot document. It holds both the
// match-visible projection of the listing and the cached matched-buyer list,
// so reads on either half need no further queries. Writes merge: setting the
// projection leaves the match fields untouched and vice versa.
type ListingMatchDoc struct {
	ListingID        string         `gorm:"primaryKey;size:64" json:"listing_id"`
	Type             ListingType    `gorm:"size:16" json:"type"`
	Status           string         `json:"status"`
	AreaPy           *float64       `json:"area_py,omitempty"`
	Price            *int64         `json:"price,omitempty"`
	Deposit          *int64         `json:"deposit,omitempty"`
	Monthly          *int64         `json:"monthly,omitempty"`
	ClosedByUs       bool           `json:"closed_by_us"`
	Ownership        OwnershipType  `gorm:"size:16" json:"ownership"`
	ListingUpdatedAt int64          `json:"listing_updated_at"`
	MatchedBuyerIDs  StringList     `gorm:"type:text" json:"matched_buyer_ids"`
	MatchedBuyers    MatchEntryList `gorm:"type:text" json:"matched_buyers"`
	MatchesUpdatedAt time.Time      `json:"matches_updated_at"`
}

// TableName specifies the table name
func (ListingMatchDoc) TableName() string {
	return "match_listings"
}

// BuyerMatchDoc is the buyer-side snapshot document: the cached ranked list
// of matching listings for one buyer.
type BuyerMatchDoc struct {
	BuyerID    string         `gorm:"primaryKey;size:64" json:"buyer_id"`
	ListingIDs StringList     `gorm:"type:text" json:"listing_ids"`
	Matches    MatchEntryList `gorm:"type:text" json:"matches"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName specifies the table name
func (BuyerMatchDoc) TableName() string {
	return "match_buyers"
}
