package models

// ListingType is the normalized transaction type of a listing.
type ListingType string

const (
	TypeUnknown ListingType = ""
	TypeSale    ListingType = "SALE"
	TypeJeonse  ListingType = "JEONSE"
	TypeWolse   ListingType = "WOLSE"
)

// OwnershipType tells whether a listing is carried by us or a partner office.
type OwnershipType string

const (
	OwnershipOur     OwnershipType = "our"
	OwnershipPartner OwnershipType = "partner"
)

// ListingView is the canonical typed snapshot of a listing used by the
// matching engine. Pointer fields are nil when the source document has no
// usable value. Prices are in ten-thousand-won units, areas in pyeong.
type ListingView struct {
	ID         string
	Type       ListingType
	Status     string
	AreaPy     *float64
	Price      *int64
	Deposit    *int64
	Monthly    *int64
	ClosedByUs bool
	Ownership  OwnershipType
	UpdatedAt  int64
}

// BuyerView is the canonical typed snapshot of a buyer lead. An empty
// TypePrefs means the buyer accepts any transaction type; nil bounds are
// unbounded.
type BuyerView struct {
	ID          string
	TypePrefs   []ListingType
	BudgetMin   *int64
	BudgetMax   *int64
	MonthlyMax  *int64
	AreaMinPy   *float64
	AreaMaxPy   *float64
	AreaPrefsPy []float64
	Status      string
}
