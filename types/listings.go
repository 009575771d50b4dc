package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is an offer to sell a specific asset at a specific price. An asset
// has at most one active listing and the lister must equal the asset owner
// at creation time.
type Listing struct {
	AssetID   AssetID         `json:"asset_id" db:"asset_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Lister    Address         `json:"lister" db:"lister_address"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ListingDetail is a listing joined with its asset for the browse view
type ListingDetail struct {
	AssetID   AssetID         `json:"asset_id" db:"asset_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Lister    Address         `json:"lister" db:"lister_address"`
	Owner     Address         `json:"owner" db:"owner_address"`
	Locator   string          `json:"locator" db:"locator"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
