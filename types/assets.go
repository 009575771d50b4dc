package types

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Asset is a single unique digital item tracked by the registry
type Asset struct {
	ID        AssetID   `json:"id" db:"id"`
	Owner     Address   `json:"owner" db:"owner_address"`
	Locator   string    `json:"locator" db:"locator"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AssetDetail is the outward query shape for a single asset, including its
// active listing if one exists
type AssetDetail struct {
	ID        AssetID         `json:"id" db:"id"`
	Owner     Address         `json:"owner" db:"owner_address"`
	Locator   string          `json:"locator" db:"locator"`
	Listed    bool            `json:"listed" db:"listed"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Lister    null.String     `json:"lister,omitempty" db:"lister_address"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AssetMetadata is the JSON document pushed to the blob store at mint; the
// asset's content locator points at it
type AssetMetadata struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Creator      Address     `json:"creator"`
	CreatedAt    int64       `json:"created_at"`
	FileType     string      `json:"file_type"`
	MainURL      string      `json:"main_url"`
	ThumbnailURL null.String `json:"thumbnail_url,omitempty"`
	Image        string      `json:"image"`
}
