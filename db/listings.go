package db

import (
	"context"
	"relic-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// ListingInsert stores an active listing for an asset. Fails with
// ErrAlreadyListed if one already exists.
func ListingInsert(ctx context.Context, conn Conn, assetID types.AssetID, price decimal.Decimal, lister types.Address) error {
	q := `--sql
		INSERT INTO listings (asset_id, price, lister_address)
		VALUES ($1, $2, $3)`
	_, err := conn.Exec(ctx, q, assetID, price, lister)
	if IsUniqueViolation(err) {
		return terror.Error(types.ErrAlreadyListed, "Asset is already listed for sale.")
	}
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// ListingGet returns the active listing for an asset, ErrNotListed if absent
func ListingGet(ctx context.Context, conn Conn, assetID types.AssetID) (*types.Listing, error) {
	listing := &types.Listing{}
	q := `--sql
		SELECT asset_id, price, lister_address, created_at
		FROM listings
		WHERE asset_id = $1`
	err := pgxscan.Get(ctx, conn, listing, q, assetID)
	if IsNoRows(err) {
		return nil, terror.Error(types.ErrNotListed, "Asset is not listed for sale.")
	}
	if err != nil {
		return nil, terror.Error(err)
	}
	return listing, nil
}

// ListingGetForUpdate locks the listing row for the duration of the
// enclosing transaction. Must be called on a pgx.Tx.
func ListingGetForUpdate(ctx context.Context, conn Conn, assetID types.AssetID) (*types.Listing, error) {
	listing := &types.Listing{}
	q := `--sql
		SELECT asset_id, price, lister_address, created_at
		FROM listings
		WHERE asset_id = $1
		FOR UPDATE`
	err := pgxscan.Get(ctx, conn, listing, q, assetID)
	if IsNoRows(err) {
		return nil, terror.Error(types.ErrNotListed, "Asset is not listed for sale.")
	}
	if err != nil {
		return nil, terror.Error(err)
	}
	return listing, nil
}

// ListingDelete removes the active listing for an asset. Removing a
// non-existent listing is not an error here; callers that care check first.
func ListingDelete(ctx context.Context, conn Conn, assetID types.AssetID) error {
	q := `--sql
		DELETE FROM listings
		WHERE asset_id = $1`
	_, err := conn.Exec(ctx, q, assetID)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// ListingsAll returns every active listing joined with its asset, newest
// first
func ListingsAll(ctx context.Context, conn Conn) ([]*types.ListingDetail, error) {
	listings := []*types.ListingDetail{}
	q := `--sql
		SELECT
			l.asset_id,
			l.price,
			l.lister_address,
			a.owner_address,
			m.locator,
			l.created_at
		FROM listings l
		INNER JOIN assets a ON a.id = l.asset_id
		INNER JOIN asset_metadata m ON m.asset_id = l.asset_id
		ORDER BY l.created_at DESC`
	err := pgxscan.Select(ctx, conn, &listings, q)
	if err != nil {
		return nil, terror.Error(err)
	}
	return listings, nil
}
