package db

import (
	"context"
	"relic-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/ninja-software/terror/v2"
)

// AssetInsert creates a new asset row and returns its allocated id. The id
// comes off a sequence so it is monotonic and never reused.
func AssetInsert(ctx context.Context, conn Conn, owner types.Address) (types.AssetID, error) {
	var id types.AssetID
	q := `--sql
		INSERT INTO assets (owner_address)
		VALUES ($1)
		RETURNING id`
	err := pgxscan.Get(ctx, conn, &id, q, owner)
	if err != nil {
		return 0, terror.Error(err)
	}
	return id, nil
}

// MetadataBind binds the content locator to an asset. The binding is
// set-once; a second call fails with ErrAlreadyBound.
func MetadataBind(ctx context.Context, conn Conn, assetID types.AssetID, locator string) error {
	q := `--sql
		INSERT INTO asset_metadata (asset_id, locator)
		VALUES ($1, $2)`
	_, err := conn.Exec(ctx, q, assetID, locator)
	if IsUniqueViolation(err) {
		return terror.Error(types.ErrAlreadyBound, "Metadata is already bound for this asset.")
	}
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

// AssetGet returns an asset with its bound locator
func AssetGet(ctx context.Context, conn Conn, assetID types.AssetID) (*types.Asset, error) {
	asset := &types.Asset{}
	q := `--sql
		SELECT a.id, a.owner_address, m.locator, a.created_at
		FROM assets a
		INNER JOIN asset_metadata m ON m.asset_id = a.id
		WHERE a.id = $1`
	err := pgxscan.Get(ctx, conn, asset, q, assetID)
	if IsNoRows(err) {
		return nil, terror.Error(types.ErrUnknownAsset, "Asset does not exist.")
	}
	if err != nil {
		return nil, terror.Error(err)
	}
	return asset, nil
}

// AssetGetForUpdate locks the asset row for the duration of the enclosing
// transaction and returns it. Must be called on a pgx.Tx.
func AssetGetForUpdate(ctx context.Context, conn Conn, assetID types.AssetID) (*types.Asset, error) {
	asset := &types.Asset{}
	q := `--sql
		SELECT a.id, a.owner_address, m.locator, a.created_at
		FROM assets a
		INNER JOIN asset_metadata m ON m.asset_id = a.id
		WHERE a.id = $1
		FOR UPDATE OF a`
	err := pgxscan.Get(ctx, conn, asset, q, assetID)
	if IsNoRows(err) {
		return nil, terror.Error(types.ErrUnknownAsset, "Asset does not exist.")
	}
	if err != nil {
		return nil, terror.Error(err)
	}
	return asset, nil
}

// AssetOwnerUpdate rewrites the owner of an asset
func AssetOwnerUpdate(ctx context.Context, conn Conn, assetID types.AssetID, owner types.Address) error {
	q := `--sql
		UPDATE assets
		SET owner_address = $2
		WHERE id = $1`
	tag, err := conn.Exec(ctx, q, assetID, owner)
	if err != nil {
		return terror.Error(err)
	}
	if tag.RowsAffected() == 0 {
		return terror.Error(types.ErrUnknownAsset, "Asset does not exist.")
	}
	return nil
}

// AssetDetailGet returns an asset joined with its active listing, if any
func AssetDetailGet(ctx context.Context, conn Conn, assetID types.AssetID) (*types.AssetDetail, error) {
	detail := &types.AssetDetail{}
	q := `--sql
		SELECT
			a.id,
			a.owner_address,
			m.locator,
			l.asset_id IS NOT NULL AS listed,
			COALESCE(l.price, 0) AS price,
			l.lister_address,
			a.created_at
		FROM assets a
		INNER JOIN asset_metadata m ON m.asset_id = a.id
		LEFT JOIN listings l ON l.asset_id = a.id
		WHERE a.id = $1`
	err := pgxscan.Get(ctx, conn, detail, q, assetID)
	if IsNoRows(err) {
		return nil, terror.Error(types.ErrUnknownAsset, "Asset does not exist.")
	}
	if err != nil {
		return nil, terror.Error(err)
	}
	return detail, nil
}

// AssetsByOwner returns every asset currently held by the owner, newest
// first
func AssetsByOwner(ctx context.Context, conn Conn, owner types.Address) ([]*types.AssetDetail, error) {
	assets := []*types.AssetDetail{}
	q := `--sql
		SELECT
			a.id,
			a.owner_address,
			m.locator,
			l.asset_id IS NOT NULL AS listed,
			COALESCE(l.price, 0) AS price,
			l.lister_address,
			a.created_at
		FROM assets a
		INNER JOIN asset_metadata m ON m.asset_id = a.id
		LEFT JOIN listings l ON l.asset_id = a.id
		WHERE a.owner_address = $1
		ORDER BY a.id DESC`
	err := pgxscan.Select(ctx, conn, &assets, q, owner)
	if err != nil {
		return nil, terror.Error(err)
	}
	return assets, nil
}
