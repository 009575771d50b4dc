package db

import (
	"context"
	"relic-services/types"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/ninja-software/terror/v2"
)

// BlobGet returns a blob by given ID
func BlobGet(ctx context.Context, conn Conn, blobID types.BlobID) (*types.Blob, error) {
	blob := &types.Blob{}
	q := `--sql
		SELECT id, file_name, mime_type, file_size_bytes, extension, file, hash, public, created_at
		FROM blobs
		WHERE id = $1`
	err := pgxscan.Get(ctx, conn, blob, q, blobID)
	if err != nil {
		return nil, terror.Error(err)
	}
	return blob, nil
}

// BlobGetByHash returns a blob by hash and file size, used to dedupe uploads
func BlobGetByHash(ctx context.Context, conn Conn, hash string, fileSizeBytes int64) (*types.Blob, error) {
	blob := &types.Blob{}
	q := `--sql
		SELECT id, file_name, mime_type, file_size_bytes, extension, file, hash, public, created_at
		FROM blobs
		WHERE file_size_bytes = $1 AND hash = $2`
	err := pgxscan.Get(ctx, conn, blob, q, fileSizeBytes, hash)
	if err != nil {
		return nil, terror.Error(err)
	}
	return blob, nil
}

// BlobInsert inserts a new blob
func BlobInsert(ctx context.Context, conn Conn, blob *types.Blob) error {
	q := `--sql
		INSERT INTO blobs (file_name, mime_type, file_size_bytes, extension, file, hash, public)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := pgxscan.Get(ctx, conn, blob, q,
		blob.FileName,
		blob.MimeType,
		blob.FileSizeBytes,
		blob.Extension,
		blob.File,
		blob.Hash,
		blob.Public,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}
