// Package blob is the content store the marketplace records locators into.
// The ledger treats locators as opaque strings; everything here sits in
// front of the transactional core.
package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"relic-services/db"
	"relic-services/types"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/h2non/filetype"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ninja-software/terror/v2"
	"github.com/volatiletech/null/v8"
)

var ErrUnknownFileType = fmt.Errorf("file type is unknown")

const locatorScheme = "blob://"

// Store puts content somewhere retrievable and returns an opaque locator
type Store interface {
	Put(ctx context.Context, fileName string, content []byte, public bool) (string, error)
	Get(ctx context.Context, locator string) (*types.Blob, error)
}

// PgStore keeps uploaded content in the blobs table and issues blob://<id>
// locators
type PgStore struct {
	Conn *pgxpool.Pool
}

func NewPgStore(conn *pgxpool.Pool) *PgStore {
	return &PgStore{Conn: conn}
}

// Put stores content, deduplicating on hash + size, and returns its locator
func (s *PgStore) Put(ctx context.Context, fileName string, content []byte, public bool) (string, error) {
	if len(content) == 0 {
		return "", terror.Error(types.ErrInvalidInput, "File is empty.")
	}

	mimeType := "application/json"
	extension := "json"
	if !json.Valid(content) {
		kind, err := filetype.Match(content)
		if err != nil {
			return "", terror.Error(err, "Could not read file type.")
		}
		if kind == filetype.Unknown {
			return "", terror.Error(ErrUnknownFileType, "File type is unknown.")
		}
		mimeType = kind.MIME.Value
		extension = kind.Extension
	}

	hasher := md5.New()
	hasher.Write(content)
	hashResult := hasher.Sum(nil)
	hash := hex.EncodeToString(hashResult)

	existing, err := db.BlobGetByHash(ctx, s.Conn, hash, int64(len(content)))
	if err == nil {
		return locatorScheme + existing.ID.String(), nil
	}

	b := &types.Blob{
		FileName:      fileName,
		MimeType:      mimeType,
		FileSizeBytes: int64(len(content)),
		Extension:     extension,
		File:          content,
		Hash:          &hash,
		Public:        public,
	}
	err = db.BlobInsert(ctx, s.Conn, b)
	if err != nil {
		return "", terror.Error(err, "Could not store file.")
	}
	return locatorScheme + b.ID.String(), nil
}

// Get resolves a blob:// locator back to stored content
func (s *PgStore) Get(ctx context.Context, locator string) (*types.Blob, error) {
	idStr := strings.TrimPrefix(locator, locatorScheme)
	if idStr == locator {
		return nil, terror.Error(types.ErrInvalidInput, "Not a blob locator.")
	}
	id, err := uuid.FromString(idStr)
	if err != nil {
		return nil, terror.Error(types.ErrInvalidInput, "Invalid blob locator.")
	}
	blob, err := db.BlobGet(ctx, s.Conn, types.BlobID(id))
	if err != nil {
		return nil, terror.Error(err, "File not found.")
	}
	return blob, nil
}

// PrepareMetadata uploads the content file and optional thumbnail, then the
// metadata document pointing at them, and returns the metadata locator that
// gets bound to the asset at mint
func PrepareMetadata(ctx context.Context, store Store, creator types.Address, name, description, fileType, fileName string, content []byte, thumbnail []byte) (string, error) {
	mainLocator, err := store.Put(ctx, fileName, content, true)
	if err != nil {
		return "", err
	}

	metadata := &types.AssetMetadata{
		Name:        name,
		Description: description,
		Creator:     creator,
		CreatedAt:   time.Now().Unix(),
		FileType:    fileType,
		MainURL:     mainLocator,
		Image:       mainLocator,
	}

	if len(thumbnail) > 0 {
		thumbLocator, err := store.Put(ctx, "thumb_"+fileName, thumbnail, true)
		if err != nil {
			return "", err
		}
		metadata.ThumbnailURL = null.StringFrom(thumbLocator)
		if fileType == "video" || fileType == "audio" {
			metadata.Image = thumbLocator
		}
	}

	doc, err := json.Marshal(metadata)
	if err != nil {
		return "", terror.Error(err)
	}
	return store.Put(ctx, fmt.Sprintf("metadata_%d.json", time.Now().Unix()), doc, true)
}
