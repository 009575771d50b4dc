package types

import (
	"time"
)

// Blob is a single stored content item; assets reference blobs through
// opaque blob:// locators
type Blob struct {
	ID            BlobID     `json:"id" db:"id"`
	FileName      string     `json:"file_name" db:"file_name"`
	MimeType      string     `json:"mime_type" db:"mime_type"`
	FileSizeBytes int64      `json:"file_size_bytes" db:"file_size_bytes"`
	Extension     string     `json:"extension" db:"extension"`
	File          []byte     `json:"file" db:"file"`
	Hash          *string    `json:"hash" db:"hash"`
	Public        bool       `json:"public" db:"public"`
	CreatedAt     *time.Time `json:"created_at" db:"created_at"`
}
