package blobfs

import "time"

// Encoding names the on-disk encoding of a blob's data file.
type Encoding string

const (
	EncodingNone Encoding = ""
	EncodingZstd Encoding = "zstd"
)

// Meta contains metadata about a stored blob. It is stored separately
// from the blob data to enable metadata queries without reading the
// blob content.
type Meta struct {
	Identifier  string    `json:"identifier"`           // Store-assigned identifier
	Size        int64     `json:"size"`                 // Uncompressed size in bytes
	StoredSize  int64     `json:"storedSize"`           // Size of the data file on disk
	Sha256      string    `json:"sha256"`               // SHA-256 of the uncompressed content
	ContentType string    `json:"contentType"`          // MIME type detected from content
	Encoding    Encoding  `json:"encoding,omitempty"`   // On-disk encoding, empty for raw
	CreatedAt   time.Time `json:"createdAt"`            // Creation timestamp
}
