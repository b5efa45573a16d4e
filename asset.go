package mediastore

import (
	"io"
	"strings"
	"time"
)

// Asset is a binary-backed entity. Its metadata record lives in a
// RecordStore while the binary payload lives in a BlobStore, connected
// through StoreIdentifier.
//
// An asset moves through four expiration states derived from two
// stored fields, ExpiresAt and Expired:
//
//   - expirable: ExpiresAt is set
//   - expiring: not Expired, expirable, and ExpiresAt is at or before now
//   - expired: the Expired flag is set, independent of ExpiresAt
//   - unexpiring: Expired, and ExpiresAt is unset or in the future
//
// The Expired flag is only toggled by lifecycle transitions (the
// sweeper or the explicit Expire/Unexpire operations), never by plain
// metadata updates.
type Asset struct {
	// ID is assigned by the RecordStore on creation and immutable
	// thereafter.
	ID string `cbor:"id" json:"id"`

	Name        string `cbor:"name,omitempty" json:"name,omitempty"`
	Title       string `cbor:"title,omitempty" json:"title,omitempty"`
	Description string `cbor:"description,omitempty" json:"description,omitempty"`

	// StoreIdentifier points at the binary payload in the BlobStore.
	// Set exactly once during Create, never reassigned afterward.
	StoreIdentifier string `cbor:"storeIdentifier" json:"storeIdentifier"`

	MetaData map[string]string `cbor:"metaData,omitempty" json:"metaData,omitempty"`

	// ExpiresAt is the expiration date. The zero value means the asset
	// is not expirable.
	ExpiresAt time.Time `cbor:"expiresAt,omitempty" json:"expiresAt,omitempty"`

	// Expired marks the asset as expired. Independent of ExpiresAt.
	Expired bool `cbor:"expired,omitempty" json:"expired,omitempty"`

	CreatedAt  time.Time `cbor:"createdAt" json:"createdAt"`
	ModifiedAt time.Time `cbor:"modifiedAt" json:"modifiedAt"`

	// Transient binary stream, attached by Create input or ReadStream.
	// Never persisted.
	stream io.ReadCloser
}

// normalize trims surrounding whitespace and collapses blank input to
// the empty string, the in-Go representation of "absent".
func normalize(s string) string {
	return strings.TrimSpace(s)
}

// SetName sets the asset name, usually the original filename. Blank
// input collapses to absent.
func (a *Asset) SetName(name string) {
	a.Name = normalize(name)
}

// SetTitle sets the public title. Blank input collapses to absent.
func (a *Asset) SetTitle(title string) {
	a.Title = normalize(title)
}

// SetDescription sets the description. Blank input collapses to absent.
func (a *Asset) SetDescription(description string) {
	a.Description = normalize(description)
}

// SetMetaData stores a key/value pair. Duplicate keys overwrite.
// Returns ErrEmptyMetaKey for an empty key.
func (a *Asset) SetMetaData(key, value string) error {
	if key == "" {
		return ErrEmptyMetaKey
	}
	if a.MetaData == nil {
		a.MetaData = make(map[string]string)
	}
	a.MetaData[key] = value
	return nil
}

// MetaDataValue returns the value stored under key and whether it is
// present.
func (a *Asset) MetaDataValue(key string) (string, bool) {
	value, ok := a.MetaData[key]
	return value, ok
}

// DeleteMetaData removes the entry stored under key.
func (a *Asset) DeleteMetaData(key string) {
	delete(a.MetaData, key)
}

// ClearMetaData removes all metadata entries.
func (a *Asset) ClearMetaData() {
	a.MetaData = nil
}

// Expirable reports whether an expiration date is set.
func (a *Asset) Expirable() bool {
	return !a.ExpiresAt.IsZero()
}

// Expiring reports whether the asset has reached its expiration date
// but has not been marked expired yet.
func (a *Asset) Expiring(now time.Time) bool {
	return !a.Expired && a.Expirable() && !a.ExpiresAt.After(now)
}

// Unexpiring reports whether the asset is marked expired although its
// expiration date is unset or in the future.
func (a *Asset) Unexpiring(now time.Time) bool {
	return a.Expired && (!a.Expirable() || a.ExpiresAt.After(now))
}

// AttachStream attaches the binary stream. An existing stream is
// replaced without being closed; the caller owns both.
func (a *Asset) AttachStream(rc io.ReadCloser) {
	a.stream = rc
}

// Stream returns the attached binary stream, or nil.
func (a *Asset) Stream() io.ReadCloser {
	return a.stream
}

// HasStream reports whether a binary stream is attached.
func (a *Asset) HasStream() bool {
	return a.stream != nil
}
