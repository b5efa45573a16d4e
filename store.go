package mediastore

import (
	"context"
	"io"
)

// Named lookup queries the sweeper depends on. A RecordStore must have
// both registered before a Sweeper accepts work.
const (
	// QueryExpiring selects all assets currently in expiring state.
	QueryExpiring = "assets.expiring"

	// QueryUnexpiring selects all assets currently in unexpiring state.
	QueryUnexpiring = "assets.unexpiring"
)

// BlobStore stores raw binary payloads under opaque identifiers.
// Identifiers are assigned by Put and never reused. Operations stop
// early once the context is cancelled or past its deadline.
type BlobStore interface {
	// Put stores the contents of r and returns the assigned identifier.
	Put(ctx context.Context, r io.Reader) (string, error)

	// Get opens the payload stored under the identifier. The caller
	// must close the returned reader.
	Get(ctx context.Context, identifier string) (io.ReadCloser, error)

	// Delete removes the payload stored under the identifier. Deleting
	// an unknown identifier is a no-op.
	Delete(ctx context.Context, identifier string) error
}

// RecordStore is transactional structured storage for asset and
// directory records. Every callback runs inside one atomic transaction:
// it either fully commits or fully rolls back, and concurrent
// read-modify-write transactions touching the same records are
// serialized by conflict detection. A cancelled or expired context
// fails the transaction with a PersistenceError wrapping the context
// error.
type RecordStore interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx RecordTx) error) error

	// Update runs fn in a read-write transaction and commits it if fn
	// returns nil.
	Update(ctx context.Context, fn func(tx RecordTx) error) error

	// HasQuery reports whether a named query is registered.
	HasQuery(name string) bool
}

// RecordTx is the operation surface of a single RecordStore
// transaction.
type RecordTx interface {
	// CreateAsset persists a new asset and assigns its ID.
	CreateAsset(asset *Asset) error

	// Asset loads an asset by ID, or ErrNotFound.
	Asset(id string) (*Asset, error)

	// PutAsset persists changes to an existing asset.
	PutAsset(asset *Asset) error

	// DeleteAsset removes an asset record, or ErrNotFound.
	DeleteAsset(id string) error

	// CreateDirectory persists a new directory and assigns its ID.
	CreateDirectory(directory *Directory) error

	// Directory loads a directory by ID, or ErrNotFound.
	Directory(id string) (*Directory, error)

	// PutDirectory persists changes to an existing directory.
	PutDirectory(directory *Directory) error

	// DeleteDirectory removes a directory record, or ErrNotFound.
	// Member assets are not touched.
	DeleteDirectory(id string) error

	// ListAssets runs a registered named query and returns all
	// matching assets.
	ListAssets(query string) ([]*Asset, error)
}
