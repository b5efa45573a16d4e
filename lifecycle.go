package mediastore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AssetService owns the asset lifecycle: creation and updates with
// blob-store consistency, stream access, deletion, and the expiration
// transitions.
type AssetService struct {
	records RecordStore
	blobs   BlobStore
	hub     *Hub
	log     zerolog.Logger
}

// NewAssetService creates an AssetService operating on the given
// stores.
func NewAssetService(records RecordStore, blobs BlobStore, hub *Hub, log zerolog.Logger) *AssetService {
	return &AssetService{
		records: records,
		blobs:   blobs,
		hub:     hub,
		log:     log,
	}
}

// Create persists a draft asset together with its binary payload.
//
// The binary stream is written to the BlobStore first; only then is
// the record created, in its own transaction. If persistence fails the
// just-written blob is deleted again so the stores stay consistent. A
// failing compensation delete is logged with the orphaned identifier
// and does not mask the persistence error: such blobs are left to
// out-of-band garbage collection.
//
// On success the returned asset carries its assigned ID and store
// identifier, and the record resolves to exactly the bytes supplied.
func (s *AssetService) Create(ctx context.Context, draft *Asset) (*Asset, error) {
	if draft == nil {
		return nil, fmt.Errorf("create: draft must not be nil")
	}
	if !draft.HasStream() {
		return nil, ErrMissingStream
	}

	s.hub.Publish(TopicAssetCreate, draft)

	identifier, err := s.blobs.Put(ctx, draft.Stream())
	if err != nil {
		return nil, &StorageError{Op: "put", Err: err}
	}

	draft.StoreIdentifier = identifier

	err = s.records.Update(ctx, func(tx RecordTx) error {
		return tx.CreateAsset(draft)
	})
	if err != nil {
		draft.StoreIdentifier = ""
		s.log.Warn().
			Str("store_identifier", identifier).
			Err(err).
			Msg("persisting asset failed, removing binary data from store")
		if delErr := s.blobs.Delete(ctx, identifier); delErr != nil {
			s.log.Warn().
				Str("store_identifier", identifier).
				Err(delErr).
				Msg("unable to delete orphaned binary data from store")
		}
		return nil, err
	}

	s.hub.Publish(TopicAssetCreated, draft)

	return draft, nil
}

// Update persists metadata changes to an existing asset. The store
// identifier, creation timestamp, and expired flag are carried over
// from the stored record: the binary payload is immutable post-create
// and the expired flag only moves through lifecycle transitions.
func (s *AssetService) Update(ctx context.Context, asset *Asset) (*Asset, error) {
	if asset == nil {
		return nil, fmt.Errorf("update: asset must not be nil")
	}

	s.hub.Publish(TopicAssetUpdate, asset)

	err := s.records.Update(ctx, func(tx RecordTx) error {
		current, err := tx.Asset(asset.ID)
		if err != nil {
			return err
		}
		asset.StoreIdentifier = current.StoreIdentifier
		asset.CreatedAt = current.CreatedAt
		asset.Expired = current.Expired
		return tx.PutAsset(asset)
	})
	if err != nil {
		return nil, err
	}

	s.hub.Publish(TopicAssetUpdated, asset)

	return asset, nil
}

// Get loads an asset by ID.
func (s *AssetService) Get(ctx context.Context, id string) (*Asset, error) {
	var asset *Asset
	err := s.records.View(ctx, func(tx RecordTx) error {
		var err error
		asset, err = tx.Asset(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// Delete removes the asset record. The binary payload is intentionally
// left in the BlobStore; orphaned payloads are reclaimed out-of-band.
func (s *AssetService) Delete(ctx context.Context, id string) error {
	return s.records.Update(ctx, func(tx RecordTx) error {
		return tx.DeleteAsset(id)
	})
}

// ReadStream attaches the asset's binary stream, fetching it from the
// BlobStore. Idempotent: an already-attached stream is kept and no
// second fetch is issued. The caller owns the attached stream.
func (s *AssetService) ReadStream(ctx context.Context, asset *Asset) error {
	if asset == nil {
		return fmt.Errorf("read stream: asset must not be nil")
	}
	if asset.HasStream() {
		return nil
	}

	rc, err := s.blobs.Get(ctx, asset.StoreIdentifier)
	if err != nil {
		return &StorageError{Op: "get", Identifier: asset.StoreIdentifier, Err: err}
	}

	asset.AttachStream(rc)
	return nil
}

// Expire marks an asset as expired, independent of its expiration
// date. This is the manual override; the sweeper performs the same
// transition automatically for assets in expiring state.
func (s *AssetService) Expire(ctx context.Context, id string) (*Asset, error) {
	return s.setExpired(ctx, id, true, TopicAssetExpired)
}

// Unexpire clears the expired flag of an asset.
func (s *AssetService) Unexpire(ctx context.Context, id string) (*Asset, error) {
	return s.setExpired(ctx, id, false, TopicAssetUnexpired)
}

func (s *AssetService) setExpired(ctx context.Context, id string, expired bool, topic string) (*Asset, error) {
	var (
		asset      *Asset
		transition bool
	)
	err := s.records.Update(ctx, func(tx RecordTx) error {
		var err error
		asset, err = tx.Asset(id)
		if err != nil {
			return err
		}
		transition = asset.Expired != expired
		if !transition {
			return nil
		}
		asset.Expired = expired
		return tx.PutAsset(asset)
	})
	if err != nil {
		return nil, err
	}

	if transition {
		s.hub.Publish(topic, asset)
	}

	return asset, nil
}
