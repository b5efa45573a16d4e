package recordstore

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/alexjoedt/mediastore"
)

// recordTx implements mediastore.RecordTx on one badger transaction.
type recordTx struct {
	ctx   context.Context
	txn   *badger.Txn
	store *Store
}

func assetKey(id string) []byte {
	return []byte(assetPrefix + id)
}

func directoryKey(id string) []byte {
	return []byte(directoryPrefix + id)
}

func (tx *recordTx) CreateAsset(asset *mediastore.Asset) error {
	if asset.StoreIdentifier == "" {
		return ErrBlankStoreIdentifier
	}

	now := tx.store.clock.Now()
	asset.ID = uuid.NewString()
	asset.CreatedAt = now
	asset.ModifiedAt = now

	return tx.setAsset(asset)
}

func (tx *recordTx) Asset(id string) (*mediastore.Asset, error) {
	item, err := tx.txn.Get(assetKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("asset %q: %w", id, mediastore.ErrNotFound)
	}
	if err != nil {
		return nil, &mediastore.PersistenceError{Op: "get asset", Err: err}
	}

	var asset mediastore.Asset
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &asset)
	})
	if err != nil {
		return nil, &mediastore.PersistenceError{Op: "decode asset", Err: err}
	}

	return &asset, nil
}

func (tx *recordTx) PutAsset(asset *mediastore.Asset) error {
	if asset.StoreIdentifier == "" {
		return ErrBlankStoreIdentifier
	}

	if _, err := tx.txn.Get(assetKey(asset.ID)); errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("asset %q: %w", asset.ID, mediastore.ErrNotFound)
	} else if err != nil {
		return &mediastore.PersistenceError{Op: "get asset", Err: err}
	}

	asset.ModifiedAt = tx.store.clock.Now()

	return tx.setAsset(asset)
}

func (tx *recordTx) DeleteAsset(id string) error {
	if _, err := tx.txn.Get(assetKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("asset %q: %w", id, mediastore.ErrNotFound)
	} else if err != nil {
		return &mediastore.PersistenceError{Op: "get asset", Err: err}
	}

	if err := tx.txn.Delete(assetKey(id)); err != nil {
		return &mediastore.PersistenceError{Op: "delete asset", Err: err}
	}
	return nil
}

func (tx *recordTx) setAsset(asset *mediastore.Asset) error {
	data, err := marshal(asset)
	if err != nil {
		return &mediastore.PersistenceError{Op: "encode asset", Err: err}
	}
	if err := tx.txn.Set(assetKey(asset.ID), data); err != nil {
		return &mediastore.PersistenceError{Op: "set asset", Err: err}
	}
	return nil
}

func (tx *recordTx) CreateDirectory(directory *mediastore.Directory) error {
	now := tx.store.clock.Now()
	directory.ID = uuid.NewString()
	directory.CreatedAt = now
	directory.ModifiedAt = now

	return tx.setDirectory(directory)
}

func (tx *recordTx) Directory(id string) (*mediastore.Directory, error) {
	item, err := tx.txn.Get(directoryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("directory %q: %w", id, mediastore.ErrNotFound)
	}
	if err != nil {
		return nil, &mediastore.PersistenceError{Op: "get directory", Err: err}
	}

	var directory mediastore.Directory
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &directory)
	})
	if err != nil {
		return nil, &mediastore.PersistenceError{Op: "decode directory", Err: err}
	}

	return &directory, nil
}

func (tx *recordTx) PutDirectory(directory *mediastore.Directory) error {
	if _, err := tx.txn.Get(directoryKey(directory.ID)); errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("directory %q: %w", directory.ID, mediastore.ErrNotFound)
	} else if err != nil {
		return &mediastore.PersistenceError{Op: "get directory", Err: err}
	}

	directory.ModifiedAt = tx.store.clock.Now()

	return tx.setDirectory(directory)
}

func (tx *recordTx) DeleteDirectory(id string) error {
	if _, err := tx.txn.Get(directoryKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("directory %q: %w", id, mediastore.ErrNotFound)
	} else if err != nil {
		return &mediastore.PersistenceError{Op: "get directory", Err: err}
	}

	if err := tx.txn.Delete(directoryKey(id)); err != nil {
		return &mediastore.PersistenceError{Op: "delete directory", Err: err}
	}
	return nil
}

func (tx *recordTx) setDirectory(directory *mediastore.Directory) error {
	data, err := marshal(directory)
	if err != nil {
		return &mediastore.PersistenceError{Op: "encode directory", Err: err}
	}
	if err := tx.txn.Set(directoryKey(directory.ID), data); err != nil {
		return &mediastore.PersistenceError{Op: "set directory", Err: err}
	}
	return nil
}

func (tx *recordTx) ListAssets(query string) ([]*mediastore.Asset, error) {
	predicate, ok := tx.store.queries[query]
	if !ok {
		return nil, fmt.Errorf("named query %q is not registered", query)
	}

	now := tx.store.clock.Now()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(assetPrefix)

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var assets []*mediastore.Asset
	for it.Rewind(); it.Valid(); it.Next() {
		// The scan is unbounded, so honor cancellation between steps.
		if err := tx.ctx.Err(); err != nil {
			return nil, err
		}

		var asset mediastore.Asset
		err := it.Item().Value(func(val []byte) error {
			return unmarshal(val, &asset)
		})
		if err != nil {
			return nil, &mediastore.PersistenceError{Op: "decode asset", Err: err}
		}

		if predicate(&asset, now) {
			assets = append(assets, &asset)
		}
	}

	return assets, nil
}
