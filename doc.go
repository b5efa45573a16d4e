// Package mediastore manages binary-backed assets and their membership
// in ordered directories.
//
// An asset couples a metadata record with a binary payload. The record
// lives in a RecordStore, the payload in a BlobStore; AssetService owns
// the protocol that keeps the two consistent across partial failures.
// Assets carry a four-state expiration lifecycle (expirable, expiring,
// expired, unexpiring) driven by a periodic Sweeper. Directories hold
// assets in a strictly ordered sequence with duplicate-free membership
// and minimal-rotation repositioning.
//
// Services are constructed once with their store dependencies and a
// Hub for lifecycle event hooks:
//
//	blobs, err := blobfs.NewStore("/data/blobs")
//	records, err := recordstore.Open("/data/records")
//	hub := mediastore.NewHub(logger)
//
//	assets := mediastore.NewAssetService(records, blobs, hub, logger)
//	directories := mediastore.NewDirectoryService(records, hub, logger)
//	sweeper, err := mediastore.NewSweeper(records, hub, logger)
package mediastore
