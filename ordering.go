package mediastore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DirectoryService owns directory records and the ordered-membership
// operations on them. Every operation runs in one RecordStore
// transaction, so concurrent mutations of the same directory are
// serialized by the store's conflict detection.
type DirectoryService struct {
	records RecordStore
	hub     *Hub
	log     zerolog.Logger
}

// NewDirectoryService creates a DirectoryService operating on the
// given record store.
func NewDirectoryService(records RecordStore, hub *Hub, log zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		records: records,
		hub:     hub,
		log:     log,
	}
}

// Create persists a new, empty directory.
func (s *DirectoryService) Create(ctx context.Context, directory *Directory) (*Directory, error) {
	if directory == nil {
		return nil, fmt.Errorf("create: directory must not be nil")
	}

	err := s.records.Update(ctx, func(tx RecordTx) error {
		return tx.CreateDirectory(directory)
	})
	if err != nil {
		return nil, err
	}
	return directory, nil
}

// Get loads a directory by ID.
func (s *DirectoryService) Get(ctx context.Context, id string) (*Directory, error) {
	var directory *Directory
	err := s.records.View(ctx, func(tx RecordTx) error {
		var err error
		directory, err = tx.Directory(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return directory, nil
}

// Delete removes a directory record. Member assets are not deleted.
func (s *DirectoryService) Delete(ctx context.Context, id string) error {
	return s.records.Update(ctx, func(tx RecordTx) error {
		return tx.DeleteDirectory(id)
	})
}

// AddAsset inserts an asset into a directory at the given index and
// returns the resulting position. AppendIndex appends at the end. The
// asset must exist, and it must not already be a member.
func (s *DirectoryService) AddAsset(ctx context.Context, directoryID, assetID string, index int) (int, error) {
	var (
		directory *Directory
		position  int
	)
	err := s.records.Update(ctx, func(tx RecordTx) error {
		var err error
		directory, err = tx.Directory(directoryID)
		if err != nil {
			return err
		}
		if _, err := tx.Asset(assetID); err != nil {
			return fmt.Errorf("asset %q: %w", assetID, err)
		}

		s.hub.Publish(TopicDirectoryAddAsset, directory, assetID)

		position, err = directory.AddAsset(assetID, index)
		if err != nil {
			return err
		}
		return tx.PutDirectory(directory)
	})
	if err != nil {
		return -1, err
	}

	s.hub.Publish(TopicDirectoryAddedAsset, directory, assetID)

	s.log.Debug().
		Str("directory_id", directoryID).
		Str("asset_id", assetID).
		Int("index", position).
		Msg("added asset to directory")

	return position, nil
}

// RemoveAsset removes an asset from a directory. Removing an asset
// that is not a member fails with ErrNotMember.
func (s *DirectoryService) RemoveAsset(ctx context.Context, directoryID, assetID string) error {
	var directory *Directory
	err := s.records.Update(ctx, func(tx RecordTx) error {
		var err error
		directory, err = tx.Directory(directoryID)
		if err != nil {
			return err
		}

		s.hub.Publish(TopicDirectoryRemoveAsset, directory, assetID)

		if err := directory.RemoveAsset(assetID); err != nil {
			return err
		}
		return tx.PutDirectory(directory)
	})
	if err != nil {
		return err
	}

	s.hub.Publish(TopicDirectoryRemovedAsset, directory, assetID)

	return nil
}

// SetAssetIndex repositions an existing member to newIndex using a
// minimal rotation of the span between its current and new position.
// Repositioning to the current index is a no-op.
func (s *DirectoryService) SetAssetIndex(ctx context.Context, directoryID, assetID string, newIndex int) error {
	var (
		directory *Directory
		moved     bool
	)
	err := s.records.Update(ctx, func(tx RecordTx) error {
		var err error
		directory, err = tx.Directory(directoryID)
		if err != nil {
			return err
		}

		s.hub.Publish(TopicDirectoryPreSetAsset, directory, assetID)

		current := directory.IndexOf(assetID)
		if current == newIndex && current >= 0 {
			return nil
		}

		if err := directory.SetAssetIndex(assetID, newIndex); err != nil {
			return err
		}
		moved = true
		return tx.PutDirectory(directory)
	})
	if err != nil {
		return err
	}

	if moved {
		s.hub.Publish(TopicDirectoryPostSetAsset, directory, assetID)
	}

	return nil
}
