package mediastore

import (
	"fmt"
	"time"
)

// AppendIndex is the sentinel index that appends an asset at the end
// of a directory.
const AppendIndex = -1

// Directory is an ordered collection of asset references. An asset may
// appear in any number of directories but at most once per directory.
// Order is significant and persisted; indices are contiguous 0..n-1.
type Directory struct {
	ID   string `cbor:"id" json:"id"`
	Name string `cbor:"name,omitempty" json:"name,omitempty"`

	// AssetIDs is the ordered membership sequence.
	AssetIDs []string `cbor:"assetIds,omitempty" json:"assetIds,omitempty"`

	CreatedAt  time.Time `cbor:"createdAt" json:"createdAt"`
	ModifiedAt time.Time `cbor:"modifiedAt" json:"modifiedAt"`
}

// SetName sets the directory name. Blank input collapses to absent.
func (d *Directory) SetName(name string) {
	d.Name = normalize(name)
}

// Contains reports whether the asset is a member of the directory.
func (d *Directory) Contains(assetID string) bool {
	return d.IndexOf(assetID) >= 0
}

// IndexOf returns the position of the asset in the directory, or -1 if
// it is not a member.
func (d *Directory) IndexOf(assetID string) int {
	for i, id := range d.AssetIDs {
		if id == assetID {
			return i
		}
	}
	return -1
}

// AddAsset inserts the asset at the given index and returns the
// resulting position. AppendIndex appends at the end. Adding an asset
// that is already a member fails with ErrAlreadyMember.
func (d *Directory) AddAsset(assetID string, index int) (int, error) {
	if d.Contains(assetID) {
		return -1, fmt.Errorf("%q: %w", assetID, ErrAlreadyMember)
	}

	if index == AppendIndex {
		d.AssetIDs = append(d.AssetIDs, assetID)
		return len(d.AssetIDs) - 1, nil
	}

	if index < 0 || index > len(d.AssetIDs) {
		return -1, fmt.Errorf("insert at %d with %d assets: %w", index, len(d.AssetIDs), ErrIndexOutOfRange)
	}

	d.AssetIDs = append(d.AssetIDs, "")
	copy(d.AssetIDs[index+1:], d.AssetIDs[index:])
	d.AssetIDs[index] = assetID
	return index, nil
}

// RemoveAsset removes the asset from the directory. Removing an absent
// asset fails with ErrNotMember rather than silently succeeding.
func (d *Directory) RemoveAsset(assetID string) error {
	index := d.IndexOf(assetID)
	if index < 0 {
		return fmt.Errorf("%q: %w", assetID, ErrNotMember)
	}

	d.AssetIDs = append(d.AssetIDs[:index], d.AssetIDs[index+1:]...)
	return nil
}

// SetAssetIndex moves an existing member to newIndex by rotating the
// span between its current position and newIndex by one slot. Every
// element outside the span keeps its position, elements inside shift
// exactly one place, and the moved asset lands at newIndex.
//
// The asset must be a member (ErrNotMember otherwise) and newIndex
// must lie in [0, len-1] (ErrIndexOutOfRange otherwise).
func (d *Directory) SetAssetIndex(assetID string, newIndex int) error {
	current := d.IndexOf(assetID)
	if current < 0 {
		return fmt.Errorf("%q: %w", assetID, ErrNotMember)
	}

	if newIndex < 0 || newIndex >= len(d.AssetIDs) {
		return fmt.Errorf("move to %d with %d assets: %w", newIndex, len(d.AssetIDs), ErrIndexOutOfRange)
	}

	switch {
	case current == newIndex:
		// Already in place.
	case current < newIndex:
		// Rotate the span [current, newIndex] left by one.
		copy(d.AssetIDs[current:newIndex], d.AssetIDs[current+1:newIndex+1])
		d.AssetIDs[newIndex] = assetID
	default:
		// Rotate the span [newIndex, current] right by one.
		copy(d.AssetIDs[newIndex+1:current+1], d.AssetIDs[newIndex:current])
		d.AssetIDs[newIndex] = assetID
	}

	return nil
}
