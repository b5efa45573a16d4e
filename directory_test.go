package mediastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory(assetIDs ...string) *Directory {
	d := &Directory{}
	d.AssetIDs = append(d.AssetIDs, assetIDs...)
	return d
}

func TestDirectoryAddAsset(t *testing.T) {
	d := testDirectory()

	pos, err := d.AddAsset("a", AppendIndex)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = d.AddAsset("b", AppendIndex)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = d.AddAsset("c", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, []string{"a", "c", "b"}, d.AssetIDs)
}

func TestDirectoryAddAssetRejectsDuplicate(t *testing.T) {
	d := testDirectory("a", "b")

	_, err := d.AddAsset("a", AppendIndex)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.Equal(t, []string{"a", "b"}, d.AssetIDs, "membership unchanged")
}

func TestDirectoryAddAssetIndexBounds(t *testing.T) {
	d := testDirectory("a", "b")

	_, err := d.AddAsset("c", 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = d.AddAsset("c", -2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	// Inserting at len appends.
	pos, err := d.AddAsset("c", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestDirectoryRemoveAsset(t *testing.T) {
	d := testDirectory("a", "b", "c")

	require.NoError(t, d.RemoveAsset("b"))
	assert.Equal(t, []string{"a", "c"}, d.AssetIDs)

	assert.ErrorIs(t, d.RemoveAsset("b"), ErrNotMember)
}

func TestSetAssetIndexLeftRotation(t *testing.T) {
	d := testDirectory("a", "b", "c", "d", "e")

	require.NoError(t, d.SetAssetIndex("b", 3))
	assert.Equal(t, []string{"a", "c", "d", "b", "e"}, d.AssetIDs)
}

func TestSetAssetIndexRightRotationIsInverse(t *testing.T) {
	d := testDirectory("a", "c", "d", "b", "e")

	require.NoError(t, d.SetAssetIndex("b", 1))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, d.AssetIDs)
}

func TestSetAssetIndexNoOp(t *testing.T) {
	d := testDirectory("a", "b", "c")

	require.NoError(t, d.SetAssetIndex("b", 1))
	assert.Equal(t, []string{"a", "b", "c"}, d.AssetIDs)
}

func TestSetAssetIndexErrors(t *testing.T) {
	d := testDirectory("a", "b", "c")

	assert.ErrorIs(t, d.SetAssetIndex("x", 0), ErrNotMember)
	assert.ErrorIs(t, d.SetAssetIndex("a", 3), ErrIndexOutOfRange)
	assert.ErrorIs(t, d.SetAssetIndex("a", -1), ErrIndexOutOfRange)
}

// TestSetAssetIndexRotationProperty verifies, for every (current, new)
// pair, that exactly the span between the two positions shifts by one
// slot, everything else stays put, and the moved asset lands at the
// target.
func TestSetAssetIndexRotationProperty(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}

	for current := 0; current < len(ids); current++ {
		for target := 0; target < len(ids); target++ {
			d := testDirectory(ids...)
			moved := ids[current]

			require.NoError(t, d.SetAssetIndex(moved, target))

			assert.Equal(t, target, d.IndexOf(moved), "moved asset lands at target")
			assert.Len(t, d.AssetIDs, len(ids))

			lo, hi := current, target
			if lo > hi {
				lo, hi = hi, lo
			}
			for i, id := range ids {
				if i < lo || i > hi {
					assert.Equal(t, id, d.AssetIDs[i], "element outside the span moved (current=%d target=%d pos=%d)", current, target, i)
				}
			}

			// Relative order of everything except the moved asset is
			// preserved.
			var wantRest, gotRest []string
			for _, id := range ids {
				if id != moved {
					wantRest = append(wantRest, id)
				}
			}
			for _, id := range d.AssetIDs {
				if id != moved {
					gotRest = append(gotRest, id)
				}
			}
			assert.Equal(t, wantRest, gotRest, "relative order disturbed (current=%d target=%d)", current, target)
		}
	}
}

func TestDirectoryContains(t *testing.T) {
	d := testDirectory("a", "b")

	assert.True(t, d.Contains("a"))
	assert.False(t, d.Contains("x"))
	assert.Equal(t, 1, d.IndexOf("b"))
	assert.Equal(t, -1, d.IndexOf("x"))
}
