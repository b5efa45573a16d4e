package blobfs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBlobHash(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := store.NewBlob()
	if err != nil {
		t.Fatal(err)
	}
	defer blob.Discard()

	content := []byte("hash me")
	if _, err := blob.Write(content); err != nil {
		t.Fatal(err)
	}

	want := sha256.Sum256(content)
	if got := blob.Hash(); got != hex.EncodeToString(want[:]) {
		t.Errorf("expected %x, got %s", want, got)
	}
}

func TestBlobDiscardRemovesTempFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := store.NewBlob()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := blob.Write([]byte("never committed")); err != nil {
		t.Fatal(err)
	}

	tmpPath := blob.tmpPath
	if err := blob.Discard(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(tmpPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file %s still exists after discard", tmpPath)
	}

	// Discard is idempotent
	if err := blob.Discard(); err != nil {
		t.Errorf("second discard failed: %v", err)
	}
}

func TestBlobWriteAfterClose(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := store.NewBlob()
	if err != nil {
		t.Fatal(err)
	}
	blob.Discard()

	if _, err := blob.Write([]byte("too late")); !errors.Is(err, ErrBlobClosed) {
		t.Errorf("expected ErrBlobClosed, got %v", err)
	}
}

func TestBlobCommitAfterClose(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := store.NewBlob()
	if err != nil {
		t.Fatal(err)
	}
	blob.Discard()

	if err := blob.Commit(); !errors.Is(err, ErrBlobClosed) {
		t.Errorf("expected ErrBlobClosed, got %v", err)
	}
}

func TestBlobCommitWritesMetaSidecar(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := store.NewBlob()
	if err != nil {
		t.Fatal(err)
	}
	defer blob.Discard()

	if _, err := blob.Write([]byte("sidecar test")); err != nil {
		t.Fatal(err)
	}
	if err := blob.Commit(); err != nil {
		t.Fatal(err)
	}

	storagePath := store.pathFromIdentifier(blob.Identifier())
	if _, err := os.Stat(filepath.Join(storagePath, metaFileName)); err != nil {
		t.Errorf("meta sidecar missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(storagePath, blobFileName)); err != nil {
		t.Errorf("data file missing: %v", err)
	}

	if blob.Meta() == nil {
		t.Error("expected cached meta after commit")
	}
}

func TestFailedCommitLeavesNoSidecar(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	blob, err := store.NewBlob()
	if err != nil {
		t.Fatal(err)
	}
	defer blob.Discard()

	if _, err := blob.Write([]byte("doomed payload")); err != nil {
		t.Fatal(err)
	}

	// Yank the temp file away so the final rename has to fail.
	if err := os.Remove(blob.tmpPath); err != nil {
		t.Fatal(err)
	}

	if err := blob.Commit(); err == nil {
		t.Fatal("expected commit to fail")
	}

	// Stat and Get must agree that the identifier does not exist.
	if _, err := store.Stat(testContext(t), blob.Identifier()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(testContext(t), blob.Identifier()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}

	storagePath := store.pathFromIdentifier(blob.Identifier())
	if _, err := os.Stat(storagePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected storage path %s to be cleaned up, stat err: %v", storagePath, err)
	}
}
