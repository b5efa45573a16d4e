package blobfs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrBlobClosed = errors.New("blob is closed")
)

// Blob is a writable blob in the store. It implements io.Writer and
// io.Closer, allowing it to be used with io.Copy and other standard
// interfaces.
//
// Writes go to a temporary file; Commit atomically moves the blob into
// its final location under a freshly generated identifier. A blob that
// is never committed leaves nothing behind once discarded.
//
// The SHA-256 hash of the uncompressed content is computed incrementally
// during writes, and the first 512 bytes are buffered for content type
// detection.
//
// Example usage:
//
//	blob, err := store.NewBlob()
//	if err != nil {
//		return err
//	}
//	defer blob.Discard()
//
//	if _, err = io.Copy(blob, sourceReader); err != nil {
//		return err
//	}
//
//	if err := blob.Commit(); err != nil {
//		return err
//	}
//	identifier := blob.Identifier()
type Blob struct {
	store      *Store
	identifier string

	tmpFile *os.File
	tmpPath string

	// sink is where Write sends payload bytes: the temp file directly,
	// or a zstd encoder in front of it.
	sink io.Writer
	enc  *zstd.Encoder

	hasher hash.Hash
	size   int64

	// Buffers the first 512 bytes for http.DetectContentType rather
	// than keeping the entire content in memory.
	buffer     []byte
	bufferUsed int

	contentType string

	// Cached after commit to avoid re-reading the meta file.
	meta *Meta

	mu        sync.Mutex
	closed    bool
	committed bool
	err       error // Sticky error for failed blobs
}

// NewBlob creates a new writable blob backed by a temporary file. The
// blob must be explicitly committed with Commit to persist it, or
// discarded with Discard or Close to clean up the temporary file.
func (s *Store) NewBlob() (*Blob, error) {
	tmpFile, err := s.newTempFile()
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	blob := &Blob{
		store:      s,
		identifier: uuid.NewString(),
		tmpFile:    tmpFile,
		tmpPath:    tmpFile.Name(),
		sink:       tmpFile,
		hasher:     sha256.New(),
		buffer:     make([]byte, 512),
	}

	if s.opts.Compression {
		enc, err := zstd.NewWriter(tmpFile)
		if err != nil {
			tmpFile.Close()
			os.Remove(blob.tmpPath)
			return nil, fmt.Errorf("creating zstd writer: %w", err)
		}
		blob.enc = enc
		blob.sink = enc
	}

	return blob, nil
}

// Write implements io.Writer, writing data to the blob.
func (b *Blob) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBlobClosed
	}

	if b.err != nil {
		return 0, b.err
	}

	// Buffer first bytes for content type detection
	if b.bufferUsed < len(b.buffer) {
		toCopy := len(b.buffer) - b.bufferUsed
		if toCopy > len(p) {
			toCopy = len(p)
		}
		copy(b.buffer[b.bufferUsed:], p[:toCopy])
		b.bufferUsed += toCopy
	}

	written, err := b.sink.Write(p)
	if err != nil {
		b.err = err
		return written, err
	}

	if _, hashErr := b.hasher.Write(p[:written]); hashErr != nil {
		b.err = hashErr
		return written, hashErr
	}

	b.size += int64(written)
	return written, nil
}

// Identifier returns the identifier this blob is (or will be) stored
// under. The identifier is assigned at creation and never changes.
func (b *Blob) Identifier() string {
	return b.identifier
}

// Hash returns the SHA-256 hash of the uncompressed content written so
// far as a hex string.
func (b *Blob) Hash() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return hex.EncodeToString(b.hasher.Sum(nil))
}

// Commit finalizes the blob under its identifier. The temp file is
// atomically moved to the final storage location alongside a metadata
// sidecar. After a successful commit the blob is closed and cannot be
// reused.
func (b *Blob) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBlobClosed
	}

	if b.err != nil {
		return b.err
	}

	b.closed = true
	b.committed = true

	// Flush the compressor before the file is closed.
	if b.enc != nil {
		if err := b.enc.Close(); err != nil {
			b.err = err
			return b.err
		}
	}

	if b.tmpFile != nil {
		if err := b.tmpFile.Close(); err != nil {
			b.err = err
			return b.err
		}
	}

	// Clean up on error
	defer func() {
		if b.err != nil && b.tmpPath != "" {
			os.Remove(b.tmpPath)
		}
	}()

	b.contentType = http.DetectContentType(b.buffer[:b.bufferUsed])

	encoding := EncodingNone
	if b.enc != nil {
		encoding = EncodingZstd
	}

	storedSize := b.size
	if fi, err := os.Stat(b.tmpPath); err == nil {
		storedSize = fi.Size()
	}

	meta := &Meta{
		Identifier:  b.identifier,
		Size:        b.size,
		StoredSize:  storedSize,
		Sha256:      hex.EncodeToString(b.hasher.Sum(nil)),
		ContentType: b.contentType,
		Encoding:    encoding,
		CreatedAt:   time.Now(),
	}

	b.meta = meta

	storagePath := b.store.pathFromIdentifier(b.identifier)
	if err := os.MkdirAll(storagePath, b.store.opts.DirMode); err != nil {
		b.err = err
		return b.err
	}

	// A failed commit must not leave a sidecar behind: Stat and Get
	// have to agree on whether an identifier exists.
	defer func() {
		if b.err != nil {
			b.meta = nil
			os.RemoveAll(storagePath)
			b.store.cleanupEmptyDirs(storagePath)
		}
	}()

	// Write metadata before moving the blob so a visible blob always
	// has its sidecar.
	mf, err := os.Create(filepath.Join(storagePath, metaFileName))
	if err != nil {
		b.err = err
		return b.err
	}
	defer mf.Close() // Ensure file is closed even if encoding fails

	enc := json.NewEncoder(mf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		b.err = err
		return b.err
	}

	// Atomic rename to final location
	dataPath := filepath.Join(storagePath, blobFileName)
	if err := os.Rename(b.tmpPath, dataPath); err != nil {
		b.err = fmt.Errorf("committing blob: %w", err)
		return b.err
	}

	if err := os.Chmod(dataPath, b.store.opts.FileMode); err != nil {
		b.err = fmt.Errorf("setting blob mode: %w", err)
		return b.err
	}

	return nil
}

// Discard closes the blob and removes the temporary file without
// committing. Idempotent - safe to call multiple times.
func (b *Blob) Discard() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil // Already closed/discarded
	}

	b.closed = true

	if b.enc != nil {
		if err := b.enc.Close(); err != nil && b.err == nil {
			b.err = err
		}
	}

	if b.tmpFile != nil {
		if err := b.tmpFile.Close(); err != nil && b.err == nil {
			b.err = err
		}
	}

	if b.tmpPath != "" {
		os.Remove(b.tmpPath) // Ignore error - best effort cleanup
	}

	return b.err
}

// Close is an alias for Discard. It closes the blob and removes the
// temporary file without committing. To persist the blob, use Commit
// instead.
func (b *Blob) Close() error {
	return b.Discard()
}

// Size returns the number of uncompressed bytes written so far.
func (b *Blob) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Closed returns true if the blob has been closed or committed.
func (b *Blob) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Meta returns the metadata of the committed blob, or nil if the blob
// has not been successfully committed yet.
func (b *Blob) Meta() *Meta {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta
}
