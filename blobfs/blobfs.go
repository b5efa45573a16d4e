// Package blobfs provides a filesystem-backed blob store addressed by
// opaque identifiers.
//
// # Design
//
// Every Put generates a fresh identifier; identifiers are never reused,
// a deleted identifier stays dead. Blobs live in a two-level directory
// structure derived from the identifier, which prevents filesystem
// limitations with too many files in a single directory while keeping
// lookups a single path computation.
//
// Metadata is stored in a separate JSON file next to the blob data to
// allow stat-style queries without reading the blob content.
//
// # Usage
//
//	store, err := blobfs.NewStore("/data/blobs")
//	if err != nil {
//		return err
//	}
//
//	id, err := store.Put(ctx, reader)
//
//	rc, err := store.Get(ctx, id)
//	defer rc.Close()
//
// # Concurrency
//
// All operations are safe for concurrent use. Multiple goroutines may
// call methods on the same Store instance simultaneously.
//
// # Error Handling
//
// All methods return errors that can be unwrapped using errors.Is and
// errors.As, including ErrNotFound for unknown identifiers. Operations
// stop early with the context's error once it is cancelled or past its
// deadline.
package blobfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const (
	tempDirName  = ".tmp"
	blobDirname  = "blobs"
	metaFileName = "meta.json"
	blobFileName = "data"
)

var (
	ErrNotFound          = errors.New("blob with identifier not found")
	ErrEmptyIdentifier   = errors.New("identifier cannot be empty")
	ErrInvalidIdentifier = errors.New("malformed identifier")
)

// Store is a blob store rooted at a single directory.
type Store struct {
	root string
	opts *Options
}

// NewStore creates a Store rooted at the given directory. The directory
// structure is created if it does not exist.
func NewStore(root string, opts ...OptionFunc) (*Store, error) {
	// Copy default options to avoid mutating the package-level default.
	options := &Options{
		FileMode:    defaultOpts.FileMode,
		DirMode:     defaultOpts.DirMode,
		Compression: defaultOpts.Compression,
	}

	for _, opt := range opts {
		opt(options)
	}

	root = filepath.Clean(root)
	err := os.MkdirAll(filepath.Join(root, blobDirname), options.DirMode)
	if err != nil {
		return nil, fmt.Errorf("creating blobs directory: %w", err)
	}

	err = os.MkdirAll(filepath.Join(root, tempDirName), options.DirMode)
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	return &Store{
		root: root,
		opts: options,
	}, nil
}

// Put stores the contents of r under a newly generated identifier and
// returns it. The blob is written to a temporary file first and renamed
// into place, so it either fully exists or not at all.
func (s *Store) Put(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	blob, err := s.NewBlob()
	if err != nil {
		return "", err
	}
	defer blob.Discard()

	if _, err := io.Copy(blob, contextReader{ctx: ctx, r: r}); err != nil {
		return "", err
	}

	if err := blob.Commit(); err != nil {
		return "", err
	}

	return blob.Identifier(), nil
}

// Get opens the blob stored under the given identifier. The returned
// reader transparently decompresses blobs that were stored compressed.
// The caller must close it.
func (s *Store) Get(ctx context.Context, identifier string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}

	storagePath := s.pathFromIdentifier(identifier)

	meta, err := s.readMeta(filepath.Join(storagePath, metaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", identifier, ErrNotFound)
		}
		return nil, fmt.Errorf("reading metadata for %q: %w", identifier, err)
	}

	f, err := os.Open(filepath.Join(storagePath, blobFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", identifier, ErrNotFound)
		}
		return nil, fmt.Errorf("get blob %q: %w", identifier, err)
	}

	if meta.Encoding != EncodingZstd {
		return f, nil
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening zstd reader for %q: %w", identifier, err)
	}

	return &decompressingReader{zr: zr, underlying: f}, nil
}

// Stat returns the metadata of a stored blob without reading its content.
func (s *Store) Stat(ctx context.Context, identifier string) (*Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateIdentifier(identifier); err != nil {
		return nil, err
	}

	storagePath := s.pathFromIdentifier(identifier)

	meta, err := s.readMeta(filepath.Join(storagePath, metaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", identifier, ErrNotFound)
		}
		return nil, fmt.Errorf("reading metadata for %q: %w", identifier, err)
	}

	return meta, nil
}

// Exists reports whether a blob is stored under the given identifier.
func (s *Store) Exists(ctx context.Context, identifier string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateIdentifier(identifier); err != nil {
		return false, err
	}

	storagePath := s.pathFromIdentifier(identifier)

	_, err := os.Stat(filepath.Join(storagePath, blobFileName))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Delete removes the blob stored under the given identifier. Deleting
// an unknown identifier is a no-op.
func (s *Store) Delete(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateIdentifier(identifier); err != nil {
		return err
	}

	storagePath := s.pathFromIdentifier(identifier)

	// Idempotent: RemoveAll doesn't fail if path doesn't exist
	if err := os.RemoveAll(storagePath); err != nil {
		return fmt.Errorf("delete blob %q: %w", identifier, err)
	}

	s.cleanupEmptyDirs(storagePath)

	return nil
}

// pathFromIdentifier generates the storage path for an identifier.
// The two-level layout (256^2 = 65,536 buckets) prevents filesystem
// performance degradation with large numbers of blobs.
func (s *Store) pathFromIdentifier(identifier string) string {
	flat := strings.ReplaceAll(identifier, "-", "")
	return filepath.Join(s.root, blobDirname, flat[:2], flat[2:4], flat)
}

func (s *Store) newTempFile() (*os.File, error) {
	tempPath := filepath.Join(s.root, tempDirName, uuid.NewString())
	return os.Create(tempPath)
}

func (s *Store) readMeta(path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var meta Meta
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	return &meta, nil
}

// validateIdentifier rejects anything that is not a UUID produced by
// Put. Identifiers come from stored records, so a malformed one means
// corruption or a caller bug, never a path to hand to the filesystem.
func validateIdentifier(identifier string) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}

	if _, err := uuid.Parse(identifier); err != nil {
		return fmt.Errorf("%q: %w", identifier, ErrInvalidIdentifier)
	}

	return nil
}

// cleanupEmptyDirs removes empty shard directories after blob deletion,
// walking up from the given path until it reaches the blobs directory
// or a non-empty directory.
func (s *Store) cleanupEmptyDirs(path string) {
	blobsDir := filepath.Join(s.root, blobDirname)
	parent := filepath.Dir(path)

	for parent != blobsDir && parent != s.root && parent != "." && parent != "/" {
		entries, err := os.ReadDir(parent)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := os.Remove(parent); err != nil {
			break
		}

		parent = filepath.Dir(parent)
	}
}

// contextReader checks the context between reads so a long Put copy
// stops once the context is cancelled or its deadline passes.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// decompressingReader couples a zstd decoder with the file it reads
// from so both are released on Close.
type decompressingReader struct {
	zr         *zstd.Decoder
	underlying io.Closer
}

func (d *decompressingReader) Read(p []byte) (int, error) {
	return d.zr.Read(p)
}

func (d *decompressingReader) Close() error {
	d.zr.Close()
	return d.underlying.Close()
}
