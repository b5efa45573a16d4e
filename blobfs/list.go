package blobfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// Iterator streams the metadata of stored blobs. It must be closed
// when done to prevent resource leaks:
//
//	iter := store.List(ctx)
//	defer iter.Close()
//	for iter.Next() {
//		meta := iter.Meta()
//		// process meta...
//	}
//	if err := iter.Err(); err != nil {
//		// handle error
//	}
type Iterator struct {
	ctx    context.Context
	cancel context.CancelFunc

	metaChan chan *Meta
	errChan  chan error

	current *Meta
	err     error
	closed  bool
}

// List returns an iterator over every blob in the store, in no
// particular order. Results stream from a filesystem walk, so the
// store is never loaded into memory at once; blobs put or deleted
// while iterating may or may not be observed.
func (s *Store) List(ctx context.Context) *Iterator {
	ctx, cancel := context.WithCancel(ctx)

	it := &Iterator{
		ctx:      ctx,
		cancel:   cancel,
		metaChan: make(chan *Meta, 10), // Buffer for smoother iteration
		errChan:  make(chan error, 1),
	}

	go s.walkBlobs(ctx, it.metaChan, it.errChan)

	return it
}

// walkBlobs walks the shard directories and sends every readable
// metadata sidecar to the channel.
func (s *Store) walkBlobs(ctx context.Context, metaChan chan<- *Meta, errChan chan<- error) {
	defer close(metaChan)
	defer close(errChan)

	blobsDir := filepath.Join(s.root, blobDirname)

	err := filepath.WalkDir(blobsDir, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		if d.IsDir() || d.Name() != metaFileName {
			return nil
		}

		meta, err := s.readMeta(path)
		if err != nil {
			// A corrupted sidecar must not fail the entire iteration.
			return nil
		}

		select {
		case metaChan <- meta:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		select {
		case errChan <- err:
		case <-ctx.Done():
		}
	}
}

// Next advances the iterator to the next blob. It returns false once
// iteration is complete or failed; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}

	// Checked before draining the channel so cancellation always stops
	// the iteration, even when results are still buffered.
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	select {
	case meta, ok := <-it.metaChan:
		if !ok {
			return false
		}
		it.current = meta
		return true

	case err := <-it.errChan:
		it.err = err
		return false

	case <-it.ctx.Done():
		it.err = it.ctx.Err()
		return false
	}
}

// Meta returns the current blob's metadata. Only valid after Next
// returned true.
func (it *Iterator) Meta() *Meta {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close stops the iteration and releases its resources. Safe to call
// multiple times.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}

	it.closed = true
	if it.cancel != nil {
		it.cancel()
	}
	return nil
}
