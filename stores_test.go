package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Test doubles for the collaborator contracts. The real
// implementations (blobfs, recordstore) are exercised by the
// integration tests; these fakes exist to inject failures and count
// calls deterministically.

type memBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	nextID  int
	puts    int
	gets    int
	deletes int

	failPut    error
	failDelete error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.puts++
	if s.failPut != nil {
		return "", s.failPut
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.nextID++
	id := fmt.Sprintf("blob-%d", s.nextID)
	s.blobs[id] = data
	return id, nil
}

func (s *memBlobStore) Get(ctx context.Context, identifier string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets++
	data, ok := s.blobs[identifier]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", identifier)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes++
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.blobs, identifier)
	return nil
}

type memRecordStore struct {
	mu          sync.Mutex
	assets      map[string]*Asset
	directories map[string]*Directory
	queries     map[string]func(*Asset, time.Time) bool
	now         time.Time
	nextID      int

	failCreateAsset error
}

func newMemRecordStore() *memRecordStore {
	s := &memRecordStore{
		assets:      make(map[string]*Asset),
		directories: make(map[string]*Directory),
		now:         time.Now(),
	}
	s.queries = map[string]func(*Asset, time.Time) bool{
		QueryExpiring:   func(a *Asset, now time.Time) bool { return a.Expiring(now) },
		QueryUnexpiring: func(a *Asset, now time.Time) bool { return a.Unexpiring(now) },
	}
	return s
}

func (s *memRecordStore) HasQuery(name string) bool {
	_, ok := s.queries[name]
	return ok
}

func (s *memRecordStore) View(ctx context.Context, fn func(tx RecordTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "view", Err: err}
	}
	return fn(&memTx{store: s})
}

func (s *memRecordStore) Update(ctx context.Context, fn func(tx RecordTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &PersistenceError{Op: "update", Err: err}
	}

	// Snapshot for rollback on error.
	assets := make(map[string]*Asset, len(s.assets))
	for k, v := range s.assets {
		assets[k] = v
	}
	directories := make(map[string]*Directory, len(s.directories))
	for k, v := range s.directories {
		directories[k] = v
	}

	if err := fn(&memTx{store: s}); err != nil {
		s.assets = assets
		s.directories = directories
		return err
	}
	return nil
}

type memTx struct {
	store *memRecordStore
}

func (tx *memTx) CreateAsset(asset *Asset) error {
	s := tx.store
	if s.failCreateAsset != nil {
		return s.failCreateAsset
	}
	s.nextID++
	asset.ID = fmt.Sprintf("asset-%d", s.nextID)
	asset.CreatedAt = s.now
	asset.ModifiedAt = s.now
	copied := *asset
	s.assets[asset.ID] = &copied
	return nil
}

func (tx *memTx) Asset(id string) (*Asset, error) {
	stored, ok := tx.store.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	copied := *stored
	return &copied, nil
}

func (tx *memTx) PutAsset(asset *Asset) error {
	if _, ok := tx.store.assets[asset.ID]; !ok {
		return fmt.Errorf("asset %q: %w", asset.ID, ErrNotFound)
	}
	asset.ModifiedAt = tx.store.now
	copied := *asset
	tx.store.assets[asset.ID] = &copied
	return nil
}

func (tx *memTx) DeleteAsset(id string) error {
	if _, ok := tx.store.assets[id]; !ok {
		return fmt.Errorf("asset %q: %w", id, ErrNotFound)
	}
	delete(tx.store.assets, id)
	return nil
}

func (tx *memTx) CreateDirectory(directory *Directory) error {
	s := tx.store
	s.nextID++
	directory.ID = fmt.Sprintf("directory-%d", s.nextID)
	directory.CreatedAt = s.now
	directory.ModifiedAt = s.now
	copied := *directory
	s.directories[directory.ID] = &copied
	return nil
}

func (tx *memTx) Directory(id string) (*Directory, error) {
	stored, ok := tx.store.directories[id]
	if !ok {
		return nil, fmt.Errorf("directory %q: %w", id, ErrNotFound)
	}
	copied := *stored
	copied.AssetIDs = append([]string(nil), stored.AssetIDs...)
	return &copied, nil
}

func (tx *memTx) PutDirectory(directory *Directory) error {
	if _, ok := tx.store.directories[directory.ID]; !ok {
		return fmt.Errorf("directory %q: %w", directory.ID, ErrNotFound)
	}
	directory.ModifiedAt = tx.store.now
	copied := *directory
	copied.AssetIDs = append([]string(nil), directory.AssetIDs...)
	tx.store.directories[directory.ID] = &copied
	return nil
}

func (tx *memTx) DeleteDirectory(id string) error {
	if _, ok := tx.store.directories[id]; !ok {
		return fmt.Errorf("directory %q: %w", id, ErrNotFound)
	}
	delete(tx.store.directories, id)
	return nil
}

func (tx *memTx) ListAssets(query string) ([]*Asset, error) {
	predicate, ok := tx.store.queries[query]
	if !ok {
		return nil, fmt.Errorf("named query %q is not registered", query)
	}

	var assets []*Asset
	for _, stored := range tx.store.assets {
		if predicate(stored, tx.store.now) {
			copied := *stored
			assets = append(assets, &copied)
		}
	}
	return assets, nil
}
