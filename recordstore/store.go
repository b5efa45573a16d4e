// Package recordstore implements mediastore.RecordStore on BadgerDB.
//
// Records are stored as CBOR under "asset/<id>" and "directory/<id>"
// keys. Badger transactions give the atomic commit-or-rollback
// boundary the domain services rely on; concurrent read-modify-write
// transactions on the same keys fail with a conflict and surface as
// mediastore.PersistenceError.
//
// The named-query catalog maps query names to predicates evaluated at
// the store clock's current time. The two standard lookups the sweeper
// needs are registered on Open.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"github.com/alexjoedt/mediastore"
)

const (
	assetPrefix     = "asset/"
	directoryPrefix = "directory/"
)

// ErrBlankStoreIdentifier is returned when an asset is persisted
// without a store identifier. An asset record must never exist with
// its binary data unreachable.
var ErrBlankStoreIdentifier = errors.New("asset store identifier must not be blank")

// Query is a named-lookup predicate, evaluated per asset at the
// store's current time.
type Query func(asset *mediastore.Asset, now time.Time) bool

// Store implements mediastore.RecordStore.
type Store struct {
	db      *badger.DB
	queries map[string]Query
	clock   mediastore.Clock
	log     zerolog.Logger
}

// Options configures a Store.
type Options struct {
	InMemory bool
	Clock    mediastore.Clock
	Logger   zerolog.Logger
	Queries  map[string]Query
}

// OptionFunc is a functional option for configuring a Store.
type OptionFunc func(opts *Options)

// WithInMemory keeps all data in memory instead of on disk. The path
// passed to Open is ignored. Intended for tests.
func WithInMemory() OptionFunc {
	return func(opts *Options) {
		opts.InMemory = true
	}
}

// WithClock sets the clock used to evaluate named-query predicates.
// Default is mediastore.SystemClock.
func WithClock(clock mediastore.Clock) OptionFunc {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// WithLogger sets the logger the store (and the underlying BadgerDB)
// logs through.
func WithLogger(log zerolog.Logger) OptionFunc {
	return func(opts *Options) {
		opts.Logger = log
	}
}

// WithQuery registers an additional named query.
func WithQuery(name string, query Query) OptionFunc {
	return func(opts *Options) {
		if opts.Queries == nil {
			opts.Queries = make(map[string]Query)
		}
		opts.Queries[name] = query
	}
}

// Open opens (and creates if necessary) a record store at the given
// path. The standard expiration queries are always registered.
func Open(path string, opts ...OptionFunc) (*Store, error) {
	options := &Options{
		Clock:  mediastore.SystemClock,
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	badgerOpts := badger.DefaultOptions(path)
	if options.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(badgerLogger{log: options.Logger})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}

	queries := map[string]Query{
		mediastore.QueryExpiring: func(asset *mediastore.Asset, now time.Time) bool {
			return asset.Expiring(now)
		},
		mediastore.QueryUnexpiring: func(asset *mediastore.Asset, now time.Time) bool {
			return asset.Unexpiring(now)
		},
	}
	for name, query := range options.Queries {
		queries[name] = query
	}

	return &Store{
		db:      db,
		queries: queries,
		clock:   options.Clock,
		log:     options.Logger,
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasQuery reports whether a named query is registered.
func (s *Store) HasQuery(name string) bool {
	_, ok := s.queries[name]
	return ok
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx mediastore.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return &mediastore.PersistenceError{Op: "view", Err: err}
	}
	err := s.db.View(func(txn *badger.Txn) error {
		return fn(&recordTx{ctx: ctx, txn: txn, store: s})
	})
	return s.wrapTxError("view", err)
}

// Update runs fn in a read-write transaction and commits it if fn
// returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx mediastore.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return &mediastore.PersistenceError{Op: "update", Err: err}
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&recordTx{ctx: ctx, txn: txn, store: s})
	})
	return s.wrapTxError("update", err)
}

// wrapTxError converts badger-level and context failures into
// PersistenceError. Domain errors returned by the callback pass through
// untouched.
func (s *Store) wrapTxError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict),
		errors.Is(err, badger.ErrTxnTooBig),
		errors.Is(err, badger.ErrDBClosed),
		errors.Is(err, badger.ErrBlockedWrites),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return &mediastore.PersistenceError{Op: op, Err: err}
	default:
		return err
	}
}

// badgerLogger routes BadgerDB's internal logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}
