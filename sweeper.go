package mediastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is the default period between sweep passes when
// the Sweeper runs on its own timer.
const DefaultSweepInterval = time.Minute

// Sweeper drives the automatic expiration transitions. Each sweep
// queries for assets in expiring state and marks them expired, then
// for assets in unexpiring state and clears their expired flag,
// emitting an event per transitioned asset.
//
// Sweeps are idempotent: state is re-derived from the stored fields on
// every pass, so a retried or overlapping sweep never loses or
// duplicates progress.
type Sweeper struct {
	records  RecordStore
	hub      *Hub
	log      zerolog.Logger
	interval time.Duration
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets the period between timed sweep passes.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// NewSweeper creates a Sweeper. It fails fast if the record store does
// not have the two required lookup queries registered.
func NewSweeper(records RecordStore, hub *Hub, log zerolog.Logger, opts ...SweeperOption) (*Sweeper, error) {
	for _, query := range []string{QueryExpiring, QueryUnexpiring} {
		if !records.HasQuery(query) {
			return nil, fmt.Errorf("named query %q is not registered", query)
		}
	}

	s := &Sweeper{
		records:  records,
		hub:      hub,
		log:      log,
		interval: DefaultSweepInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Sweep runs one batch pass and returns the number of assets that
// transitioned to expired and back to not-expired. The two passes run
// in separate transactions; a failing expiring pass does not prevent
// the unexpiring pass from being attempted.
func (s *Sweeper) Sweep(ctx context.Context) (expired, unexpired int, err error) {
	expired, expiringErr := s.transition(ctx, QueryExpiring, true, TopicAssetExpired)
	unexpired, unexpiringErr := s.transition(ctx, QueryUnexpiring, false, TopicAssetUnexpired)

	s.log.Info().
		Int("expired", expired).
		Int("unexpired", unexpired).
		Msg("expiration sweep finished")

	return expired, unexpired, errors.Join(expiringErr, unexpiringErr)
}

// transition flips the expired flag for every asset matched by the
// query, in one transaction, and publishes one event per asset after
// the transaction committed.
func (s *Sweeper) transition(ctx context.Context, query string, expired bool, topic string) (int, error) {
	var transitioned []*Asset

	err := s.records.Update(ctx, func(tx RecordTx) error {
		transitioned = transitioned[:0]

		assets, err := tx.ListAssets(query)
		if err != nil {
			return err
		}

		for _, asset := range assets {
			asset.Expired = expired
			if err := tx.PutAsset(asset); err != nil {
				return err
			}
			transitioned = append(transitioned, asset)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, asset := range transitioned {
		s.hub.Publish(topic, asset)
	}

	return len(transitioned), nil
}

// Run sweeps on the configured interval until the context is
// cancelled. Errors are logged; the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("expiration sweep failed")
			}
		}
	}
}
