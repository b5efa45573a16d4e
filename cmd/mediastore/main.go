// Command mediastore is an operational harness around the media
// store: ingest files as assets, stream them back, and run expiration
// sweeps.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alexjoedt/mediastore"
	"github.com/alexjoedt/mediastore/blobfs"
	"github.com/alexjoedt/mediastore/recordstore"
)

var (
	dataDir  string
	logLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "mediastore",
		Short:         "Manage binary-backed assets and ordered directories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "data directory")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(putCommand(), catCommand(), sweepCommand(), gcCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parsing log level: %w", err)
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

// queryAllAssets selects every asset record, used by gc to collect the
// referenced store identifiers.
const queryAllAssets = "assets.all"

// env bundles the opened stores and services.
type env struct {
	records *recordstore.Store
	blobs   *blobfs.Store
	assets  *mediastore.AssetService
	sweeper *mediastore.Sweeper
	log     zerolog.Logger
}

func openEnv() (*env, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	blobs, err := blobfs.NewStore(filepath.Join(dataDir, "blobs"), blobfs.WithCompression())
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	records, err := recordstore.Open(filepath.Join(dataDir, "records"),
		recordstore.WithLogger(log),
		recordstore.WithQuery(queryAllAssets, func(*mediastore.Asset, time.Time) bool { return true }),
	)
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	hub := mediastore.NewHub(log)
	assets := mediastore.NewAssetService(records, blobs, hub, log)

	sweeper, err := mediastore.NewSweeper(records, hub, log)
	if err != nil {
		records.Close()
		return nil, err
	}

	return &env{
		records: records,
		blobs:   blobs,
		assets:  assets,
		sweeper: sweeper,
		log:     log,
	}, nil
}

func (e *env) close() {
	if err := e.records.Close(); err != nil {
		e.log.Error().Err(err).Msg("closing record store")
	}
}

func putCommand() *cobra.Command {
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Create an asset from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			draft := &mediastore.Asset{}
			draft.SetName(filepath.Base(args[0]))
			draft.AttachStream(f)
			if expiresIn > 0 {
				draft.ExpiresAt = time.Now().Add(expiresIn)
			}

			asset, err := e.assets.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}

			fmt.Println(asset.ID)
			return nil
		},
	}

	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "expire the asset after this duration (0 = never)")

	return cmd
}

func catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <asset-id>",
		Short: "Write an asset's binary payload to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			asset, err := e.assets.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := e.assets.ReadStream(cmd.Context(), asset); err != nil {
				return err
			}
			defer asset.Stream().Close()

			_, err = io.Copy(os.Stdout, asset.Stream())
			return err
		},
	}
}

func gcCommand() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "List blobs no asset record references",
		Long: "Scans the blob store for payloads no asset record points at, " +
			"such as leftovers of failed create compensations, and prints their " +
			"identifiers. With --delete the orphans are removed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			referenced := make(map[string]bool)
			err = e.records.View(cmd.Context(), func(tx mediastore.RecordTx) error {
				assets, err := tx.ListAssets(queryAllAssets)
				if err != nil {
					return err
				}
				for _, asset := range assets {
					referenced[asset.StoreIdentifier] = true
				}
				return nil
			})
			if err != nil {
				return err
			}

			iter := e.blobs.List(cmd.Context())
			defer iter.Close()

			for iter.Next() {
				meta := iter.Meta()
				if referenced[meta.Identifier] {
					continue
				}
				if remove {
					if err := e.blobs.Delete(cmd.Context(), meta.Identifier); err != nil {
						return err
					}
					e.log.Info().Str("store_identifier", meta.Identifier).Msg("deleted orphaned blob")
				}
				fmt.Println(meta.Identifier)
			}
			return iter.Err()
		},
	}

	cmd.Flags().BoolVar(&remove, "delete", false, "delete the orphaned blobs instead of only listing them")

	return cmd
}

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiration sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			expired, unexpired, err := e.sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("expired %d, unexpired %d\n", expired, unexpired)
			return nil
		},
	}
}
