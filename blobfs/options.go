package blobfs

import "os"

// Options configures Store behavior.
type Options struct {
	FileMode    os.FileMode // Permission bits for blob data files
	DirMode     os.FileMode // Permission bits for directories
	Compression bool        // Compress blob data with zstd
}

// OptionFunc is a functional option for configuring a Store.
type OptionFunc func(opts *Options)

// WithFileMode sets the file permission mode for blob data files.
// Default is 0644.
func WithFileMode(mode os.FileMode) OptionFunc {
	return func(opts *Options) {
		opts.FileMode = mode
	}
}

// WithDirMode sets the directory permission mode for storage
// directories. Default is 0755.
func WithDirMode(mode os.FileMode) OptionFunc {
	return func(opts *Options) {
		opts.DirMode = mode
	}
}

// WithCompression enables zstd compression for stored blobs. Reads
// are transparent either way: the blob metadata records the encoding,
// so a store can be reopened with a different setting and still serve
// previously written blobs.
func WithCompression() OptionFunc {
	return func(opts *Options) {
		opts.Compression = true
	}
}

var defaultOpts = &Options{
	FileMode: 0644,
	DirMode:  0755,
}
