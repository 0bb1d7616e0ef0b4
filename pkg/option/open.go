package option

import (
	"github.com/bgrewell/disc-kit/pkg/logging"
	"github.com/go-logr/logr"
)

// OpenOption is a function to set open options.
type OpenOption func(*OpenOptions)

// OpenOptions holds the options for opening a disc image.
type OpenOptions struct {
	// ParseFilename controls whether the image's filename is mined for
	// region, serial, version and disc-number hints.
	ParseFilename bool
	// ProbeFilesystems controls whether embedded filesystems are probed
	// for volume metadata. When false only container metadata is read.
	ProbeFilesystems bool
	// Logger is the logger to use for parse diagnostics.
	Logger *logging.Logger
}

// NewOpenOptions returns the default options for opening a disc image.
func NewOpenOptions(opts ...OpenOption) OpenOptions {
	options := OpenOptions{
		ParseFilename:    true,
		ProbeFilesystems: true,
		Logger:           logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithParseFilename sets whether to parse metadata hints out of the filename.
func WithParseFilename(enabled bool) OpenOption {
	return func(o *OpenOptions) {
		o.ParseFilename = enabled
	}
}

// WithProbeFilesystems sets whether to probe embedded filesystems.
func WithProbeFilesystems(enabled bool) OpenOption {
	return func(o *OpenOptions) {
		o.ProbeFilesystems = enabled
	}
}

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(logger logr.Logger) OpenOption {
	return func(o *OpenOptions) {
		o.Logger = logging.NewLogger(logger)
	}
}
