package pagesweep

import "github.com/tsawler/pagesweep/writer"

// DefaultMaxInputSize is the largest input accepted unless overridden.
const DefaultMaxInputSize int64 = 512 << 20

// Options holds the configuration of a run.
type Options struct {
	maxInputSize int64
	rejectEmpty  bool
	producer     string
	maxFormDepth int
}

// defaultOptions returns the default options.
func defaultOptions() Options {
	return Options{
		maxInputSize: DefaultMaxInputSize,
		producer:     writer.DefaultProducer,
	}
}

// Option changes Options.
type Option func(*Options)

// WithMaxInputSize sets the largest accepted input in bytes. Values below 1
// keep the default.
func WithMaxInputSize(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxInputSize = n
		}
	}
}

// WithRejectEmptyOutput makes a run whose pages are all blank fail with
// ErrNoPagesKept instead of producing a zero-page document.
func WithRejectEmptyOutput() Option {
	return func(o *Options) {
		o.rejectEmpty = true
	}
}

// WithProducer sets the /Producer written to the output document.
func WithProducer(producer string) Option {
	return func(o *Options) {
		o.producer = producer
	}
}

// WithMaxFormDepth bounds how deep text detection follows nested Form
// XObjects. Values below 1 keep the default.
func WithMaxFormDepth(depth int) Option {
	return func(o *Options) {
		if depth > 0 {
			o.maxFormDepth = depth
		}
	}
}
