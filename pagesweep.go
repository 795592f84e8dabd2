// Package pagesweep removes blank pages from PDF documents.
//
// A page is blank when it shows no text, carries no annotations and has no
// image among its XObject resources. The cleaned document keeps the other
// pages in their original order.
//
// Basic usage:
//
//	res, err := pagesweep.RemoveBlankPages(data)
//	if err != nil {
//	    // handle error
//	}
//	fmt.Printf("removed %d of %d pages\n", res.RemovedPages, res.TotalPages)
//	if len(res.Warnings) > 0 {
//	    log.Println("Warnings:", pagesweep.FormatWarnings(res.Warnings))
//	}
//
// With a file and options:
//
//	res, err := pagesweep.Open("scan.pdf").
//	    MaxInputSize(64 << 20).
//	    RejectEmptyOutput().
//	    Clean()
//
// For advanced use cases the reader, blank and writer packages are
// available directly.
package pagesweep

// Open returns a Sweeper reading the named file.
//
// Example:
//
//	res, err := pagesweep.Open("document.pdf").Clean()
func Open(filename string) *Sweeper {
	return &Sweeper{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromBytes returns a Sweeper over an in-memory document. The buffer is
// not modified.
func FromBytes(data []byte) *Sweeper {
	return &Sweeper{
		data:    data,
		options: defaultOptions(),
	}
}

// RemoveBlankPages returns a copy of the document without its blank pages.
//
// Errors: ErrEmptyInput, ErrInputTooLarge, *ParseError (wrapping
// ErrEncrypted for protected documents), *WriteError and, with
// WithRejectEmptyOutput, ErrNoPagesKept.
func RemoveBlankPages(data []byte, opts ...Option) (*Result, error) {
	return FromBytes(data).With(opts...).Clean()
}

// Filter is RemoveBlankPages reduced to the cleaned bytes and the page
// counts. The number of kept pages is total - removed.
func Filter(data []byte) (out []byte, total, removed int, err error) {
	res, err := RemoveBlankPages(data)
	if err != nil {
		return nil, 0, 0, err
	}
	return res.Output, res.TotalPages, res.RemovedPages, nil
}

// Analyze classifies every page without producing output.
func Analyze(data []byte, opts ...Option) (*Result, error) {
	return FromBytes(data).With(opts...).Analyze()
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	n := pagesweep.Must(pagesweep.Open("document.pdf").PageCount())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
