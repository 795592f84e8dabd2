package pagesweep

import "github.com/tsawler/pagesweep/blank"

// PageVerdict is the classification of one source page.
type PageVerdict struct {
	Page     int // 1-based
	Blank    bool
	Evidence blank.Evidence
}

// Result summarizes a run.
type Result struct {
	// Output is the cleaned document. It is nil for Analyze and on error.
	Output []byte

	TotalPages   int
	RemovedPages int

	// Removed lists the 1-based numbers of the removed pages.
	Removed  []int
	Verdicts []PageVerdict
	Warnings []Warning
}

// KeptPages returns the number of pages in the output.
func (r *Result) KeptPages() int {
	return r.TotalPages - r.RemovedPages
}

// AllRemoved reports whether the output has no pages.
func (r *Result) AllRemoved() bool {
	return r.KeptPages() == 0
}
