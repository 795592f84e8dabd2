package pagesweep

import (
	"strconv"
	"strings"
)

// Warning is a non-fatal problem met while processing a document.
type Warning struct {
	// Page is the 1-based page the warning concerns, or 0 for the document.
	Page    int
	Message string
}

func (w Warning) String() string {
	if w.Page > 0 {
		return "page " + strconv.Itoa(w.Page) + ": " + w.Message
	}
	return w.Message
}

// FormatWarnings joins warnings into a single line.
func FormatWarnings(warnings []Warning) string {
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = w.String()
	}
	return strings.Join(parts, "; ")
}
