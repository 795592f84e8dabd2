// Package text extracts the plain text shown on a PDF page.
//
// The [Extractor] walks a page's content streams, decodes every shown
// string (Tj, TJ, ' and ") with the font selected by Tf, and follows Do
// operators into Form XObjects:
//
//	e := text.NewExtractor(reader)
//	s, err := e.PageText(page)
//
// Positions are not tracked. Line breaks are inserted at text positioning
// operators and at the end of text objects, and large TJ gaps become spaces.
//
// # Errors
//
// Extraction does not stop at the first problem. Unreadable content streams,
// missing fonts and broken Form XObjects are collected and returned as one
// joined error next to the text that could be read.
package text
