// Package contentstream provides parsing of PDF content streams.
//
// Content streams contain the instructions for rendering page content,
// including text display, graphics operations, and image placement.
//
//	ops, err := contentstream.NewParser(streamData).Parse()
//	for _, op := range ops {
//	    fmt.Printf("Operator: %s, Operands: %v\n", op.Operator, op.Operands)
//	}
//
// Each [Parser] keeps its own operand stack, so parsers may run on
// separate goroutines. On a syntax error, Parse returns the operations read
// so far together with the error.
//
// # Inline Images
//
// The data of an inline image (BI ... ID ... EI) is skipped. The image is
// reported as a single "BI" operation carrying the image dictionary.
//
// # Operand Types
//
// Operands can be any direct PDF object: numbers ([core.Int], [core.Real]),
// strings, names, booleans, null, arrays and dictionaries.
package contentstream
