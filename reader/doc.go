// Package reader opens PDF documents held in memory and resolves their
// objects.
//
// # Opening Documents
//
//	r, err := reader.NewReaderFromBytes(data)
//	if err != nil {
//	    return err
//	}
//	all, err := r.Pages()
//
// [Open] reads a file fully and calls [NewReaderFromBytes].
//
// # Cross-Reference Data
//
// The reader follows the startxref chain through classic tables, xref
// streams, hybrid files and /Prev updates. Objects stored in object streams
// are loaded on demand. When the chain is missing or broken, or does not
// lead to a usable catalog, the table is rebuilt by scanning the file for
// object headers; object streams are indexed and the catalog is located
// from xref stream dictionaries or by its /Type. [Reader.Repaired] reports
// whether that happened. A single object with a wrong offset is re-read at
// its scanned position without rebuilding the whole table.
//
// # Errors
//
// Documents with an /Encrypt entry are rejected with [ErrEncrypted].
// Objects without a usable definition produce errors wrapping
// [ErrObjectNotFound]. Resolution detects objects that depend on
// themselves while loading, such as a stream whose /Length refers back to
// the stream.
package reader
