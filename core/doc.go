// Package core provides the PDF object model and the low-level syntax layer:
// lexing, parsing, cross-reference sections, object streams, stream decoding
// and serialization.
//
// All parsing works on an in-memory buffer. Token positions and xref offsets
// are absolute offsets into that buffer, so a [Parser] can be started at any
// object with [NewParserAt].
//
// # Object Types
//
// The eight basic PDF types are [Null], [Bool], [Int], [Real], [String],
// [Name], [Array] and [Dict]. [Stream] pairs a dictionary with its still
// encoded data, and [IndirectRef] refers to an indirect object.
//
// # Cross-Reference Data
//
// [XRefParser] reads classic tables and cross-reference streams, follows
// /Prev chains and merges the hidden /XRefStm section of hybrid files.
// [RebuildXRef] recovers a table from a damaged file by scanning for object
// headers.
//
// # Streams
//
// [Stream.Decode] applies FlateDecode (with predictors), ASCIIHexDecode,
// ASCII85Decode and RunLengthDecode, alone or chained. Image codecs are
// reported as [ErrUnsupportedFilter]. [ObjectStream] extracts objects stored
// in /ObjStm streams.
//
// # Serialization
//
// [AppendObject] and [AppendIndirectObject] write objects back as PDF syntax
// with dictionary keys in sorted order.
package core
