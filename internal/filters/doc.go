// Package filters implements the PDF stream decoding filters needed to read
// content streams, object streams and cross-reference streams.
//
//   - [FlateDecode] inflates zlib data and undoes TIFF Predictor 2 and the PNG
//     predictors (10-15). A truncated zlib stream yields the bytes inflated
//     before the cut.
//   - [ASCIIHexDecode] and [ASCII85Decode] decode the ASCII armour filters.
//   - [RunLengthDecode] expands the byte-oriented run length encoding.
//
// Decode parameters are passed as [Params], a map of Go primitives:
//
//	decoded, err := filters.FlateDecode(data, filters.Params{
//	    "Predictor": 12,
//	    "Columns":   5,
//	})
package filters
