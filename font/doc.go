// Package font turns the bytes of shown PDF strings into Unicode text.
//
// Only what text extraction needs is modeled: encodings, ToUnicode CMaps
// and the code length of composite fonts. Glyph metrics are not read.
//
//	f, err := font.Load("F1", fontDict, resolver)
//	text := f.Decode(rawBytes)
//
// # Decoding Order
//
// A /ToUnicode CMap wins when present. Codes it leaves unmapped fall back
// to the font encoding:
//
//   - simple fonts use a named encoding (WinAnsiEncoding, MacRomanEncoding,
//     StandardEncoding) patched by /Differences
//   - Type0 fonts with a UCS2 or UTF16 CMap decode codes as UTF-16BE
//
// Anything else decodes to U+FFFD. Decoded text is NFC-normalized.
//
// # Glyph Names
//
// [GlyphToRune] understands common Adobe glyph names, the uniXXXX and
// uXXXX forms, and accented letters such as "eacute".
package font
