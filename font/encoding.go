package font

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/pagesweep/core"
)

// Encoding maps single-byte codes of a simple font to runes. A zero entry
// is an undefined code.
type Encoding [256]rune

// Decode converts a code to text, returning U+FFFD for undefined codes.
func (e *Encoding) Decode(code byte) string {
	if r := e[code]; r != 0 {
		return string(r)
	}
	return string(utf8.RuneError)
}

// ApplyDifferences applies a /Differences array: a code followed by the
// glyph names of consecutive codes.
func (e *Encoding) ApplyDifferences(diffs core.Array) {
	code := -1
	for _, item := range diffs {
		switch v := item.(type) {
		case core.Int:
			code = int(v)
		case core.Real:
			code = int(v)
		case core.Name:
			if code < 0 || code > 255 {
				code++
				continue
			}
			if r, ok := GlyphToRune(string(v)); ok {
				e[code] = r
			} else {
				// Unknown glyphs still draw something.
				e[code] = utf8.RuneError
			}
			code++
		}
	}
}

// NamedEncoding returns a copy of a predefined encoding.
func NamedEncoding(name string) (*Encoding, bool) {
	var base *Encoding
	switch name {
	case "WinAnsiEncoding":
		base = &winAnsiEncoding
	case "MacRomanEncoding":
		base = &macRomanEncoding
	case "StandardEncoding":
		base = &standardEncoding
	case "PDFDocEncoding":
		base = &pdfDocEncoding
	default:
		return nil, false
	}
	enc := *base
	return &enc, true
}

var (
	winAnsiEncoding  = fromCharmap(charmap.Windows1252)
	macRomanEncoding = fromCharmap(charmap.Macintosh)
	standardEncoding = buildStandardEncoding()
	pdfDocEncoding   = buildPDFDocEncoding()
)

// whitespaceCodes map to themselves in every simple encoding.
var whitespaceCodes = []byte{'\t', '\n', '\f', '\r', ' '}

func withWhitespace(enc *Encoding) {
	for _, c := range whitespaceCodes {
		enc[c] = rune(c)
	}
}

func fromCharmap(cm *charmap.Charmap) Encoding {
	var enc Encoding
	withWhitespace(&enc)
	for c := 0x20; c < 256; c++ {
		if r := cm.DecodeByte(byte(c)); r != utf8.RuneError && r != 0x7F {
			enc[c] = r
		}
	}
	// Bullets stand in for undefined WinAnsi codes above 0x7F.
	for _, c := range []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D} {
		if enc[c] == 0 || enc[c] < 0xA0 {
			enc[c] = '•'
		}
	}
	return enc
}

func buildStandardEncoding() Encoding {
	var enc Encoding
	withWhitespace(&enc)
	for c := 0x20; c < 0x7F; c++ {
		enc[c] = rune(c)
	}
	enc['\''] = '’'
	enc['`'] = '‘'
	for code, name := range standardUpper {
		if r, ok := GlyphToRune(name); ok {
			enc[code] = r
		}
	}
	return enc
}

// standardUpper lists the StandardEncoding codes above 0x7F.
var standardUpper = map[int]string{
	0xA1: "exclamdown", 0xA2: "cent", 0xA3: "sterling", 0xA4: "fraction",
	0xA5: "yen", 0xA6: "florin", 0xA7: "section", 0xA8: "currency",
	0xA9: "quotesingle", 0xAA: "quotedblleft", 0xAB: "guillemotleft",
	0xAC: "guilsinglleft", 0xAD: "guilsinglright", 0xAE: "fi", 0xAF: "fl",
	0xB1: "endash", 0xB2: "dagger", 0xB3: "daggerdbl", 0xB4: "periodcentered",
	0xB6: "paragraph", 0xB7: "bullet", 0xB8: "quotesinglbase",
	0xB9: "quotedblbase", 0xBA: "quotedblright", 0xBB: "guillemotright",
	0xBC: "ellipsis", 0xBD: "perthousand", 0xBF: "questiondown",
	0xC1: "grave", 0xC2: "acute", 0xC3: "circumflex", 0xC4: "tilde",
	0xC5: "macron", 0xC6: "breve", 0xC7: "dotaccent", 0xC8: "dieresis",
	0xCA: "ring", 0xCB: "cedilla", 0xCD: "hungarumlaut", 0xCE: "ogonek",
	0xCF: "caron", 0xD0: "emdash", 0xE1: "AE", 0xE3: "ordfeminine",
	0xE8: "Lslash", 0xE9: "Oslash", 0xEA: "OE", 0xEB: "ordmasculine",
	0xF1: "ae", 0xF5: "dotlessi", 0xF8: "lslash", 0xF9: "oslash",
	0xFA: "oe", 0xFB: "germandbls",
}

func buildPDFDocEncoding() Encoding {
	var enc Encoding
	withWhitespace(&enc)
	for c := 0x20; c < 256; c++ {
		enc[c] = rune(c)
	}
	enc[0x7F] = 0
	for code, r := range map[int]rune{
		0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙',
		0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
		0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
		0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
		0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰',
		0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
		0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
		0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
		0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł',
		0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
	} {
		enc[code] = r
	}
	enc[0x9F] = 0
	enc[0xAD] = 0
	return enc
}

// DecodeTextString decodes a PDF text string (document metadata and the
// like): UTF-16BE with a byte order mark, UTF-8 with a BOM, or PDFDocEncoding.
func DecodeTextString(s []byte) string {
	switch {
	case len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF:
		return decodeUTF16BE(s[2:])
	case len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF:
		return string(s[3:])
	}
	var sb strings.Builder
	for _, c := range s {
		if r := pdfDocEncoding[c]; r != 0 {
			sb.WriteRune(r)
		} else if c < 0x20 {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// GlyphToRune maps a glyph name to a rune. It understands the common
// Adobe names, uniXXXX and uXXXX[XX] forms, accented Latin letters built
// from a base letter and an accent suffix, and names with a variant suffix
// such as "a.sc".
func GlyphToRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return 0, false
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 && isASCIILetter(name[0]) {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) >= 7 {
		if v, err := strconv.ParseUint(name[3:7], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil && v <= utf8.MaxRune {
			return rune(v), true
		}
	}
	if r, ok := composeAccented(name); ok {
		return r, true
	}
	return 0, false
}

// accentMarks maps glyph name suffixes to combining marks.
var accentMarks = map[string]rune{
	"grave":        '\u0300',
	"acute":        '\u0301',
	"circumflex":   '\u0302',
	"tilde":        '\u0303',
	"macron":       '\u0304',
	"breve":        '\u0306',
	"dotaccent":    '\u0307',
	"dieresis":     '\u0308',
	"ring":         '\u030a',
	"hungarumlaut": '\u030b',
	"caron":        '\u030c',
	"cedilla":      '\u0327',
	"ogonek":       '\u0328',
}

// composeAccented handles names like "eacute" by composing the base letter
// with the accent and normalizing to NFC.
func composeAccented(name string) (rune, bool) {
	if len(name) < 2 || !isASCIILetter(name[0]) {
		return 0, false
	}
	mark, ok := accentMarks[name[1:]]
	if !ok {
		return 0, false
	}
	composed := norm.NFC.String(string(rune(name[0])) + string(mark))
	r, size := utf8.DecodeRuneInString(composed)
	if size != len(composed) {
		return 0, false
	}
	return r, true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quoteright": '’',
	"quotesingle": '\'', "parenleft": '(', "parenright": ')', "asterisk": '*',
	"plus": '+', "comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_',
	"quoteleft": '‘', "braceleft": '{', "bar": '|', "braceright": '}',
	"asciitilde": '~', "exclamdown": '¡', "cent": '¢',
	"sterling": '£', "fraction": '⁄', "yen": '¥',
	"florin": 'ƒ', "section": '§', "currency": '¤',
	"quotedblleft": '“', "guillemotleft": '«',
	"guilsinglleft": '‹', "guilsinglright": '›', "fi": 'ﬁ',
	"fl": 'ﬂ', "endash": '–', "dagger": '†',
	"daggerdbl": '‡', "periodcentered": '·', "paragraph": '¶',
	"bullet": '•', "quotesinglbase": '‚', "quotedblbase": '„',
	"quotedblright": '”', "guillemotright": '»',
	"ellipsis": '…', "perthousand": '‰', "questiondown": '¿',
	"grave": '`', "acute": '´', "circumflex": 'ˆ', "tilde": '˜',
	"macron": '¯', "breve": '˘', "dotaccent": '˙',
	"dieresis": '¨', "ring": '˚', "cedilla": '¸',
	"hungarumlaut": '˝', "ogonek": '˛', "caron": 'ˇ',
	"emdash": '—', "AE": 'Æ', "ordfeminine": 'ª',
	"Lslash": 'Ł', "Oslash": 'Ø', "OE": 'Œ',
	"ordmasculine": 'º', "ae": 'æ', "dotlessi": 'ı',
	"lslash": 'ł', "oslash": 'ø', "oe": 'œ',
	"germandbls": 'ß', "Eth": 'Ð', "eth": 'ð',
	"Thorn": 'Þ', "thorn": 'þ', "trademark": '™',
	"copyright": '©', "registered": '®', "degree": '°',
	"plusminus": '±', "multiply": '×', "divide": '÷',
	"minus": '−', "mu": 'µ', "onehalf": '½',
	"onequarter": '¼', "threequarters": '¾', "onesuperior": '¹',
	"twosuperior": '²', "threesuperior": '³', "logicalnot": '¬',
	"brokenbar": '¦', "Euro": '€', "euro": '€',
	"nbspace": '\u00a0', "nonbreakingspace": '\u00a0', "sfthyphen": '\u00ad',
	"softhyphen": '\u00ad', "ff": 'ﬀ', "ffi": 'ﬃ', "ffl": 'ﬄ',
	"Scaron": 'Š', "scaron": 'š', "Zcaron": 'Ž',
	"zcaron": 'ž', "Ydieresis": 'Ÿ', "ydieresis": 'ÿ',
	"dotlessj": 'ȷ', "arrowright": '→', "arrowleft": '←',
	"arrowup": '↑', "arrowdown": '↓', "lozenge": '◊',
	"notequal": '≠', "lessequal": '≤', "greaterequal": '≥',
	"infinity": '∞', "summation": '∑', "product": '∏',
	"radical": '√', "integral": '∫', "partialdiff": '∂',
	"Delta": '∆', "Omega": 'Ω', "pi": 'π', "approxequal": '≈',
}
