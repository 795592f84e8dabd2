package font

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/pagesweep/core"
)

// Resolver resolves indirect references inside font dictionaries.
type Resolver interface {
	Resolve(obj core.Object) (core.Object, error)
}

// Font represents a PDF font, reduced to what is needed to turn shown
// strings into text.
type Font struct {
	Name     string
	BaseFont string
	Subtype  string
	Encoding string

	// ToUnicode CMap for character code to Unicode mapping
	ToUnicodeCMap *CMap

	// Descendant is set for Type0 fonts.
	Descendant *CIDFont

	simple  *Encoding
	codeLen int  // bytes per code; 0 lets the ToUnicode codespaces decide
	utf16   bool // codes are UTF-16BE (UCS2 and UTF16 CMaps)
}

// NewFont creates a simple font with the default encoding for its subtype.
func NewFont(name, baseFont, subtype string) *Font {
	f := &Font{
		Name:     name,
		BaseFont: baseFont,
		Subtype:  subtype,
		codeLen:  1,
	}
	f.Encoding = defaultEncoding(subtype)
	f.simple, _ = NamedEncoding(f.Encoding)
	return f
}

func defaultEncoding(subtype string) string {
	switch subtype {
	case "TrueType":
		return "WinAnsiEncoding"
	default:
		return "StandardEncoding"
	}
}

// Load builds a font from its dictionary. A broken /ToUnicode stream or
// encoding is ignored in favor of the fallback encoding, so only a missing
// dictionary is an error.
func Load(name string, dict core.Dict, r Resolver) (*Font, error) {
	if dict == nil {
		return nil, fmt.Errorf("font %s: missing dictionary", name)
	}
	subtype := nameValue(dict.Get("Subtype"))
	f := NewFont(name, nameValue(dict.Get("BaseFont")), subtype)

	if subtype == "Type0" {
		f.loadComposite(dict, r)
	} else {
		f.loadSimpleEncoding(dict, r)
	}

	if obj, err := r.Resolve(dict.Get("ToUnicode")); err == nil {
		if stream, ok := obj.(*core.Stream); ok {
			if cm, err := ParseToUnicodeCMap(stream); err == nil {
				f.ToUnicodeCMap = cm
			}
		}
	}
	return f, nil
}

func (f *Font) loadSimpleEncoding(dict core.Dict, r Resolver) {
	obj, err := r.Resolve(dict.Get("Encoding"))
	if err != nil {
		return
	}
	switch enc := obj.(type) {
	case core.Name:
		if named, ok := NamedEncoding(string(enc)); ok {
			f.Encoding = string(enc)
			f.simple = named
		}
	case core.Dict:
		if base, ok := enc.GetName("BaseEncoding"); ok {
			if named, ok := NamedEncoding(string(base)); ok {
				f.Encoding = string(base)
				f.simple = named
			}
		}
		if diffObj, err := r.Resolve(enc.Get("Differences")); err == nil {
			if diffs, ok := diffObj.(core.Array); ok {
				f.simple.ApplyDifferences(diffs)
			}
		}
	}
}

func (f *Font) loadComposite(dict core.Dict, r Resolver) {
	f.simple = nil
	f.codeLen = 2
	f.Encoding = "Identity-H"

	if obj, err := r.Resolve(dict.Get("Encoding")); err == nil {
		switch enc := obj.(type) {
		case core.Name:
			f.Encoding = string(enc)
			f.codeLen, f.utf16 = predefinedCMap(f.Encoding)
		case *core.Stream:
			// Embedded CMaps carry their own codespace ranges.
			f.Encoding = nameValue(enc.Dict.Get("CMapName"))
			f.codeLen = 0
		}
	}

	if obj, err := r.Resolve(dict.Get("DescendantFonts")); err == nil {
		if arr, ok := obj.(core.Array); ok && len(arr) > 0 {
			if d, err := r.Resolve(arr[0]); err == nil {
				if dd, ok := d.(core.Dict); ok {
					f.Descendant = NewCIDFont(dd, r)
				}
			}
		}
	}
}

// Decode converts the bytes of a shown string to NFC-normalized text.
// Codes the font cannot map decode to U+FFFD, so they still count as
// visible text.
func (f *Font) Decode(data []byte) string {
	var decoded string
	if f.ToUnicodeCMap != nil {
		decoded = f.ToUnicodeCMap.Decode(data, f.codeLen, f.decodeCode)
	} else {
		decoded = f.decodeRaw(data)
	}
	return norm.NFC.String(decoded)
}

func (f *Font) decodeRaw(data []byte) string {
	if f.simple != nil {
		var sb strings.Builder
		for _, c := range data {
			sb.WriteString(f.simple.Decode(c))
		}
		return sb.String()
	}
	if f.utf16 {
		return decodeUTF16BE(data)
	}
	n := f.codeLen
	if n <= 0 {
		n = 2
	}
	count := (len(data) + n - 1) / n
	return strings.Repeat(string(utf8.RuneError), count)
}

// decodeCode handles a single code the ToUnicode map left unmapped.
func (f *Font) decodeCode(code []byte) string {
	switch {
	case f.simple != nil && len(code) == 1:
		return f.simple.Decode(code[0])
	case f.utf16 && len(code) == 2:
		return decodeUTF16BE(code)
	}
	return string(utf8.RuneError)
}

// IsComposite reports whether the font is a Type0 font with multi-byte codes.
func (f *Font) IsComposite() bool {
	return f.Subtype == "Type0"
}

// IsVertical returns true if this font uses vertical writing mode
func (f *Font) IsVertical() bool {
	return IsVerticalEncoding(f.Encoding)
}

// IsVerticalEncoding checks if an encoding name indicates vertical writing
// mode. Predefined vertical CMaps end in "-V".
func IsVerticalEncoding(encoding string) bool {
	return encoding == "Identity-V" || strings.HasSuffix(encoding, "-V")
}

// predefinedCMap returns the code length of a predefined CMap name and
// whether its codes are UTF-16.
func predefinedCMap(name string) (codeLen int, utf16 bool) {
	switch {
	case name == "Identity-H" || name == "Identity-V":
		return 2, false
	case strings.Contains(name, "-UCS2-"), strings.Contains(name, "-UTF16-"):
		return 2, true
	}
	// Mixed-width legacy CMaps; leave it to the ToUnicode codespaces.
	return 0, false
}

func nameValue(obj core.Object) string {
	if n, ok := obj.(core.Name); ok {
		return string(n)
	}
	return ""
}
