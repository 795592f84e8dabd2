package font

import (
	"github.com/tsawler/pagesweep/core"
)

// CIDFont represents a CIDFont (Character ID keyed font), the descendant
// of a Type0 font.
type CIDFont struct {
	BaseFont      string
	Subtype       string // CIDFontType0 or CIDFontType2
	CIDSystemInfo *CIDSystemInfo
}

// CIDSystemInfo identifies a character collection
type CIDSystemInfo struct {
	Registry   string // e.g., "Adobe"
	Ordering   string // e.g., "Japan1", "GB1", "CNS1", "Korea1"
	Supplement int
}

// NewCIDFont reads a descendant font dictionary. Unresolvable entries are
// left empty.
func NewCIDFont(dict core.Dict, r Resolver) *CIDFont {
	cid := &CIDFont{
		BaseFont: nameValue(dict.Get("BaseFont")),
		Subtype:  nameValue(dict.Get("Subtype")),
	}

	obj, err := r.Resolve(dict.Get("CIDSystemInfo"))
	if err != nil {
		return cid
	}
	if info, ok := obj.(core.Dict); ok {
		cid.CIDSystemInfo = &CIDSystemInfo{
			Registry: stringValue(info.Get("Registry")),
			Ordering: stringValue(info.Get("Ordering")),
		}
		if n, ok := info.GetInt("Supplement"); ok {
			cid.CIDSystemInfo.Supplement = int(n)
		}
	}
	return cid
}

// IsCJK reports whether the font uses one of the Adobe CJK collections.
func (cid *CIDFont) IsCJK() bool {
	switch cid.Collection() {
	case "Adobe-Japan1", "Adobe-Japan2", "Adobe-GB1", "Adobe-CNS1", "Adobe-Korea1":
		return true
	}
	return false
}

// Collection returns the character collection as "Registry-Ordering", or
// an empty string when the font does not declare one.
func (cid *CIDFont) Collection() string {
	if cid.CIDSystemInfo == nil {
		return ""
	}
	return cid.CIDSystemInfo.Registry + "-" + cid.CIDSystemInfo.Ordering
}

func stringValue(obj core.Object) string {
	switch v := obj.(type) {
	case core.String:
		return DecodeTextString([]byte(v))
	case core.Name:
		return string(v)
	}
	return ""
}
