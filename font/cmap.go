package font

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/tsawler/pagesweep/contentstream"
	"github.com/tsawler/pagesweep/core"
)

// CMap maps character codes to Unicode text, as read from a /ToUnicode
// stream.
type CMap struct {
	Name       string
	codespaces []codespaceRange
	chars      map[string]string // code bytes -> text
	ranges     []CMapRange
	maxLen     int
}

type codespaceRange struct {
	low, high []byte
}

// CMapRange is a bfrange entry. Either Dst is set and codes map to
// consecutive values starting at Dst, or Dsts lists one value per code.
type CMapRange struct {
	Low, High uint32
	Len       int // code length in bytes
	Dst       []rune
	Dsts      []string
}

// NewCMap creates an empty CMap
func NewCMap() *CMap {
	return &CMap{chars: make(map[string]string)}
}

// ParseToUnicodeCMap decodes and parses a ToUnicode stream.
func ParseToUnicodeCMap(stream *core.Stream) (*CMap, error) {
	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode ToUnicode stream: %w", err)
	}
	return ParseCMap(data)
}

// ParseCMap parses CMap program text. The program is tokenized like a
// content stream: each section's entries arrive as the operands of its
// end operator. Syntax errors stop parsing but keep the entries read so far.
func ParseCMap(data []byte) (*CMap, error) {
	ops, parseErr := contentstream.NewParser(data).Parse()

	cm := NewCMap()
	var lastName core.Name
	for _, op := range ops {
		switch op.Operator {
		case "endcodespacerange":
			cm.addCodespaces(op.Operands)
		case "endbfchar":
			cm.addChars(op.Operands)
		case "endbfrange":
			cm.addRanges(op.Operands)
		case "def":
			if len(op.Operands) == 2 {
				if key, ok := op.Operands[0].(core.Name); ok && key == "CMapName" {
					lastName, _ = op.Operands[1].(core.Name)
				}
			}
		}
	}
	cm.Name = string(lastName)

	if len(cm.chars) == 0 && len(cm.ranges) == 0 {
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse CMap: %w", parseErr)
		}
		return nil, fmt.Errorf("CMap has no mappings")
	}
	return cm, nil
}

func (cm *CMap) addCodespaces(operands []core.Object) {
	for i := 0; i+1 < len(operands); i += 2 {
		low, ok1 := operands[i].(core.String)
		high, ok2 := operands[i+1].(core.String)
		if !ok1 || !ok2 || len(low) != len(high) || len(low) == 0 || len(low) > 4 {
			continue
		}
		cm.codespaces = append(cm.codespaces, codespaceRange{low: []byte(low), high: []byte(high)})
		cm.noteLen(len(low))
	}
}

func (cm *CMap) addChars(operands []core.Object) {
	for i := 0; i+1 < len(operands); i += 2 {
		src, ok := operands[i].(core.String)
		if !ok || len(src) == 0 || len(src) > 4 {
			continue
		}
		dst, ok := destination(operands[i+1])
		if !ok {
			continue
		}
		cm.chars[string(src)] = dst
		cm.noteLen(len(src))
	}
}

func (cm *CMap) addRanges(operands []core.Object) {
	for i := 0; i+2 < len(operands); i += 3 {
		lowStr, ok1 := operands[i].(core.String)
		highStr, ok2 := operands[i+1].(core.String)
		if !ok1 || !ok2 || len(lowStr) == 0 || len(lowStr) > 4 || len(lowStr) != len(highStr) {
			continue
		}
		r := CMapRange{Low: codeValue([]byte(lowStr)), High: codeValue([]byte(highStr)), Len: len(lowStr)}
		if r.High < r.Low {
			continue
		}

		switch dst := operands[i+2].(type) {
		case core.String:
			r.Dst = []rune(decodeUTF16BE([]byte(dst)))
			if len(r.Dst) == 0 {
				continue
			}
		case core.Array:
			if len(dst) == 0 {
				continue
			}
			for _, elem := range dst {
				s, _ := destination(elem)
				r.Dsts = append(r.Dsts, s)
			}
		default:
			continue
		}
		cm.ranges = append(cm.ranges, r)
		cm.noteLen(r.Len)
	}
}

func (cm *CMap) noteLen(n int) {
	if n > cm.maxLen {
		cm.maxLen = n
	}
}

// destination reads a bfchar target: a UTF-16BE hex string or, in some
// producers' output, a glyph name.
func destination(obj core.Object) (string, bool) {
	switch v := obj.(type) {
	case core.String:
		return decodeUTF16BE([]byte(v)), true
	case core.Name:
		if r, ok := GlyphToRune(string(v)); ok {
			return string(r), true
		}
	}
	return "", false
}

// Lookup returns the text for a single code of the given byte length.
func (cm *CMap) Lookup(code uint32, length int) (string, bool) {
	var key [4]byte
	for i := length - 1; i >= 0; i-- {
		key[i] = byte(code)
		code >>= 8
	}
	return cm.lookup(key[:length])
}

func (cm *CMap) lookup(code []byte) (string, bool) {
	if s, ok := cm.chars[string(code)]; ok {
		return s, true
	}
	v := codeValue(code)
	for _, r := range cm.ranges {
		if r.Len != len(code) || v < r.Low || v > r.High {
			continue
		}
		offset := int(v - r.Low)
		if r.Dsts != nil {
			if offset < len(r.Dsts) {
				return r.Dsts[offset], true
			}
			continue
		}
		out := append([]rune(nil), r.Dst...)
		out[len(out)-1] += rune(offset)
		return string(out), true
	}
	return "", false
}

// codeLength picks the byte length of the code starting at data[0] from
// the codespace ranges, falling back to the longest mapped code or fallback.
func (cm *CMap) codeLength(data []byte, fallback int) int {
	for n := 1; n <= 4 && n <= len(data); n++ {
		for _, cs := range cm.codespaces {
			if len(cs.low) == n && inCodespace(data[:n], cs) {
				return n
			}
		}
	}
	if cm.maxLen > 0 {
		fallback = cm.maxLen
	}
	if fallback <= 0 {
		fallback = 1
	}
	return min(fallback, len(data))
}

func inCodespace(code []byte, cs codespaceRange) bool {
	for i := range code {
		if code[i] < cs.low[i] || code[i] > cs.high[i] {
			return false
		}
	}
	return true
}

// Decode converts a shown string to text. codeLen is the code length
// implied by the font; when it is 0 the codespace ranges decide. Unmapped
// codes are passed to fallback.
func (cm *CMap) Decode(data []byte, codeLen int, fallback func(code []byte) string) string {
	var sb strings.Builder
	for len(data) > 0 {
		n := codeLen
		if n <= 0 {
			n = cm.codeLength(data, 1)
		}
		n = min(n, len(data))
		code := data[:n]
		if s, ok := cm.lookup(code); ok {
			sb.WriteString(s)
		} else {
			sb.WriteString(fallback(code))
		}
		data = data[n:]
	}
	return sb.String()
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

// decodeUTF16BE decodes UTF-16BE text; a trailing odd byte is dropped.
func decodeUTF16BE(data []byte) string {
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}
	return string(utf16.Decode(units))
}
