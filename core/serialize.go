package core

import (
	"math"
	"strconv"
)

// AppendObject appends the PDF syntax for obj to dst. Dictionary keys are
// written in sorted order. Streams are written with /Length set to the size
// of their data, which is emitted unchanged.
func AppendObject(dst []byte, obj Object) []byte {
	switch v := obj.(type) {
	case nil, Null:
		return append(dst, "null"...)
	case Bool:
		return strconv.AppendBool(dst, bool(v))
	case Int:
		return strconv.AppendInt(dst, int64(v), 10)
	case Real:
		return appendReal(dst, float64(v))
	case String:
		return appendString(dst, []byte(v))
	case Name:
		return appendName(dst, string(v))
	case Array:
		dst = append(dst, '[')
		for i, item := range v {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = AppendObject(dst, item)
		}
		return append(dst, ']')
	case Dict:
		return appendDict(dst, v)
	case *Stream:
		dict := v.Dict.Clone()
		dict["Length"] = Int(len(v.Data))
		dst = appendDict(dst, dict)
		dst = append(dst, "\nstream\n"...)
		dst = append(dst, v.Data...)
		return append(dst, "\nendstream"...)
	case IndirectRef:
		dst = strconv.AppendInt(dst, int64(v.Number), 10)
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(v.Generation), 10)
		return append(dst, " R"...)
	default:
		return append(dst, "null"...)
	}
}

// AppendIndirectObject appends "num gen obj ... endobj" for obj.
func AppendIndirectObject(dst []byte, ref IndirectRef, obj Object) []byte {
	dst = strconv.AppendInt(dst, int64(ref.Number), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(ref.Generation), 10)
	dst = append(dst, " obj\n"...)
	dst = AppendObject(dst, obj)
	return append(dst, "\nendobj\n"...)
}

func appendDict(dst []byte, d Dict) []byte {
	dst = append(dst, "<<"...)
	for _, key := range d.Keys() {
		value := d[key]
		if IsNull(value) {
			continue
		}
		dst = appendName(dst, key)
		dst = append(dst, ' ')
		dst = AppendObject(dst, value)
		dst = append(dst, ' ')
	}
	return append(dst, ">>"...)
}

func appendReal(dst []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, '0')
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(dst, int64(f), 10)
	}
	return strconv.AppendFloat(dst, f, 'f', -1, 64)
}

// appendString writes printable data as a literal string and anything else
// as a hexadecimal string.
func appendString(dst []byte, s []byte) []byte {
	printable := true
	for _, b := range s {
		if b < 0x20 || b > 0x7e {
			printable = false
			break
		}
	}

	if !printable {
		const digits = "0123456789ABCDEF"
		dst = append(dst, '<')
		for _, b := range s {
			dst = append(dst, digits[b>>4], digits[b&0x0f])
		}
		return append(dst, '>')
	}

	dst = append(dst, '(')
	for _, b := range s {
		if b == '(' || b == ')' || b == '\\' {
			dst = append(dst, '\\')
		}
		dst = append(dst, b)
	}
	return append(dst, ')')
}

// appendName writes a name, escaping delimiters, '#' and bytes outside the
// printable range as #xx.
func appendName(dst []byte, name string) []byte {
	const digits = "0123456789ABCDEF"
	dst = append(dst, '/')
	for i := 0; i < len(name); i++ {
		b := name[i]
		if b < 0x21 || b > 0x7e || b == '#' || isDelimiter(b) {
			dst = append(dst, '#', digits[b>>4], digits[b&0x0f])
			continue
		}
		dst = append(dst, b)
	}
	return dst
}
