package filters

import (
	"bytes"
	"fmt"
)

// ASCIIHexDecode decodes ASCII hexadecimal encoded data.
// Whitespace is ignored and '>' marks end of data. An odd final digit is
// treated as if followed by 0.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)

	var hi byte
	haveHi := false
	for _, c := range data {
		if isWhitespace(c) {
			continue
		}
		if c == '>' {
			break
		}
		v, err := hexDigitToByte(c)
		if err != nil {
			return nil, err
		}
		if !haveHi {
			hi, haveHi = v, true
			continue
		}
		out = append(out, hi<<4|v)
		haveHi = false
	}
	if haveHi {
		out = append(out, hi<<4)
	}

	return out, nil
}

// ASCII85Decode decodes ASCII base-85 encoded data. 'z' stands for four
// zero bytes and "~>" ends the data. A leading "<~" is accepted.
func ASCII85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimLeft(data, " \t\r\n\f\x00")
	data = bytes.TrimPrefix(data, []byte("<~"))

	out := make([]byte, 0, len(data)*4/5)
	var group [5]byte
	n := 0

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case isWhitespace(c):
			continue
		case c == '~':
			// end of data; the '>' is optional in damaged streams
			i = len(data)
			continue
		case c == 'z' && n == 0:
			out = append(out, 0, 0, 0, 0)
			continue
		case c < '!' || c > 'u':
			return nil, fmt.Errorf("invalid ASCII85 character: %c", c)
		}

		group[n] = c - '!'
		n++
		if n == 5 {
			out = appendBase85Group(out, group, 4)
			n = 0
		}
	}

	if n == 1 {
		return nil, fmt.Errorf("ASCII85 data ends with a single-character group")
	}
	if n > 1 {
		// Pad with the highest digit and keep n-1 bytes.
		for j := n; j < 5; j++ {
			group[j] = 84
		}
		out = appendBase85Group(out, group, n-1)
	}

	return out, nil
}

func appendBase85Group(out []byte, group [5]byte, keep int) []byte {
	var v uint32
	for _, d := range group {
		v = v*85 + uint32(d)
	}
	for j := 0; j < keep; j++ {
		out = append(out, byte(v>>(24-8*j)))
	}
	return out
}

// hexDigitToByte converts a hexadecimal character to its numeric value (0-15).
func hexDigitToByte(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit: %c", c)
	}
}

// isWhitespace reports whether c is a PDF whitespace character.
func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}
