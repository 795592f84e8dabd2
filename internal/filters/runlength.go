package filters

import "fmt"

// RunLengthDecode decodes RunLengthDecode data. A length byte L in 0-127 is
// followed by L+1 literal bytes, 129-255 repeats the next byte 257-L times,
// and 128 marks end of data.
func RunLengthDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*2)

	i := 0
	for i < len(data) {
		l := int(data[i])
		i++

		switch {
		case l == 128:
			return out, nil
		case l < 128:
			n := l + 1
			if i+n > len(data) {
				return nil, fmt.Errorf("run length literal of %d bytes overruns data at offset %d", n, i)
			}
			out = append(out, data[i:i+n]...)
			i += n
		default:
			if i >= len(data) {
				return nil, fmt.Errorf("run length repeat missing its byte at offset %d", i)
			}
			b := data[i]
			i++
			for n := 257 - l; n > 0; n-- {
				out = append(out, b)
			}
		}
	}

	// Missing EOD is tolerated.
	return out, nil
}
