package core

import (
	"errors"
	"fmt"

	"github.com/tsawler/pagesweep/internal/filters"
)

// ErrUnsupportedFilter is wrapped by Decode when a stream uses a filter this
// package cannot decode (image codecs, LZW, Crypt).
var ErrUnsupportedFilter = errors.New("unsupported stream filter")

// Decode decodes the stream data according to the Filter(s) specified in the
// stream dictionary, applying filter chains in order.
func (s *Stream) Decode() ([]byte, error) {
	names, params, err := s.filterChain()
	if err != nil {
		return nil, err
	}

	data := s.Data
	for i, name := range names {
		data, err = decodeWithFilter(data, name, params[i])
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s) failed: %w", i, name, err)
		}
	}
	return data, nil
}

// Filters returns the stream's filter names in application order.
func (s *Stream) Filters() []string {
	names, _, _ := s.filterChain()
	return names
}

// filterChain normalizes /Filter and /DecodeParms into parallel slices.
func (s *Stream) filterChain() ([]string, []Dict, error) {
	var names []string
	switch f := s.Dict.Get("Filter").(type) {
	case nil, Null:
		return nil, nil, nil
	case Name:
		names = []string{string(f)}
	case Array:
		for i, item := range f {
			n, ok := item.(Name)
			if !ok {
				return nil, nil, fmt.Errorf("filter %d is not a name: %T", i, item)
			}
			names = append(names, string(n))
		}
	default:
		return nil, nil, fmt.Errorf("invalid Filter type: %T", f)
	}

	params := make([]Dict, len(names))
	switch p := s.Dict.Get("DecodeParms").(type) {
	case Dict:
		params[0] = p
	case Array:
		for i := range names {
			if i < len(p) {
				params[i], _ = p[i].(Dict)
			}
		}
	}
	return names, params, nil
}

// decodeWithFilter applies a single filter, accepting the abbreviated names
// used in inline images.
func decodeWithFilter(data []byte, filterName string, params Dict) ([]byte, error) {
	switch filterName {
	case "FlateDecode", "Fl":
		return filters.FlateDecode(data, dictToParams(params))
	case "ASCIIHexDecode", "AHx":
		return filters.ASCIIHexDecode(data)
	case "ASCII85Decode", "A85":
		return filters.ASCII85Decode(data)
	case "RunLengthDecode", "RL":
		return filters.RunLengthDecode(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, filterName)
	}
}

// dictToParams converts a Dict to filters.Params, translating PDF object
// types to Go primitive types.
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}

	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}
