package filters

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// Params represents decode parameters from PDF stream dictionaries.
// Common parameters include Predictor, Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// FlateDecode decompresses Flate (zlib/deflate) compressed data and then
// undoes the predictor named in params, if any.
//
// Streams cut short by a damaged file are common; when the zlib stream ends
// early the bytes inflated so far are returned without error.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	decompressed, err := zlibDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}

	predictor := getIntParam(params, "Predictor", 1)
	if predictor == 1 {
		return decompressed, nil
	}

	out, err := applyPredictor(decompressed, predictor, params)
	if err != nil {
		return nil, fmt.Errorf("predictor failed: %w", err)
	}
	return out, nil
}

// zlibDecompress inflates data. A truncated stream yields its prefix.
func zlibDecompress(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, reader)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) && buf.Len() > 0 {
			return buf.Bytes(), nil
		}
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}

	return buf.Bytes(), nil
}

// predictorLayout describes the sample geometry a predictor operates on.
type predictorLayout struct {
	bytesPerPixel int // distance to the "left" byte, at least 1
	rowLength     int // bytes per row without the PNG tag byte
}

func layoutFor(params Params) (predictorLayout, error) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	bpc := getIntParam(params, "BitsPerComponent", 8)

	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return predictorLayout{}, fmt.Errorf("unsupported BitsPerComponent %d", bpc)
	}
	if columns < 1 || colors < 1 {
		return predictorLayout{}, fmt.Errorf("invalid predictor geometry: Columns=%d Colors=%d", columns, colors)
	}

	bpp := (colors*bpc + 7) / 8
	if bpp < 1 {
		bpp = 1
	}
	return predictorLayout{
		bytesPerPixel: bpp,
		rowLength:     (columns*colors*bpc + 7) / 8,
	}, nil
}

// applyPredictor reverses prediction. Predictor 2 is TIFF Predictor 2 and
// 10-15 are the PNG predictors, where each row carries its own filter tag.
func applyPredictor(data []byte, predictor int, params Params) ([]byte, error) {
	layout, err := layoutFor(params)
	if err != nil {
		return nil, err
	}

	switch {
	case predictor == 2:
		if getIntParam(params, "BitsPerComponent", 8) != 8 {
			return nil, fmt.Errorf("TIFF Predictor 2 only supports 8 bits per component")
		}
		return applyTIFFPredictor2(data, layout), nil
	case predictor >= 10 && predictor <= 15:
		return applyPNGPredictor(data, layout)
	default:
		return nil, fmt.Errorf("unsupported predictor: %d", predictor)
	}
}

// applyTIFFPredictor2 adds each sample to the sample one pixel to its left.
func applyTIFFPredictor2(data []byte, layout predictorLayout) []byte {
	result := make([]byte, len(data))
	copy(result, data)

	for rowStart := 0; rowStart < len(result); rowStart += layout.rowLength {
		rowEnd := rowStart + layout.rowLength
		if rowEnd > len(result) {
			rowEnd = len(result)
		}
		for i := rowStart + layout.bytesPerPixel; i < rowEnd; i++ {
			result[i] += result[i-layout.bytesPerPixel]
		}
	}
	return result
}

// applyPNGPredictor undoes PNG row filtering. A trailing partial row is
// decoded as far as it goes.
func applyPNGPredictor(data []byte, layout predictorLayout) ([]byte, error) {
	stride := layout.rowLength + 1
	result := make([]byte, 0, len(data)/stride*layout.rowLength+layout.rowLength)
	prev := make([]byte, layout.rowLength)
	cur := make([]byte, layout.rowLength)

	for row := 0; row*stride < len(data); row++ {
		start := row * stride
		end := start + stride
		if end > len(data) {
			end = len(data)
		}
		tag := data[start]
		raw := data[start+1 : end]

		for i := range cur {
			cur[i] = 0
		}
		if err := decodePNGRow(cur[:len(raw)], raw, prev, tag, layout.bytesPerPixel); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", row, err)
		}
		result = append(result, cur[:len(raw)]...)
		prev, cur = cur, prev
	}

	return result, nil
}

// decodePNGRow reconstructs one row into dst. Tags: 0=None, 1=Sub, 2=Up,
// 3=Average, 4=Paeth.
func decodePNGRow(dst, raw, prev []byte, tag byte, bpp int) error {
	for i := range raw {
		var left, upLeft byte
		if i >= bpp {
			left = dst[i-bpp]
			upLeft = prev[i-bpp]
		}
		up := prev[i]

		switch tag {
		case 0:
			dst[i] = raw[i]
		case 1:
			dst[i] = raw[i] + left
		case 2:
			dst[i] = raw[i] + up
		case 3:
			dst[i] = raw[i] + byte((int(left)+int(up))/2)
		case 4:
			dst[i] = raw[i] + paethPredictor(left, up, upLeft)
		default:
			return fmt.Errorf("unknown PNG predictor: %d", tag)
		}
	}
	return nil
}

// paethPredictor picks whichever of left (a), above (b) or upper-left (c)
// is closest to a+b-c.
func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

// getIntParam extracts an integer parameter from Params, returning defaultValue
// if the parameter is missing or cannot be converted to an integer.
func getIntParam(params Params, key string, defaultValue int) int {
	if params == nil {
		return defaultValue
	}

	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
