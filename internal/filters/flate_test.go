package filters

import (
	"bytes"
	"compress/zlib"
	"math/rand"
	"testing"
)

// zlibCompress compresses data for testing
func zlibCompress(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func TestFlateDecodeBasic(t *testing.T) {
	original := []byte("BT /F1 12 Tf 72 712 Td (Hello) Tj ET")

	tests := []struct {
		name   string
		params Params
	}{
		{"nil params", nil},
		{"predictor 1", Params{"Predictor": 1}},
		{"unrelated params", Params{"Columns": 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := FlateDecode(zlibCompress(original), tt.params)
			if err != nil {
				t.Fatalf("FlateDecode failed: %v", err)
			}
			if !bytes.Equal(decoded, original) {
				t.Errorf("got %q, want %q", decoded, original)
			}
		})
	}
}

func TestFlateDecodeTruncatedStream(t *testing.T) {
	// Incompressible input spans several deflate blocks, so a cut near the
	// end still leaves whole blocks to inflate.
	original := make([]byte, 100*1024)
	rand.New(rand.NewSource(1)).Read(original)
	compressed := zlibCompress(original)
	truncated := compressed[:len(compressed)-10]

	decoded, err := FlateDecode(truncated, nil)
	if err != nil {
		t.Fatalf("FlateDecode on truncated data failed: %v", err)
	}
	if len(decoded) == 0 || !bytes.HasPrefix(original, decoded) {
		t.Errorf("expected a non-empty prefix of the original, got %d bytes", len(decoded))
	}
}

func TestFlateDecodeInvalidZlib(t *testing.T) {
	if _, err := FlateDecode([]byte{0x00, 0x01, 0x02, 0x03}, nil); err == nil {
		t.Error("expected error for invalid zlib data")
	}
}

func TestPNGPredictors(t *testing.T) {
	params := Params{
		"Predictor":        12,
		"Columns":          3,
		"Colors":           1,
		"BitsPerComponent": 8,
	}

	tests := []struct {
		name string
		data []byte
		want []byte
	}{
		{
			name: "none",
			data: []byte{0, 1, 2, 3, 0, 4, 5, 6},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name: "sub",
			data: []byte{1, 10, 10, 10},
			want: []byte{10, 20, 30},
		},
		{
			name: "up",
			data: []byte{0, 10, 20, 30, 2, 5, 5, 5},
			want: []byte{10, 20, 30, 15, 25, 35},
		},
		{
			// row 2: 5+avg(0,10)=10, 5+avg(10,20)=20, 5+avg(20,30)=30
			name: "average",
			data: []byte{0, 10, 20, 30, 3, 5, 5, 5},
			want: []byte{10, 20, 30, 10, 20, 30},
		},
		{
			// paeth with zero residuals repeats the row above
			name: "paeth",
			data: []byte{0, 10, 20, 30, 4, 0, 0, 0},
			want: []byte{10, 20, 30, 10, 20, 30},
		},
		{
			name: "partial trailing row",
			data: []byte{0, 1, 2, 3, 2, 1},
			want: []byte{1, 2, 3, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := FlateDecode(zlibCompress(tt.data), params)
			if err != nil {
				t.Fatalf("FlateDecode failed: %v", err)
			}
			if !bytes.Equal(decoded, tt.want) {
				t.Errorf("got %v, want %v", decoded, tt.want)
			}
		})
	}
}

// Xref streams use /Columns equal to the sum of /W with the Up predictor.
func TestPNGPredictorXRefStreamRows(t *testing.T) {
	rows := [][]byte{
		{1, 0, 0x10, 0},
		{1, 0, 0x20, 0},
		{2, 0, 0x05, 1},
	}
	var encoded []byte
	prev := make([]byte, 4)
	for _, row := range rows {
		encoded = append(encoded, 2)
		for i := range row {
			encoded = append(encoded, row[i]-prev[i])
		}
		prev = row
	}

	decoded, err := FlateDecode(zlibCompress(encoded), Params{"Predictor": 12, "Columns": 4})
	if err != nil {
		t.Fatalf("FlateDecode failed: %v", err)
	}
	want := bytes.Join(rows, nil)
	if !bytes.Equal(decoded, want) {
		t.Errorf("got %v, want %v", decoded, want)
	}
}

func TestPNGPredictorUnknownTag(t *testing.T) {
	data := []byte{7, 1, 2, 3}
	_, err := FlateDecode(zlibCompress(data), Params{"Predictor": 10, "Columns": 3})
	if err == nil {
		t.Error("expected error for unknown row tag")
	}
}

func TestTIFFPredictor2(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		data   []byte
		want   []byte
	}{
		{
			name:   "gray",
			params: Params{"Predictor": 2, "Columns": 4},
			data:   []byte{10, 10, 10, 10},
			want:   []byte{10, 20, 30, 40},
		},
		{
			name:   "two rows reset at row start",
			params: Params{"Predictor": 2, "Columns": 2},
			data:   []byte{5, 1, 7, 2},
			want:   []byte{5, 6, 7, 9},
		},
		{
			name:   "rgb",
			params: Params{"Predictor": 2, "Columns": 2, "Colors": 3},
			data:   []byte{1, 2, 3, 1, 1, 1},
			want:   []byte{1, 2, 3, 2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := FlateDecode(zlibCompress(tt.data), tt.params)
			if err != nil {
				t.Fatalf("FlateDecode failed: %v", err)
			}
			if !bytes.Equal(decoded, tt.want) {
				t.Errorf("got %v, want %v", decoded, tt.want)
			}
		})
	}
}

func TestPredictorErrors(t *testing.T) {
	compressed := zlibCompress([]byte{0, 1, 2, 3})

	tests := []struct {
		name   string
		params Params
	}{
		{"unsupported predictor", Params{"Predictor": 99}},
		{"unsupported bits per component", Params{"Predictor": 10, "Columns": 3, "BitsPerComponent": 3}},
		{"tiff with 16 bits", Params{"Predictor": 2, "Columns": 2, "BitsPerComponent": 16}},
		{"zero columns", Params{"Predictor": 10, "Columns": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FlateDecode(compressed, tt.params); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPaethPredictor(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  byte
		expected byte
	}{
		{"upper-left exact", 10, 20, 15, 15}, // p=15, pc=0
		{"symmetric", 20, 10, 15, 15},
		{"above closest", 15, 20, 10, 20}, // p=25, pb=5
		{"all zero", 0, 0, 0, 0},
		{"all same", 10, 10, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := paethPredictor(tt.a, tt.b, tt.c); got != tt.expected {
				t.Errorf("paethPredictor(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.c, got, tt.expected)
			}
		})
	}
}

func TestGetIntParam(t *testing.T) {
	params := Params{
		"Columns": 100,
		"Colors":  int64(3),
		"Float":   float64(7),
		"Name":    "x",
	}

	tests := []struct {
		key  string
		def  int
		want int
	}{
		{"Columns", 1, 100},
		{"Colors", 1, 3},
		{"Float", 1, 7},
		{"Name", 5, 5},
		{"Missing", 42, 42},
	}
	for _, tt := range tests {
		if got := getIntParam(params, tt.key, tt.def); got != tt.want {
			t.Errorf("getIntParam(%s) = %d, want %d", tt.key, got, tt.want)
		}
	}

	if got := getIntParam(nil, "Any", 99); got != 99 {
		t.Errorf("getIntParam(nil) = %d, want 99", got)
	}
}
