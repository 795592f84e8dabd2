package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/pagesweep/core"
)

// pdfBuilder assembles test files and tracks object offsets.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFBuilder(prefix string) *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	b.buf.WriteString(prefix)
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// xref writes a classic section listing nums, followed by the trailer,
// and returns the section offset.
func (b *pdfBuilder) xref(trailer string, nums ...int) int {
	off := b.buf.Len()
	b.buf.WriteString("xref\n0 1\n0000000000 65535 f \n")
	for _, n := range nums {
		fmt.Fprintf(&b.buf, "%d 1\n%010d 00000 n \n", n, b.offsets[n])
	}
	fmt.Fprintf(&b.buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, off)
	return off
}

func (b *pdfBuilder) bytes() []byte { return b.buf.Bytes() }

const (
	catalogObj = "<< /Type /Catalog /Pages 2 0 R >>"
	pagesObj   = "<< /Type /Pages /Kids [3 0 R] /Count 1 >>"
)

func pageObj(width int) string {
	return fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 100] >>", width)
}

// onePagePDF builds a single-page document with an info dictionary.
func onePagePDF() []byte {
	b := newPDFBuilder("%PDF-1.7\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(100))
	b.obj(4, "<< /Title (Test Document) /Author (Test Author) >>")
	b.xref("<< /Size 5 /Root 1 0 R /Info 4 0 R >>", 1, 2, 3, 4)
	return b.bytes()
}

func mustReader(t *testing.T, data []byte) *Reader {
	t.Helper()
	r, err := NewReaderFromBytes(data)
	if err != nil {
		t.Fatalf("NewReaderFromBytes failed: %v\n%s", err, data)
	}
	return r
}

func pageWidth(t *testing.T, r *Reader, index int) float64 {
	t.Helper()
	page, err := r.GetPage(index)
	if err != nil {
		t.Fatalf("GetPage(%d) failed: %v", index, err)
	}
	w, err := page.Width()
	if err != nil {
		t.Fatalf("Width() failed: %v", err)
	}
	return w
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pdf")
	if err := os.WriteFile(path, onePagePDF(), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if r.Version().String() != "1.7" {
		t.Errorf("Version() = %s", r.Version())
	}
	if n, err := r.PageCount(); err != nil || n != 1 {
		t.Errorf("PageCount() = %d, %v", n, err)
	}
	if r.Repaired() {
		t.Error("well-formed file reported as repaired")
	}
	if r.NumObjects() != 5 {
		t.Errorf("NumObjects() = %d", r.NumObjects())
	}
	if r.FileSize() != int64(len(onePagePDF())) {
		t.Errorf("FileSize() = %d", r.FileSize())
	}
}

func TestOpenNonExistent(t *testing.T) {
	if _, err := Open("/nonexistent/file.pdf"); err == nil {
		t.Error("expected error when opening non-existent file")
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"PDF 1.4", []byte("%PDF-1.4\n"), "1.4", false},
		{"PDF 2.0", []byte("%PDF-2.0\r"), "2.0", false},
		{"junk before header", []byte("\x00\x00garbage\n%PDF-1.6\n"), "1.6", false},
		{"header past window", append(bytes.Repeat([]byte(" "), headerWindow), "%PDF-1.4\n"...), "", true},
		{"no header", []byte("hello world"), "", true},
		{"bad version", []byte("%PDF-x.y\n"), "", true},
		{"missing minor", []byte("%PDF-1.\n"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Reader{data: tt.data}
			v, err := r.parseHeader()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v.String() != tt.want {
				t.Errorf("version = %s, want %s", v, tt.want)
			}
		})
	}

	if _, err := NewReaderFromBytes([]byte("not a pdf")); !errors.Is(err, ErrNoHeader) {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}
}

func TestVersionLess(t *testing.T) {
	if !(PDFVersion{1, 4}).Less(PDFVersion{1, 7}) || (PDFVersion{2, 0}).Less(PDFVersion{1, 7}) {
		t.Error("Less ordering wrong")
	}
}

func TestCatalogAndInfo(t *testing.T) {
	r := mustReader(t, onePagePDF())

	catalog, err := r.GetCatalog()
	if err != nil {
		t.Fatalf("GetCatalog() failed: %v", err)
	}
	if typ, _ := catalog.GetName("Type"); typ != "Catalog" {
		t.Errorf("catalog type = %s", typ)
	}
	if ref, ok := r.RootRef(); !ok || ref.Number != 1 {
		t.Errorf("RootRef() = %v, %v", ref, ok)
	}

	info, err := r.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo() failed: %v", err)
	}
	if title, _ := info.GetString("Title"); title != "Test Document" {
		t.Errorf("Title = %q", title)
	}
}

func TestGetInfoAbsent(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(10))
	b.xref("<< /Size 4 /Root 1 0 R >>", 1, 2, 3)

	info, err := mustReader(t, b.bytes()).GetInfo()
	if err != nil || info != nil {
		t.Errorf("GetInfo() = %v, %v", info, err)
	}
}

func TestIncrementalUpdate(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(100))
	first := b.xref("<< /Size 4 /Root 1 0 R >>", 1, 2, 3)
	b.obj(3, pageObj(200))
	b.xref(fmt.Sprintf("<< /Size 4 /Root 1 0 R /Prev %d >>", first), 3)

	r := mustReader(t, b.bytes())
	if w := pageWidth(t, r, 0); w != 200 {
		t.Errorf("width = %v, want the updated 200", w)
	}
	if r.Repaired() {
		t.Error("incremental update should not need repair")
	}
}

// xrefStreamPDF stores the page tree in an object stream and indexes the
// file with an uncompressed xref stream.
func xrefStreamPDF() []byte {
	b := newPDFBuilder("%PDF-1.5\n")
	b.obj(1, catalogObj)

	obj2 := pagesObj
	obj3 := pageObj(300)
	header := fmt.Sprintf("2 0 3 %d ", len(obj2)+1)
	body := obj2 + " " + obj3
	b.obj(4, fmt.Sprintf("<< /Type /ObjStm /N 2 /First %d /Length %d >>\nstream\n%s%s\nendstream",
		len(header), len(header)+len(body), header, body))

	row := func(typ byte, f2 uint32, f3 uint16) []byte {
		return []byte{typ, byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2), byte(f3 >> 8), byte(f3)}
	}
	xrefOffset := b.buf.Len()
	var rows []byte
	rows = append(rows, row(0, 0, 65535)...)
	rows = append(rows, row(1, uint32(b.offsets[1]), 0)...)
	rows = append(rows, row(2, 4, 0)...)
	rows = append(rows, row(2, 4, 1)...)
	rows = append(rows, row(1, uint32(b.offsets[4]), 0)...)
	rows = append(rows, row(1, uint32(xrefOffset), 0)...)

	fmt.Fprintf(&b.buf, "5 0 obj\n<< /Type /XRef /Size 6 /W [1 4 2] /Root 1 0 R /Length %d >>\nstream\n", len(rows))
	b.buf.Write(rows)
	fmt.Fprintf(&b.buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOffset)
	return b.bytes()
}

func TestXRefStreamWithObjectStream(t *testing.T) {
	r := mustReader(t, xrefStreamPDF())

	if r.Repaired() {
		t.Error("xref stream file reported as repaired")
	}
	if n, err := r.PageCount(); err != nil || n != 1 {
		t.Fatalf("PageCount() = %d, %v", n, err)
	}
	if w := pageWidth(t, r, 0); w != 300 {
		t.Errorf("width = %v", w)
	}
	entry, ok := r.XRefTable().Get(3)
	if !ok || !entry.Compressed || entry.StreamNumber != 4 {
		t.Errorf("entry 3 = %+v", entry)
	}
}

func TestRecoverBrokenXRefStreamFile(t *testing.T) {
	data := xrefStreamPDF()
	// Point startxref at nothing; Root must come from the xref stream
	// dictionary and objects 2 and 3 from the object stream.
	idx := bytes.LastIndex(data, []byte("startxref"))
	broken := append(append([]byte{}, data[:idx]...), "startxref\n7\n%%EOF\n"...)

	r := mustReader(t, broken)
	if !r.Repaired() {
		t.Error("expected repair")
	}
	if w := pageWidth(t, r, 0); w != 300 {
		t.Errorf("width = %v", w)
	}
}

func TestRecoverBrokenStartxref(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(50))
	b.buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n99999\n%%EOF\n")

	r := mustReader(t, b.bytes())
	if !r.Repaired() {
		t.Error("expected repair")
	}
	if w := pageWidth(t, r, 0); w != 50 {
		t.Errorf("width = %v", w)
	}
}

func TestRecoverWithoutTrailer(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R /Version /1.4 >>")
	b.obj(2, pagesObj)
	b.obj(3, pageObj(60))
	b.obj(1, catalogObj) // newer catalog
	b.buf.WriteString("%%EOF\n")

	r := mustReader(t, b.bytes())
	root, ok := r.RootRef()
	if !ok || root.Number != 1 {
		t.Fatalf("RootRef() = %v, %v", root, ok)
	}
	catalog, _ := r.GetCatalog()
	if catalog.Has("Version") {
		t.Error("expected the later catalog definition")
	}
	if w := pageWidth(t, r, 0); w != 60 {
		t.Errorf("width = %v", w)
	}
}

func TestUnrecoverable(t *testing.T) {
	if _, err := NewReaderFromBytes([]byte("%PDF-1.4\n1 0 obj\n(just a string)\nendobj\n%%EOF")); err == nil {
		t.Error("expected error for file without catalog")
	}
}

func TestWrongOffsetFallsBackToScan(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(70))
	b.offsets[3] += 7
	b.xref("<< /Size 4 /Root 1 0 R >>", 1, 2, 3)

	r := mustReader(t, b.bytes())
	if r.Repaired() {
		t.Error("a single bad offset should not force a full repair")
	}
	if w := pageWidth(t, r, 0); w != 70 {
		t.Errorf("width = %v", w)
	}
}

func TestEncrypted(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(10))
	b.obj(4, "<< /Filter /Standard /V 2 /R 3 >>")
	b.xref("<< /Size 5 /Root 1 0 R /Encrypt 4 0 R >>", 1, 2, 3, 4)

	if _, err := NewReaderFromBytes(b.bytes()); !errors.Is(err, ErrEncrypted) {
		t.Errorf("expected ErrEncrypted, got %v", err)
	}
}

func TestGetObject(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, pagesObj)
	b.obj(3, pageObj(10))
	b.obj(4, "<< /Length 4 0 R >>\nstream\nabc\nendstream")
	b.obj(5, "<< /Length 6 0 R >>\nstream\nxyz\nendstream")
	b.obj(6, "3")
	b.xref("<< /Size 7 /Root 1 0 R >>", 1, 2, 3, 4, 5, 6)
	r := mustReader(t, b.bytes())

	t.Run("missing object", func(t *testing.T) {
		_, err := r.GetObject(99)
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("self-referential length", func(t *testing.T) {
		obj, err := r.GetObject(4)
		if err != nil {
			t.Fatalf("GetObject(4) failed: %v", err)
		}
		if s := obj.(*core.Stream); string(s.Data) != "abc" {
			t.Errorf("data = %q", s.Data)
		}
	})

	t.Run("indirect length", func(t *testing.T) {
		obj, err := r.GetObject(5)
		if err != nil {
			t.Fatalf("GetObject(5) failed: %v", err)
		}
		if s := obj.(*core.Stream); string(s.Data) != "xyz" {
			t.Errorf("data = %q", s.Data)
		}
	})

	t.Run("resolve passes direct objects through", func(t *testing.T) {
		obj, err := r.Resolve(core.Int(7))
		if err != nil || obj != core.Int(7) {
			t.Errorf("Resolve = %v, %v", obj, err)
		}
	})
}

func TestCache(t *testing.T) {
	r := mustReader(t, onePagePDF())
	if _, err := r.GetObject(4); err != nil {
		t.Fatal(err)
	}
	if r.CacheSize() == 0 {
		t.Error("expected cached objects")
	}
	r.ClearCache()
	if r.CacheSize() != 0 {
		t.Errorf("CacheSize() = %d after ClearCache", r.CacheSize())
	}
	if _, err := r.GetObject(4); err != nil {
		t.Errorf("GetObject after ClearCache failed: %v", err)
	}
}

func TestPagesAndTree(t *testing.T) {
	b := newPDFBuilder("%PDF-1.4\n")
	b.obj(1, catalogObj)
	b.obj(2, "<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 40 40] >>")
	b.obj(3, "<< /Type /Page /Parent 2 0 R >>")
	b.obj(4, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 80 80] >>")
	b.xref("<< /Size 5 /Root 1 0 R >>", 1, 2, 3, 4)
	r := mustReader(t, b.bytes())

	all, err := r.Pages()
	if err != nil || len(all) != 2 {
		t.Fatalf("Pages() = %v, %v", all, err)
	}
	if w := pageWidth(t, r, 0); w != 40 {
		t.Errorf("inherited width = %v", w)
	}
	if w := pageWidth(t, r, 1); w != 80 {
		t.Errorf("own width = %v", w)
	}
	tree, err := r.PageTree()
	if err != nil || !tree.IsNode(core.IndirectRef{Number: 2}) {
		t.Errorf("PageTree() = %v, %v", tree, err)
	}
	if _, err := r.GetPage(2); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("GetPage(2) error = %v", err)
	}
}
