package writer

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/tsawler/pagesweep/core"
	"github.com/tsawler/pagesweep/pages"
	"github.com/tsawler/pagesweep/resolver"
)

// Fixed object numbers of the new document structure.
const (
	catalogNumber = 1
	pagesNumber   = 2
	firstCopied   = 3
)

// DefaultProducer is written to /Producer in the output /Info dictionary.
const DefaultProducer = "pagesweep"

// catalogKeys are the source catalog entries carried into the new catalog.
// Entries that point into the page tree (outlines, destinations, structure)
// are left behind.
var catalogKeys = []string{"Lang", "MarkInfo", "PageLayout", "PageMode", "ViewerPreferences"}

// Source is the document pages are copied from.
type Source interface {
	ResolveReference(ref core.IndirectRef) (core.Object, error)
	Resolve(obj core.Object) (core.Object, error)
}

// Writer builds a new document from a subset of a source document's pages.
type Writer struct {
	src      Source
	version  string
	info     core.Dict
	catalog  core.Dict
	producer string
	isNode   func(core.IndirectRef) bool
	dropped  map[int]bool

	pages    []*pages.Page
	warnings []string
}

// Option configures a Writer.
type Option func(*Writer)

// WithVersion sets the header version, e.g. "1.7".
func WithVersion(version string) Option {
	return func(w *Writer) {
		w.version = version
	}
}

// WithInfo copies a source /Info dictionary into the output.
func WithInfo(info core.Dict) Option {
	return func(w *Writer) {
		w.info = info
	}
}

// WithProducer overrides the /Producer written to /Info.
func WithProducer(producer string) Option {
	return func(w *Writer) {
		w.producer = producer
	}
}

// WithCatalog carries viewer settings from the source catalog.
func WithCatalog(catalog core.Dict) Option {
	return func(w *Writer) {
		w.catalog = catalog
	}
}

// WithPageTree tells the writer which source references are page tree
// nodes. References to them, such as a page's /Parent, point at the new
// flat page tree instead of being copied.
func WithPageTree(isNode func(core.IndirectRef) bool) Option {
	return func(w *Writer) {
		w.isNode = isNode
	}
}

// WithDroppedPages lists source pages left out of the output. References to
// them from copied objects become null.
func WithDroppedPages(refs ...core.IndirectRef) Option {
	return func(w *Writer) {
		for _, ref := range refs {
			w.dropped[ref.Number] = true
		}
	}
}

// New creates a writer copying from src.
func New(src Source, opts ...Option) *Writer {
	w := &Writer{
		src:      src,
		version:  "1.7",
		producer: DefaultProducer,
		dropped:  make(map[int]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddPage appends a page to the output. Pages are written in the order they
// are added.
func (w *Writer) AddPage(page *pages.Page) {
	w.pages = append(w.pages, page)
}

// PageCount returns the number of pages added so far.
func (w *Writer) PageCount() int {
	return len(w.pages)
}

// Warnings returns the problems met by the last Bytes or WriteTo call.
func (w *Writer) Warnings() []string {
	return w.warnings
}

// Bytes builds and serializes the output document.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo builds the output document and writes it to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	objects, size, infoNum, err := w.build()
	if err != nil {
		return 0, err
	}
	data := w.serialize(objects, size, infoNum)
	n, err := out.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("write output: %w", err)
	}
	return int64(n), nil
}

// build copies the kept pages and everything they reach into a new object
// table: the catalog, a flat page tree, the pages, then the copied objects.
func (w *Writer) build() (map[int]core.Object, int, int, error) {
	walker := resolver.NewWalker(w.src, firstCopied, resolver.WithRemap(w.remap))

	numbers := make([]int, len(w.pages))
	for i, page := range w.pages {
		if page == nil || page.Dict() == nil {
			return nil, 0, 0, fmt.Errorf("page %d has no dictionary", i+1)
		}
		if page.Ref.Number > 0 {
			numbers[i] = walker.Assign(page.Ref)
		} else {
			numbers[i] = walker.Reserve()
		}
	}

	kids := make(core.Array, len(w.pages))
	for i, page := range w.pages {
		dict := materialize(page)
		copied := walker.Rewrite(dict).(core.Dict)
		copied["Parent"] = core.IndirectRef{Number: pagesNumber}
		walker.Set(numbers[i], copied)
		kids[i] = core.IndirectRef{Number: numbers[i]}
	}

	infoNum := 0
	if w.info != nil {
		info := walker.Rewrite(w.info).(core.Dict)
		info["Producer"] = core.String(w.producer)
		infoNum = walker.Reserve()
		walker.Set(infoNum, info)
	}

	catalog := core.Dict{
		"Type":  core.Name("Catalog"),
		"Pages": core.IndirectRef{Number: pagesNumber},
	}
	for _, key := range catalogKeys {
		if v := w.catalog.Get(key); v != nil {
			catalog[key] = walker.Rewrite(v)
		}
	}

	walker.Run()
	w.warnings = walker.Warnings()

	objects := map[int]core.Object{
		catalogNumber: catalog,
		pagesNumber: core.Dict{
			"Type":  core.Name("Pages"),
			"Kids":  kids,
			"Count": core.Int(len(kids)),
		},
	}
	for _, e := range walker.Objects() {
		objects[e.Number] = e.Object
	}
	return objects, walker.Size(), infoNum, nil
}

// materialize returns a copy of the page dictionary with its inherited
// attributes written in and the old /Parent removed.
func materialize(page *pages.Page) core.Dict {
	dict := page.Dict().Clone()
	delete(dict, "Parent")
	for _, key := range pages.InheritableKeys {
		if _, ok := dict[key]; ok {
			continue
		}
		if v := page.Attr(key); v != nil {
			dict[key] = v
		}
	}
	return dict
}

func (w *Writer) remap(ref core.IndirectRef) (core.Object, bool) {
	if w.isNode != nil && w.isNode(ref) {
		return core.IndirectRef{Number: pagesNumber}, true
	}
	if w.dropped[ref.Number] {
		return core.Null{}, true
	}
	return nil, false
}

// serialize writes the objects with a classic cross-reference table.
// Numbers without an object are written as free entries.
func (w *Writer) serialize(objects map[int]core.Object, size, infoNum int) []byte {
	buf := make([]byte, 0, 4096)
	buf = append(buf, "%PDF-"...)
	buf = append(buf, w.version...)
	buf = append(buf, "\n%\xE2\xE3\xCF\xD3\n"...)

	offsets := make([]int, size)
	for n := 1; n < size; n++ {
		obj, ok := objects[n]
		if !ok {
			continue
		}
		offsets[n] = len(buf)
		buf = core.AppendIndirectObject(buf, core.IndirectRef{Number: n}, obj)
	}

	xrefOffset := len(buf)
	buf = append(buf, "xref\n0 "...)
	buf = strconv.AppendInt(buf, int64(size), 10)
	buf = append(buf, "\n0000000000 65535 f \n"...)
	for n := 1; n < size; n++ {
		if _, ok := objects[n]; !ok {
			buf = append(buf, "0000000000 00001 f \n"...)
			continue
		}
		buf = fmt.Appendf(buf, "%010d %05d n \n", offsets[n], 0)
	}

	trailer := core.Dict{
		"Size": core.Int(size),
		"Root": core.IndirectRef{Number: catalogNumber},
	}
	if infoNum > 0 {
		trailer["Info"] = core.IndirectRef{Number: infoNum}
	}
	buf = append(buf, "trailer\n"...)
	buf = core.AppendObject(buf, trailer)
	buf = append(buf, "\nstartxref\n"...)
	buf = strconv.AppendInt(buf, int64(xrefOffset), 10)
	buf = append(buf, "\n%%EOF\n"...)
	return buf
}
