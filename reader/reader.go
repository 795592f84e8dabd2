package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/tsawler/pagesweep/core"
	"github.com/tsawler/pagesweep/pages"
)

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var (
	// ErrEncrypted is returned when the trailer carries an /Encrypt entry.
	ErrEncrypted = errors.New("document is encrypted")
	// ErrObjectNotFound is returned when an object number has no usable
	// definition in the file.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNoHeader is returned when no %PDF- header is found near the start.
	ErrNoHeader = errors.New("missing %PDF- header")
)

var headerMarker = []byte("%PDF-")

// PDFVersion represents a PDF version
type PDFVersion struct {
	Major int
	Minor int
}

// String returns the version as a string (e.g., "1.7")
func (v PDFVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v is an older version than o.
func (v PDFVersion) Less(o PDFVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// Reader represents a PDF document held in memory. A Reader caches objects
// as they are loaded and is not safe for concurrent use.
type Reader struct {
	data         []byte
	headerOffset int64
	xrefTable    *core.XRefTable
	trailer      core.Dict
	version      PDFVersion
	objCache     map[int]core.Object // Cache for loaded objects
	objStreams   map[int]*core.ObjectStream
	resolving    map[int]bool
	scanned      *core.XRefTable // built on demand from object headers
	pageTree     *pages.PageTree // Cached page tree
	repaired     bool
}

// Ensure Reader implements pages.ObjectResolver
var _ pages.ObjectResolver = (*Reader)(nil)

// NewReaderFromBytes parses the structure of a PDF held in memory. The
// slice must not be modified while the Reader is in use.
func NewReaderFromBytes(data []byte) (*Reader, error) {
	r := &Reader{
		data:       data,
		objCache:   make(map[int]core.Object),
		objStreams: make(map[int]*core.ObjectStream),
		resolving:  make(map[int]bool),
	}

	version, err := r.parseHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	r.version = version

	if err := r.load(); err != nil {
		return nil, err
	}
	if r.trailer.Has("Encrypt") {
		return nil, ErrEncrypted
	}
	return r, nil
}

// Open reads a PDF file and returns a Reader over its contents.
func Open(filename string) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return NewReaderFromBytes(data)
}

// parseHeader locates %PDF-x.y within the first bytes of the file.
func (r *Reader) parseHeader() (PDFVersion, error) {
	window := r.data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	idx := bytes.Index(window, headerMarker)
	if idx < 0 {
		return PDFVersion{}, ErrNoHeader
	}
	r.headerOffset = int64(idx)

	rest := r.data[idx+len(headerMarker):]
	major, n := leadingInt(rest)
	if n == 0 || n >= len(rest) || rest[n] != '.' {
		return PDFVersion{}, fmt.Errorf("invalid version format: %q", truncate(rest, 8))
	}
	minor, m := leadingInt(rest[n+1:])
	if m == 0 {
		return PDFVersion{}, fmt.Errorf("invalid version format: %q", truncate(rest, 8))
	}
	return PDFVersion{Major: major, Minor: minor}, nil
}

func leadingInt(b []byte) (int, int) {
	v, i := 0, 0
	for i < len(b) && i < 4 && b[i] >= '0' && b[i] <= '9' {
		v = v*10 + int(b[i]-'0')
		i++
	}
	return v, i
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// load reads the cross-reference chain, falling back to a reconstructed
// table when the chain is missing, broken or does not lead to a catalog.
func (r *Reader) load() error {
	table, err := r.loadXRef()
	if err == nil {
		r.xrefTable = table
		r.trailer = table.Trailer
		if r.catalogUsable() {
			return nil
		}
	}

	r.repaired = true
	r.resetCaches()
	r.xrefTable = r.rebuildXRef()
	r.trailer = r.xrefTable.Trailer
	if !r.catalogUsable() {
		if err != nil {
			return fmt.Errorf("failed to load xref: %w", err)
		}
		return fmt.Errorf("no usable document catalog")
	}
	return nil
}

// loadXRef loads the cross-reference table and its incremental updates.
func (r *Reader) loadXRef() (*core.XRefTable, error) {
	tables, err := core.NewXRefParser(r.data).ParseAllXRefs()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref: %w", err)
	}
	return core.MergeXRefTables(tables...), nil
}

func (r *Reader) catalogUsable() bool {
	catalog, err := r.GetCatalog()
	return err == nil && catalog.Has("Pages")
}

func (r *Reader) resetCaches() {
	r.objCache = make(map[int]core.Object)
	r.objStreams = make(map[int]*core.ObjectStream)
	r.pageTree = nil
}

// rebuildXRef reconstructs the table from object headers. Objects held in
// object streams are registered as compressed entries, and the trailer is
// completed from xref stream dictionaries or a catalog search.
func (r *Reader) rebuildXRef() *core.XRefTable {
	table := r.scannedTable()
	rebuilt := core.NewXRefTable()
	for num, entry := range table.Entries {
		rebuilt.Set(num, entry)
	}
	for k, v := range table.Trailer {
		rebuilt.Trailer[k] = v
	}
	r.xrefTable = rebuilt

	type candidate struct {
		ref    core.IndirectRef
		offset int64
	}
	var catalogs []candidate

	for _, num := range sortedKeys(table.Entries) {
		entry := table.Entries[num]
		ind, err := r.parseAt(entry.Offset)
		if err != nil || ind.Ref.Number != num {
			continue
		}

		switch obj := ind.Object.(type) {
		case *core.Stream:
			switch typ, _ := obj.Dict.GetName("Type"); typ {
			case "ObjStm":
				r.registerObjectStream(rebuilt, num, obj)
			case "XRef":
				for _, key := range []string{"Root", "Info", "Encrypt", "ID"} {
					if !rebuilt.Trailer.Has(key) && obj.Dict.Has(key) {
						rebuilt.Trailer[key] = obj.Dict.Get(key)
					}
				}
			}
		case core.Dict:
			if typ, _ := obj.GetName("Type"); typ == "Catalog" && obj.Has("Pages") {
				catalogs = append(catalogs, candidate{core.IndirectRef{Number: num, Generation: entry.Generation}, entry.Offset})
			}
		}
	}

	if root, ok := rebuilt.Trailer.GetIndirectRef("Root"); ok {
		if _, found := rebuilt.Get(root.Number); !found {
			delete(rebuilt.Trailer, "Root")
		}
	}
	if !rebuilt.Trailer.Has("Root") && len(catalogs) > 0 {
		// The last catalog in file order belongs to the newest revision.
		sort.Slice(catalogs, func(i, j int) bool { return catalogs[i].offset < catalogs[j].offset })
		rebuilt.Trailer["Root"] = catalogs[len(catalogs)-1].ref
	}
	return rebuilt
}

// registerObjectStream adds compressed entries for the objects in an object
// stream. Objects defined directly in the file take precedence.
func (r *Reader) registerObjectStream(table *core.XRefTable, streamNum int, stream *core.Stream) {
	objStm, err := core.NewObjectStream(stream)
	if err != nil {
		return
	}
	nums, err := objStm.ObjectNumbers()
	if err != nil {
		return
	}
	r.objStreams[streamNum] = objStm
	for i, num := range nums {
		if _, exists := table.Get(num); exists {
			continue
		}
		table.Set(num, &core.XRefEntry{InUse: true, Compressed: true, StreamNumber: streamNum, StreamIndex: i})
	}
}

func sortedKeys(m map[int]*core.XRefEntry) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// scannedTable returns the table reconstructed from object headers,
// building it on first use.
func (r *Reader) scannedTable() *core.XRefTable {
	if r.scanned == nil {
		r.scanned = core.RebuildXRef(r.data)
	}
	return r.scanned
}

func (r *Reader) parseAt(offset int64) (*core.IndirectObject, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("offset %d outside file", offset)
	}
	parser := core.NewParserAt(r.data, offset)
	parser.SetReferenceResolver(r)
	return parser.ParseIndirectObject()
}

// Version returns the PDF version from the file header
func (r *Reader) Version() PDFVersion {
	return r.version
}

// Trailer returns the trailer dictionary
func (r *Reader) Trailer() core.Dict {
	return r.trailer
}

// Repaired reports whether the cross-reference data had to be
// reconstructed by scanning the file.
func (r *Reader) Repaired() bool {
	return r.repaired
}

// GetObject loads an object by its number
// Uses caching to avoid re-reading objects
func (r *Reader) GetObject(objNum int) (core.Object, error) {
	// Check cache first
	if obj, ok := r.objCache[objNum]; ok {
		return obj, nil
	}
	if r.resolving[objNum] {
		return nil, fmt.Errorf("object %d refers to itself while loading", objNum)
	}
	r.resolving[objNum] = true
	defer delete(r.resolving, objNum)

	obj, err := r.loadObject(objNum)
	if err != nil {
		return nil, err
	}
	r.objCache[objNum] = obj
	return obj, nil
}

func (r *Reader) loadObject(objNum int) (core.Object, error) {
	entry, ok := r.xrefTable.Get(objNum)
	if !ok || !entry.InUse {
		// A stale table may still miss objects present in the file.
		if scanned, found := r.scannedTable().Get(objNum); found && !r.repaired {
			return r.loadDirect(objNum, scanned.Offset)
		}
		return nil, fmt.Errorf("%w: %d", ErrObjectNotFound, objNum)
	}

	if entry.Compressed {
		return r.loadCompressed(objNum, entry)
	}
	return r.loadDirect(objNum, entry.Offset)
}

// loadDirect parses the object at offset. When the offset is wrong it
// retries relative to the header and then at the scanned position.
func (r *Reader) loadDirect(objNum int, offset int64) (core.Object, error) {
	candidates := []int64{offset}
	if r.headerOffset > 0 {
		candidates = append(candidates, offset+r.headerOffset)
	}
	if scanned, ok := r.scannedTable().Get(objNum); ok && scanned.Offset != offset {
		candidates = append(candidates, scanned.Offset)
	}

	var firstErr error
	for _, off := range candidates {
		ind, err := r.parseAt(off)
		if err == nil && ind.Ref.Number == objNum {
			return ind.Object, nil
		}
		if firstErr == nil {
			if err == nil {
				err = fmt.Errorf("object number mismatch: expected %d, got %d", objNum, ind.Ref.Number)
			}
			firstErr = err
		}
	}
	return nil, fmt.Errorf("failed to parse object %d: %w", objNum, firstErr)
}

func (r *Reader) loadCompressed(objNum int, entry *core.XRefEntry) (core.Object, error) {
	objStm, err := r.objectStream(entry.StreamNumber)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}

	obj, num, err := objStm.GetObjectByIndex(entry.StreamIndex)
	if err == nil && num == objNum {
		return obj, nil
	}
	// The index in the xref stream may be wrong; look the number up instead.
	obj, _, err = objStm.GetObjectByNumber(objNum)
	if err != nil {
		return nil, fmt.Errorf("%w: %d in object stream %d", ErrObjectNotFound, objNum, entry.StreamNumber)
	}
	return obj, nil
}

func (r *Reader) objectStream(streamNum int) (*core.ObjectStream, error) {
	if objStm, ok := r.objStreams[streamNum]; ok {
		return objStm, nil
	}
	obj, err := r.GetObject(streamNum)
	if err != nil {
		return nil, fmt.Errorf("failed to load object stream %d: %w", streamNum, err)
	}
	stream, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %T", streamNum, obj)
	}
	objStm, err := core.NewObjectStream(stream)
	if err != nil {
		return nil, err
	}
	r.objStreams[streamNum] = objStm
	return objStm, nil
}

// ResolveReference resolves an indirect reference
func (r *Reader) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return r.GetObject(ref.Number)
}

// Resolve resolves an object if it's an indirect reference, otherwise returns it as-is
// Implements pages.ObjectResolver interface
func (r *Reader) Resolve(obj core.Object) (core.Object, error) {
	if ref, ok := obj.(core.IndirectRef); ok {
		return r.ResolveReference(ref)
	}
	return obj, nil
}

// RootRef returns the catalog reference from the trailer.
func (r *Reader) RootRef() (core.IndirectRef, bool) {
	return r.trailer.GetIndirectRef("Root")
}

// GetCatalog returns the document catalog (root object)
func (r *Reader) GetCatalog() (core.Dict, error) {
	rootRef := r.trailer.Get("Root")
	if rootRef == nil {
		return nil, fmt.Errorf("trailer missing /Root entry")
	}

	ref, ok := rootRef.(core.IndirectRef)
	if !ok {
		return nil, fmt.Errorf("invalid /Root type: %T", rootRef)
	}

	obj, err := r.ResolveReference(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}

	catalog, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary: %T", obj)
	}
	return catalog, nil
}

// GetInfo returns the document info dictionary (metadata). A document
// without one returns nil and no error.
func (r *Reader) GetInfo() (core.Dict, error) {
	infoObj := r.trailer.Get("Info")
	if infoObj == nil {
		return nil, nil // Info is optional
	}

	obj, err := r.Resolve(infoObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve info: %w", err)
	}

	info, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("info is not a dictionary: %T", obj)
	}
	return info, nil
}

// NumObjects returns the /Size declared by the trailer
func (r *Reader) NumObjects() int {
	size, _ := r.trailer.GetInt("Size")
	return int(size)
}

// FileSize returns the size of the PDF in bytes
func (r *Reader) FileSize() int64 {
	return int64(len(r.data))
}

// XRefTable returns the cross-reference table
// Exposed for debugging/inspection
func (r *Reader) XRefTable() *core.XRefTable {
	return r.xrefTable
}

// ClearCache clears the object cache
// Useful for freeing memory when processing large PDFs
func (r *Reader) ClearCache() {
	r.objCache = make(map[int]core.Object)
}

// CacheSize returns the number of cached objects
func (r *Reader) CacheSize() int {
	return len(r.objCache)
}

// PageTree returns the document's page tree.
func (r *Reader) PageTree() (*pages.PageTree, error) {
	if err := r.ensurePageTree(); err != nil {
		return nil, err
	}
	return r.pageTree, nil
}

// PageCount returns the number of pages in the PDF
func (r *Reader) PageCount() (int, error) {
	if err := r.ensurePageTree(); err != nil {
		return 0, err
	}
	return r.pageTree.Count()
}

// GetPage returns the page at the given index (0-based)
func (r *Reader) GetPage(index int) (*pages.Page, error) {
	if err := r.ensurePageTree(); err != nil {
		return nil, err
	}
	return r.pageTree.GetPage(index)
}

// Pages returns every page in document order.
func (r *Reader) Pages() ([]*pages.Page, error) {
	if err := r.ensurePageTree(); err != nil {
		return nil, err
	}
	return r.pageTree.Pages()
}

// ensurePageTree loads the page tree if not already loaded
func (r *Reader) ensurePageTree() error {
	if r.pageTree != nil {
		return nil
	}

	catalogDict, err := r.GetCatalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	catalog := pages.NewCatalog(catalogDict, r)

	pagesDict, err := catalog.Pages()
	if err != nil {
		return err
	}
	pagesRef, _ := catalog.PagesRef()

	r.pageTree = pages.NewPageTree(pagesDict, pagesRef, r)
	return nil
}
