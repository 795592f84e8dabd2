package pages

import (
	"bytes"
	"fmt"

	"github.com/tsawler/pagesweep/core"
)

// ObjectResolver interface for resolving indirect references
type ObjectResolver interface {
	Resolve(obj core.Object) (core.Object, error)
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// InheritableKeys are the page attributes a page picks up from its ancestors
// when it does not define them itself.
var InheritableKeys = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// maxTreeDepth bounds page tree nesting.
const maxTreeDepth = 256

// Catalog represents the PDF document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver ObjectResolver
}

// NewCatalog creates a new catalog from a dictionary
func NewCatalog(dict core.Dict, resolver ObjectResolver) *Catalog {
	return &Catalog{
		dict:     dict,
		resolver: resolver,
	}
}

// Type returns the catalog type (should be "Catalog")
func (c *Catalog) Type() string {
	name, _ := c.dict.GetName("Type")
	return string(name)
}

// Version returns the /Version entry if present
func (c *Catalog) Version() string {
	name, _ := c.dict.GetName("Version")
	return string(name)
}

// PagesRef returns the indirect reference to the page tree root, if the
// catalog stores it indirectly.
func (c *Catalog) PagesRef() (core.IndirectRef, bool) {
	return c.dict.GetIndirectRef("Pages")
}

// Pages returns the page tree root dictionary
func (c *Catalog) Pages() (core.Dict, error) {
	pagesObj := c.dict.Get("Pages")
	if pagesObj == nil {
		return nil, fmt.Errorf("catalog missing /Pages entry")
	}

	resolved, err := c.resolver.Resolve(pagesObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Pages: %w", err)
	}

	pagesDict, ok := resolved.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid /Pages type: %T", resolved)
	}
	return pagesDict, nil
}

// PageTree represents the PDF page tree
type PageTree struct {
	root     core.Dict
	rootRef  core.IndirectRef
	resolver ObjectResolver

	pages    []*Page
	nodeRefs map[core.IndirectRef]bool // Pages nodes seen during traversal
	skipped  []string
}

// NewPageTree creates a new page tree from the root pages dictionary.
// rootRef may be the zero value when the root is a direct object.
func NewPageTree(root core.Dict, rootRef core.IndirectRef, resolver ObjectResolver) *PageTree {
	return &PageTree{
		root:     root,
		rootRef:  rootRef,
		resolver: resolver,
	}
}

// Count returns the number of pages found by walking the tree. The /Count
// entries of intermediate nodes are not trusted.
func (t *PageTree) Count() (int, error) {
	pages, err := t.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// DeclaredCount returns the root's /Count entry.
func (t *PageTree) DeclaredCount() (int, bool) {
	n, ok := t.root.GetInt("Count")
	return int(n), ok
}

// GetPage returns the page at the given index (0-based)
func (t *PageTree) GetPage(index int) (*Page, error) {
	pages, err := t.Pages()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(pages))
	}
	return pages[index], nil
}

// Pages returns all pages in document order.
func (t *PageTree) Pages() ([]*Page, error) {
	if t.pages == nil {
		if err := t.loadPages(); err != nil {
			return nil, err
		}
	}
	return t.pages, nil
}

// IsNode reports whether ref names an intermediate /Pages node of this tree.
func (t *PageTree) IsNode(ref core.IndirectRef) bool {
	if t.pages == nil {
		if err := t.loadPages(); err != nil {
			return false
		}
	}
	return t.nodeRefs[ref]
}

// Skipped describes kids that were ignored during traversal because they
// could not be resolved or formed a cycle.
func (t *PageTree) Skipped() []string {
	return t.skipped
}

func (t *PageTree) loadPages() error {
	t.pages = make([]*Page, 0)
	t.nodeRefs = make(map[core.IndirectRef]bool)
	t.skipped = nil

	visiting := make(map[core.IndirectRef]bool)
	if t.rootRef != (core.IndirectRef{}) {
		visiting[t.rootRef] = true
		t.nodeRefs[t.rootRef] = true
	}

	if err := t.traversePageNode(t.root, core.Dict{}, visiting, 0); err != nil {
		t.pages = nil
		return fmt.Errorf("failed to traverse page tree: %w", err)
	}
	return nil
}

// traversePageNode walks an intermediate node. inherited holds the
// inheritable attributes accumulated from its ancestors.
func (t *PageTree) traversePageNode(node core.Dict, inherited core.Dict, visiting map[core.IndirectRef]bool, depth int) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("page tree deeper than %d levels", maxTreeDepth)
	}

	scope := inherited.Clone()
	for _, key := range InheritableKeys {
		if v := node.Get(key); !core.IsNull(v) {
			scope[key] = v
		}
	}

	kidsObj, err := t.resolver.Resolve(node.Get("Kids"))
	if err != nil {
		return fmt.Errorf("failed to resolve /Kids: %w", err)
	}
	kids, _ := kidsObj.(core.Array)

	for i, kid := range kids {
		ref, isRef := kid.(core.IndirectRef)
		if isRef && visiting[ref] {
			t.skipped = append(t.skipped, fmt.Sprintf("page tree cycle at object %d", ref.Number))
			continue
		}

		resolved, err := t.resolver.Resolve(kid)
		if err != nil {
			t.skipped = append(t.skipped, fmt.Sprintf("kid %d unreadable: %v", i, err))
			continue
		}
		kidDict, ok := resolved.(core.Dict)
		if !ok {
			t.skipped = append(t.skipped, fmt.Sprintf("kid %d is %T, not a dictionary", i, resolved))
			continue
		}

		if !isPagesNode(kidDict) {
			t.pages = append(t.pages, &Page{
				Ref:       ref,
				Number:    len(t.pages) + 1,
				dict:      kidDict,
				inherited: scope,
				resolver:  t.resolver,
			})
			continue
		}

		if isRef {
			visiting[ref] = true
			t.nodeRefs[ref] = true
		}
		err = t.traversePageNode(kidDict, scope, visiting, depth+1)
		if isRef {
			delete(visiting, ref)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// isPagesNode classifies a page tree node. A missing /Type is tolerated:
// a node with /Kids is an intermediate node.
func isPagesNode(d core.Dict) bool {
	switch typ, _ := d.GetName("Type"); typ {
	case "Pages":
		return true
	case "Page":
		return false
	}
	return d.Has("Kids")
}

// Page represents a single PDF page
type Page struct {
	// Ref is the page object's reference; zero when the page is a direct object.
	Ref core.IndirectRef
	// Number is the 1-based position in document order.
	Number int

	dict      core.Dict
	inherited core.Dict // inheritable attributes from ancestors
	resolver  ObjectResolver
}

// NewPage creates a page from its dictionary. inherited may be nil.
func NewPage(dict core.Dict, inherited core.Dict, resolver ObjectResolver) *Page {
	if inherited == nil {
		inherited = core.Dict{}
	}
	return &Page{
		Number:    1,
		dict:      dict,
		inherited: inherited,
		resolver:  resolver,
	}
}

// Dict returns the page dictionary as stored in the file.
func (p *Page) Dict() core.Dict {
	return p.dict
}

// Resolver returns the resolver the page was loaded with.
func (p *Page) Resolver() ObjectResolver {
	return p.resolver
}

// Type returns the page type (should be "Page")
func (p *Page) Type() string {
	name, _ := p.dict.GetName("Type")
	return string(name)
}

// Attr returns a page attribute, falling back to the ancestors' value for
// inheritable keys. The value is returned unresolved.
func (p *Page) Attr(key string) core.Object {
	if v := p.dict.Get(key); !core.IsNull(v) {
		return v
	}
	return p.inherited.Get(key)
}

// MediaBox returns the page media box [x1 y1 x2 y2]
func (p *Page) MediaBox() ([]float64, error) {
	return p.getBox("MediaBox")
}

// CropBox returns the page crop box, defaulting to the media box.
func (p *Page) CropBox() ([]float64, error) {
	box, err := p.getBox("CropBox")
	if err != nil {
		return p.MediaBox()
	}
	return box, nil
}

func (p *Page) getBox(name string) ([]float64, error) {
	boxObj := p.Attr(name)
	if boxObj == nil {
		return nil, fmt.Errorf("%s not found", name)
	}

	resolved, err := p.resolver.Resolve(boxObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	boxArr, ok := resolved.(core.Array)
	if !ok || len(boxArr) != 4 {
		return nil, fmt.Errorf("invalid %s: %v", name, resolved)
	}

	box := make([]float64, 4)
	for i, elem := range boxArr {
		switch v := elem.(type) {
		case core.Int:
			box[i] = float64(v)
		case core.Real:
			box[i] = float64(v)
		default:
			return nil, fmt.Errorf("invalid %s element type: %T", name, elem)
		}
	}
	return box, nil
}

// Width returns the page width (from MediaBox)
func (p *Page) Width() (float64, error) {
	box, err := p.MediaBox()
	if err != nil {
		return 0, err
	}
	return box[2] - box[0], nil
}

// Height returns the page height (from MediaBox)
func (p *Page) Height() (float64, error) {
	box, err := p.MediaBox()
	if err != nil {
		return 0, err
	}
	return box[3] - box[1], nil
}

// Rotate returns the page rotation normalized to 0, 90, 180 or 270.
func (p *Page) Rotate() int {
	obj, err := p.resolver.Resolve(p.Attr("Rotate"))
	if err != nil {
		return 0
	}
	r, ok := obj.(core.Int)
	if !ok {
		return 0
	}
	n := int(r) % 360
	if n < 0 {
		n += 360
	}
	return n - n%90
}

// Resources returns the page resources dictionary. A page without
// resources returns nil and no error.
func (p *Page) Resources() (core.Dict, error) {
	obj := p.Attr("Resources")
	if obj == nil {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	switch v := resolved.(type) {
	case core.Dict:
		return v, nil
	case core.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid Resources type: %T", resolved)
	}
}

// XObjects returns the /XObject mapping of the page resources, or nil.
func (p *Page) XObjects() (core.Dict, error) {
	res, err := p.Resources()
	if err != nil || res == nil {
		return nil, err
	}
	return ResourceDict(res, "XObject", p.resolver)
}

// ResourceDict resolves one category (Font, XObject, ...) of a resources
// dictionary. A missing category returns nil.
func ResourceDict(res core.Dict, category string, resolver ObjectResolver) (core.Dict, error) {
	obj := res.Get(category)
	if core.IsNull(obj) {
		return nil, nil
	}
	resolved, err := resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /%s: %w", category, err)
	}
	d, ok := resolved.(core.Dict)
	if !ok {
		if core.IsNull(resolved) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid /%s type: %T", category, resolved)
	}
	return d, nil
}

// Annotations returns the page's /Annots array with its entries unresolved.
// A page without annotations returns an empty array.
func (p *Page) Annotations() (core.Array, error) {
	obj := p.dict.Get("Annots")
	if obj == nil {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Annots: %w", err)
	}
	switch v := resolved.(type) {
	case core.Array:
		return v, nil
	case core.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid Annots type: %T", resolved)
	}
}

// Contents returns the page content streams in order. Null entries are
// skipped.
func (p *Page) Contents() ([]*core.Stream, error) {
	obj := p.dict.Get("Contents")
	if obj == nil {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}

	switch v := resolved.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case core.Null:
		return nil, nil
	case core.Array:
		streams := make([]*core.Stream, 0, len(v))
		for i, elem := range v {
			r, err := p.resolver.Resolve(elem)
			if err != nil {
				return streams, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
			}
			switch s := r.(type) {
			case *core.Stream:
				streams = append(streams, s)
			case core.Null:
			default:
				return streams, fmt.Errorf("contents[%d] is %T, not a stream", i, r)
			}
		}
		return streams, nil
	default:
		return nil, fmt.Errorf("invalid Contents type: %T", resolved)
	}
}

// ContentData returns the decoded content streams joined by newlines. When a
// stream fails to decode, the data decoded before it is returned with the error.
func (p *Page) ContentData() ([]byte, error) {
	streams, err := p.Contents()
	var buf bytes.Buffer
	for _, s := range streams {
		data, derr := s.Decode()
		if derr != nil {
			return buf.Bytes(), fmt.Errorf("failed to decode content stream: %w", derr)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), err
}
