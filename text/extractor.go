package text

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsawler/pagesweep/contentstream"
	"github.com/tsawler/pagesweep/core"
	"github.com/tsawler/pagesweep/font"
	"github.com/tsawler/pagesweep/pages"
)

// DefaultMaxFormDepth bounds Form XObject nesting.
const DefaultMaxFormDepth = 32

// kerningSpace is the TJ displacement (in thousandths of an em) treated as a
// word gap.
const kerningSpace = -200

// Extractor extracts plain text from page content streams. An Extractor
// is not safe for concurrent use; create one per goroutine.
type Extractor struct {
	resolver pages.ObjectResolver
	maxDepth int

	// fonts caches loaded fonts by font dictionary reference.
	fonts map[core.IndirectRef]*font.Font

	sb    strings.Builder
	errs  []error
	forms map[formKey]bool
}

// formKey identifies a Form XObject being expanded.
type formKey struct {
	ref    core.IndirectRef
	stream *core.Stream
}

// scope is the state of one content stream: its resources, the loaded
// fonts by resource name and the q/Q font stack.
type scope struct {
	resources core.Dict
	fonts     map[string]*font.Font
	current   *font.Font
	saved     []*font.Font
	depth     int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFormDepth sets how deep nested Form XObjects are followed.
func WithMaxFormDepth(depth int) Option {
	return func(e *Extractor) {
		e.maxDepth = depth
	}
}

// NewExtractor creates a new text extractor
func NewExtractor(resolver pages.ObjectResolver, opts ...Option) *Extractor {
	e := &Extractor{
		resolver: resolver,
		maxDepth: DefaultMaxFormDepth,
		fonts:    make(map[core.IndirectRef]*font.Font),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PageText returns the text shown on a page, including text drawn by Form
// XObjects. When part of the page cannot be read the text gathered from the
// rest is returned together with the error.
func (e *Extractor) PageText(page *pages.Page) (string, error) {
	e.reset()

	resources, err := page.Resources()
	if err != nil {
		e.errs = append(e.errs, err)
	}
	data, err := page.ContentData()
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("page content: %w", err))
	}
	e.run(data, &scope{resources: resources})
	return e.sb.String(), errors.Join(e.errs...)
}

// ExtractFromBytes parses raw content stream data against a resources
// dictionary and returns the text it shows.
func (e *Extractor) ExtractFromBytes(data []byte, resources core.Dict) (string, error) {
	e.reset()
	e.run(data, &scope{resources: resources})
	return e.sb.String(), errors.Join(e.errs...)
}

func (e *Extractor) reset() {
	e.sb.Reset()
	e.errs = nil
	e.forms = make(map[formKey]bool)
}

func (e *Extractor) run(data []byte, s *scope) {
	if len(data) == 0 {
		return
	}
	ops, err := contentstream.NewParser(data).Parse()
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("parse content stream: %w", err))
	}
	for _, op := range ops {
		e.processOperation(op, s)
	}
}

// processOperation processes a single content stream operation
func (e *Extractor) processOperation(op contentstream.Operation, s *scope) {
	switch op.Operator {
	case "q":
		s.saved = append(s.saved, s.current)
	case "Q":
		if n := len(s.saved); n > 0 {
			s.current = s.saved[n-1]
			s.saved = s.saved[:n-1]
		}
	case "ET":
		e.newline()
	case "Tf":
		if len(op.Operands) == 2 {
			if name, ok := op.Operands[0].(core.Name); ok {
				s.current = e.font(s, string(name))
			}
		}
	case "Td", "TD", "T*":
		e.newline()
	case "Tj":
		if len(op.Operands) == 1 {
			if str, ok := op.Operands[0].(core.String); ok {
				e.showText(s, []byte(str))
			}
		}
	case "TJ":
		if len(op.Operands) == 1 {
			if arr, ok := op.Operands[0].(core.Array); ok {
				e.showTextArray(s, arr)
			}
		}
	case "'":
		e.newline()
		if len(op.Operands) == 1 {
			if str, ok := op.Operands[0].(core.String); ok {
				e.showText(s, []byte(str))
			}
		}
	case "\"":
		e.newline()
		if len(op.Operands) == 3 {
			if str, ok := op.Operands[2].(core.String); ok {
				e.showText(s, []byte(str))
			}
		}
	case "Do":
		if len(op.Operands) == 1 {
			if name, ok := op.Operands[0].(core.Name); ok {
				e.drawXObject(s, string(name))
			}
		}
	}
}

// showText decodes a shown string with the current font. Text shown before
// any Tf uses a StandardEncoding font.
func (e *Extractor) showText(s *scope, data []byte) {
	f := s.current
	if f == nil {
		f = font.NewFont("", "", "Type1")
		s.current = f
	}
	e.sb.WriteString(f.Decode(data))
}

// showTextArray processes text array showing operation
func (e *Extractor) showTextArray(s *scope, arr core.Array) {
	for _, item := range arr {
		switch v := item.(type) {
		case core.String:
			e.showText(s, []byte(v))
		case core.Int, core.Real:
			if adj, ok := toFloat(v); ok && adj < kerningSpace {
				e.sb.WriteByte(' ')
			}
		}
	}
}

func (e *Extractor) newline() {
	if n := e.sb.Len(); n > 0 && !strings.HasSuffix(e.sb.String(), "\n") {
		e.sb.WriteByte('\n')
	}
}

// font returns the font registered under name in the scope's resources,
// loading it on first use. A missing font falls back to a StandardEncoding
// font and records an error.
func (e *Extractor) font(s *scope, name string) *font.Font {
	if f, ok := s.fonts[name]; ok {
		return f
	}
	if s.fonts == nil {
		s.fonts = make(map[string]*font.Font)
	}
	f, err := e.loadFont(s.resources, name)
	if err != nil {
		e.errs = append(e.errs, err)
		f = font.NewFont(name, "", "Type1")
	}
	s.fonts[name] = f
	return f
}

func (e *Extractor) loadFont(resources core.Dict, name string) (*font.Font, error) {
	if resources == nil {
		return nil, fmt.Errorf("font /%s: no resources", name)
	}
	fonts, err := pages.ResourceDict(resources, "Font", e.resolver)
	if err != nil {
		return nil, fmt.Errorf("font /%s: %w", name, err)
	}
	entry := fonts.Get(name)
	if entry == nil {
		return nil, fmt.Errorf("font /%s not found in resources", name)
	}
	ref, isRef := entry.(core.IndirectRef)
	if isRef {
		if f, ok := e.fonts[ref]; ok {
			return f, nil
		}
	}
	obj, err := e.resolver.Resolve(entry)
	if err != nil {
		return nil, fmt.Errorf("font /%s: %w", name, err)
	}
	dict, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("font /%s is %T, not a dictionary", name, obj)
	}
	f, err := font.Load(name, dict, e.resolver)
	if err != nil {
		return nil, err
	}
	if isRef {
		e.fonts[ref] = f
	}
	return f, nil
}

// drawXObject follows a Do operator into a Form XObject. Images and other
// XObjects carry no text.
func (e *Extractor) drawXObject(s *scope, name string) {
	if s.resources == nil {
		return
	}
	xobjects, err := pages.ResourceDict(s.resources, "XObject", e.resolver)
	if err != nil {
		e.errs = append(e.errs, err)
		return
	}
	entry := xobjects.Get(name)
	if entry == nil {
		return
	}
	obj, err := e.resolver.Resolve(entry)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("xobject /%s: %w", name, err))
		return
	}
	stream, ok := obj.(*core.Stream)
	if !ok {
		return
	}
	if subtype, _ := stream.Dict.GetName("Subtype"); subtype != "Form" {
		return
	}

	key := formKey{stream: stream}
	if ref, ok := entry.(core.IndirectRef); ok {
		key = formKey{ref: ref}
	}
	if e.forms[key] {
		// Form drawing itself.
		return
	}
	if s.depth >= e.maxDepth {
		e.errs = append(e.errs, fmt.Errorf("xobject /%s: forms nested deeper than %d", name, e.maxDepth))
		return
	}

	data, err := stream.Decode()
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("xobject /%s: %w", name, err))
		return
	}

	// Forms without their own resources use the caller's.
	resources := s.resources
	if obj, err := e.resolver.Resolve(stream.Dict.Get("Resources")); err == nil {
		if d, ok := obj.(core.Dict); ok {
			resources = d
		}
	}

	e.forms[key] = true
	e.run(data, &scope{resources: resources, depth: s.depth + 1})
	delete(e.forms, key)
	e.newline()
}

// GetText returns the text gathered by the last extraction.
func (e *Extractor) GetText() string {
	return e.sb.String()
}

// toFloat converts a PDF numeric object to float64.
func toFloat(obj core.Object) (float64, bool) {
	switch v := obj.(type) {
	case core.Int:
		return float64(v), true
	case core.Real:
		return float64(v), true
	default:
		return 0, false
	}
}
