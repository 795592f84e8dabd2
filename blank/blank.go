package blank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsawler/pagesweep/core"
	"github.com/tsawler/pagesweep/pages"
	"github.com/tsawler/pagesweep/text"
)

// ErrUnresolvable is wrapped by image inspection when an XObject entry or
// the XObject mapping itself cannot be resolved.
var ErrUnresolvable = errors.New("unresolvable xobject")

// Evidence names the signal that proved a page is not blank.
type Evidence int

const (
	None Evidence = iota
	Text
	Annotation
	Image
)

func (e Evidence) String() string {
	switch e {
	case Text:
		return "text"
	case Annotation:
		return "annotation"
	case Image:
		return "image"
	default:
		return "none"
	}
}

// XObjectKind is the resolved variant of an XObject resource entry.
type XObjectKind int

const (
	Other XObjectKind = iota
	ImageXObject
	FormXObject
)

func (k XObjectKind) String() string {
	switch k {
	case ImageXObject:
		return "Image"
	case FormXObject:
		return "Form"
	default:
		return "Other"
	}
}

// Verdict is the classification of one page.
type Verdict struct {
	Blank    bool
	Evidence Evidence

	// Warnings lists problems met while classifying. They never change a
	// verdict to blank.
	Warnings []string
}

// Classifier decides whether pages are blank. A Classifier is not safe for
// concurrent use.
type Classifier struct {
	resolver  pages.ObjectResolver
	extractor *text.Extractor
}

// Option configures a Classifier.
type Option func(*classifierConfig)

type classifierConfig struct {
	textOpts []text.Option
}

// WithMaxFormDepth bounds how deep text extraction follows nested Form
// XObjects.
func WithMaxFormDepth(depth int) Option {
	return func(c *classifierConfig) {
		c.textOpts = append(c.textOpts, text.WithMaxFormDepth(depth))
	}
}

// NewClassifier creates a classifier for pages read through resolver.
func NewClassifier(resolver pages.ObjectResolver, opts ...Option) *Classifier {
	var cfg classifierConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Classifier{
		resolver:  resolver,
		extractor: text.NewExtractor(resolver, cfg.textOpts...),
	}
}

// IsBlank reports whether a page carries no text, annotations or images.
func (c *Classifier) IsBlank(page *pages.Page) bool {
	return c.Classify(page).Blank
}

// Classify runs the checks in order and stops at the first signal:
// non-whitespace text, then a non-empty /Annots array, then an Image among
// the page's XObject resources. The page is never modified.
//
// A page whose text could not be fully read is kept when no other signal
// is found.
func (c *Classifier) Classify(page *pages.Page) Verdict {
	var v Verdict

	s, textErr := c.extractor.PageText(page)
	if strings.TrimSpace(s) != "" {
		v.Evidence = Text
		return v
	}

	annotated, err := HasAnnotations(page)
	if err != nil {
		v.Warnings = append(v.Warnings, err.Error())
	}
	if annotated {
		v.Evidence = Annotation
		return v
	}

	found, err := HasImage(page, c.resolver)
	if err != nil {
		// Unresolvable entries cannot prove an image is present.
		v.Warnings = append(v.Warnings, err.Error())
	}
	if found {
		v.Evidence = Image
		return v
	}

	if textErr != nil {
		v.Warnings = append(v.Warnings, fmt.Sprintf("page kept, text could not be read: %v", textErr))
		return v
	}
	v.Blank = true
	return v
}

// HasAnnotations reports whether the page declares at least one annotation.
// An /Annots entry that cannot be resolved counts as present.
func HasAnnotations(page *pages.Page) (bool, error) {
	annots, err := page.Annotations()
	if err != nil {
		return true, err
	}
	return len(annots) > 0, nil
}

// HasImage reports whether any top-level XObject resource of the page is an
// image. Every entry is inspected; entries that cannot be resolved are
// treated as Other and reported through an error wrapping ErrUnresolvable.
func HasImage(page *pages.Page, resolver pages.ObjectResolver) (bool, error) {
	xobjects, err := page.XObjects()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}

	var errs []error
	for _, name := range xobjects.Keys() {
		kind, err := ResolveXObject(xobjects.Get(name), resolver)
		if err != nil {
			errs = append(errs, fmt.Errorf("/%s: %w", name, err))
			continue
		}
		if kind == ImageXObject {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

// ResolveXObject resolves an XObject resource entry to its kind. A failed
// resolution returns Other with an error wrapping ErrUnresolvable.
func ResolveXObject(obj core.Object, resolver pages.ObjectResolver) (XObjectKind, error) {
	resolved, err := resolver.Resolve(obj)
	if err != nil {
		return Other, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}

	var dict core.Dict
	switch v := resolved.(type) {
	case *core.Stream:
		dict = v.Dict
	case core.Dict:
		dict = v
	default:
		return Other, nil
	}

	subtype, err := resolver.Resolve(dict.Get("Subtype"))
	if err != nil {
		return Other, fmt.Errorf("%w: subtype: %v", ErrUnresolvable, err)
	}
	switch subtype {
	case core.Name("Image"):
		return ImageXObject, nil
	case core.Name("Form"):
		return FormXObject, nil
	}
	return Other, nil
}
