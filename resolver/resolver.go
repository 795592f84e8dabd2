package resolver

import (
	"fmt"
	"sort"

	"github.com/tsawler/pagesweep/core"
)

// ObjectReader interface allows the walker to work with any reader
type ObjectReader interface {
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// RemapFunc overrides how a source reference is rewritten. Returning ok
// replaces the reference with obj and stops the walk from following it.
type RemapFunc func(ref core.IndirectRef) (obj core.Object, ok bool)

// Entry is a copied object under its new number.
type Entry struct {
	Number int
	Object core.Object
}

type pending struct {
	number int
	obj    core.Object
}

// Walker copies the object graph reachable from a set of roots, giving
// every reached object a new dense number. References are followed
// breadth-first; each source object is loaded and copied once, so cycles
// terminate.
type Walker struct {
	reader   ObjectReader
	remap    RemapFunc
	skipKeys map[string]bool
	maxDepth int // nesting of direct objects within one object

	next     int
	numbers  map[core.IndirectRef]int
	dropped  map[core.IndirectRef]bool
	queue    []pending
	objects  map[int]core.Object
	warnings []string
}

// Option configures the walker
type Option func(*Walker)

// WithMaxDepth sets the maximum nesting depth of direct objects (default: 512)
func WithMaxDepth(depth int) Option {
	return func(w *Walker) {
		w.maxDepth = depth
	}
}

// WithRemap installs a reference override, used to redirect or drop
// references before they are followed.
func WithRemap(fn RemapFunc) Option {
	return func(w *Walker) {
		w.remap = fn
	}
}

// WithSkipKeys drops the given dictionary keys from every copied dictionary.
func WithSkipKeys(keys ...string) Option {
	return func(w *Walker) {
		for _, k := range keys {
			w.skipKeys[k] = true
		}
	}
}

// NewWalker creates a walker that hands out object numbers starting at first.
func NewWalker(reader ObjectReader, first int, opts ...Option) *Walker {
	w := &Walker{
		reader:   reader,
		skipKeys: make(map[string]bool),
		maxDepth: 512,
		next:     first,
		numbers:  make(map[core.IndirectRef]int),
		dropped:  make(map[core.IndirectRef]bool),
		objects:  make(map[int]core.Object),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reserve returns a new number without a source object; the caller
// supplies its body with Set.
func (w *Walker) Reserve() int {
	n := w.next
	w.next++
	return n
}

// Assign gives ref a new number without loading it. The caller supplies the
// copied body with Set; references to ref found during the walk point at it.
func (w *Walker) Assign(ref core.IndirectRef) int {
	ref = key(ref)
	if n, ok := w.numbers[ref]; ok {
		return n
	}
	n := w.Reserve()
	w.numbers[ref] = n
	return n
}

// Number reports the new number given to a source reference.
func (w *Walker) Number(ref core.IndirectRef) (int, bool) {
	n, ok := w.numbers[key(ref)]
	return n, ok
}

// Set stores the body of a reserved or assigned number. The object must
// already be rewritten.
func (w *Walker) Set(number int, obj core.Object) {
	w.objects[number] = obj
}

// Rewrite returns a copy of obj whose references point at new numbers.
// Referenced objects are loaded and queued for copying; references that
// cannot be loaded become null and are recorded as warnings.
func (w *Walker) Rewrite(obj core.Object) core.Object {
	return w.rewrite(obj, 0)
}

func (w *Walker) rewrite(obj core.Object, depth int) core.Object {
	if depth > w.maxDepth {
		w.warnf("object nesting deeper than %d truncated", w.maxDepth)
		return core.Null{}
	}

	switch v := obj.(type) {
	case core.IndirectRef:
		return w.follow(v)

	case core.Dict:
		out := make(core.Dict, len(v))
		for key, value := range v {
			if w.skipKeys[key] {
				continue
			}
			out[key] = w.rewrite(value, depth+1)
		}
		return out

	case core.Array:
		out := make(core.Array, len(v))
		for i, elem := range v {
			out[i] = w.rewrite(elem, depth+1)
		}
		return out

	case *core.Stream:
		// Length is recomputed when the stream is serialized.
		src := v.Dict.Clone()
		delete(src, "Length")
		dict := w.rewrite(src, depth+1).(core.Dict)
		return &core.Stream{Dict: dict, Data: v.Data}

	case nil:
		return core.Null{}

	default:
		// Primitive types don't need rewriting
		return obj
	}
}

func (w *Walker) follow(ref core.IndirectRef) core.Object {
	if w.remap != nil {
		if obj, ok := w.remap(ref); ok {
			return obj
		}
	}
	ref = key(ref)
	if n, ok := w.numbers[ref]; ok {
		return core.IndirectRef{Number: n}
	}
	if w.dropped[ref] {
		return core.Null{}
	}

	src, err := w.reader.ResolveReference(ref)
	if err != nil {
		w.warnf("reference %d %d R dropped: %v", ref.Number, ref.Generation, err)
		w.dropped[ref] = true
		return core.Null{}
	}
	if core.IsNull(src) {
		return core.Null{}
	}

	n := w.Assign(ref)
	w.queue = append(w.queue, pending{number: n, obj: src})
	return core.IndirectRef{Number: n}
}

// Run copies every queued object, following the references it finds
// until the reachable graph is exhausted.
func (w *Walker) Run() {
	for len(w.queue) > 0 {
		item := w.queue[0]
		w.queue = w.queue[1:]
		w.objects[item.number] = w.rewrite(item.obj, 0)
	}
}

// Objects returns the copied objects ordered by new number. Numbers that
// were reserved but never set are omitted.
func (w *Walker) Objects() []Entry {
	entries := make([]Entry, 0, len(w.objects))
	for n, obj := range w.objects {
		entries = append(entries, Entry{Number: n, Object: obj})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Number < entries[j].Number })
	return entries
}

// Size returns one past the highest number handed out.
func (w *Walker) Size() int {
	return w.next
}

// Warnings returns the problems met while copying.
func (w *Walker) Warnings() []string {
	return w.warnings
}

// key identifies source objects by number; the reader ignores generations.
func key(ref core.IndirectRef) core.IndirectRef {
	return core.IndirectRef{Number: ref.Number}
}

func (w *Walker) warnf(format string, args ...any) {
	w.warnings = append(w.warnings, fmt.Sprintf(format, args...))
}
