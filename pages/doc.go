// Package pages provides PDF page tree traversal and page access.
//
// # Page Tree
//
// [PageTree] walks the /Pages hierarchy depth-first and returns the leaf
// pages in document order:
//
//	tree := pages.NewPageTree(pagesDict, pagesRef, resolver)
//	all, _ := tree.Pages()
//
// The walk does not trust /Count, tolerates nodes without /Type, and skips
// kids that cannot be resolved or that point back at an ancestor. Skipped
// kids are reported by [PageTree.Skipped].
//
// # Inheritance
//
// /Resources, /MediaBox, /CropBox and /Rotate are inheritable. Each [Page]
// carries the values accumulated from its full ancestor chain, and
// [Page.Attr] returns the page's own value or the nearest ancestor's.
//
// # Page Access
//
// A [Page] exposes its boxes, rotation, resources, /XObject mapping,
// annotations and content streams. Accessors resolve indirect references
// through the [ObjectResolver] the tree was built with.
package pages
