// Package resolver copies the part of a PDF object graph reachable from a
// set of roots.
//
// A [Walker] rewrites objects so that every indirect reference points at a
// new, densely assigned object number, loading and queueing each referenced
// source object once:
//
//	w := resolver.NewWalker(reader, 3)
//	page := w.Rewrite(pageDict)
//	w.Run()
//	for _, e := range w.Objects() { ... }
//
// # Remapping
//
// [WithRemap] intercepts references before they are followed, which lets a
// caller redirect links to objects it rebuilds itself or drop links to
// objects that must not be copied. [Walker.Assign] reserves a number for a
// source object whose copy the caller provides.
//
// # Failures
//
// References that cannot be loaded become null in the copy and are
// reported by [Walker.Warnings]. Cycles terminate because every source
// object is numbered before its body is copied.
package resolver
