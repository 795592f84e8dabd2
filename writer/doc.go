// Package writer builds a new PDF document from a subset of the pages of a
// source document.
//
//	w := writer.New(rd,
//	    writer.WithVersion(rd.Version().String()),
//	    writer.WithPageTree(tree.IsNode),
//	    writer.WithDroppedPages(dropped...),
//	)
//	for _, p := range kept {
//	    w.AddPage(p)
//	}
//	out, err := w.Bytes()
//
// The output has a new catalog (object 1) and a flat page tree (object 2).
// Each page is copied with its inherited Resources, MediaBox, CropBox and
// Rotate written into its own dictionary. Every object reachable from the
// copied pages is renumbered densely from 3 and written uncompressed, with a
// classic cross-reference table.
//
// References to source page tree nodes point at the new page tree, and
// references to dropped pages become null. References that cannot be
// resolved also become null and are reported by [Writer.Warnings].
package writer
