// Package blank decides whether a PDF page is blank.
//
// A page is not blank when any of three signals is found, checked in this
// order:
//
//  1. text that is not all whitespace, including text drawn by Form XObjects
//  2. a non-empty /Annots array
//  3. an Image among the page's top-level XObject resources
//
//	c := blank.NewClassifier(reader)
//	v := c.Classify(page)
//	if v.Blank { ... }
//
// Vector drawings without text, inline images and images nested inside
// Form XObjects are not signals.
//
// XObject entries that cannot be resolved do not prove an image; they are
// reported through [ErrUnresolvable] and become warnings on the [Verdict].
// A page whose content could not be read is kept rather than removed.
package blank
