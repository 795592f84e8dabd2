package pagesweep

import (
	"fmt"
	"os"

	"github.com/tsawler/pagesweep/blank"
	"github.com/tsawler/pagesweep/core"
	"github.com/tsawler/pagesweep/pages"
	"github.com/tsawler/pagesweep/reader"
	"github.com/tsawler/pagesweep/writer"
)

// Sweeper removes blank pages from one document. Configuration methods
// return a new Sweeper, so a configured Sweeper can be reused.
type Sweeper struct {
	// Source (exactly one is set)
	filename string
	data     []byte

	options Options
}

// clone creates a copy of the Sweeper. The input buffer is shared; it is
// never modified.
func (s *Sweeper) clone() *Sweeper {
	return &Sweeper{
		filename: s.filename,
		data:     s.data,
		options:  s.options,
	}
}

// With applies functional options.
func (s *Sweeper) With(opts ...Option) *Sweeper {
	n := s.clone()
	for _, opt := range opts {
		opt(&n.options)
	}
	return n
}

// MaxInputSize sets the largest accepted input in bytes.
func (s *Sweeper) MaxInputSize(n int64) *Sweeper {
	return s.With(WithMaxInputSize(n))
}

// RejectEmptyOutput makes Clean fail with ErrNoPagesKept when every page is
// blank.
//
// Example:
//
//	res, err := pagesweep.Open("scan.pdf").RejectEmptyOutput().Clean()
//	if errors.Is(err, pagesweep.ErrNoPagesKept) {
//	    // nothing left to save
//	}
func (s *Sweeper) RejectEmptyOutput() *Sweeper {
	return s.With(WithRejectEmptyOutput())
}

// Producer sets the /Producer written to the output document.
func (s *Sweeper) Producer(producer string) *Sweeper {
	return s.With(WithProducer(producer))
}

// Clean classifies every page and writes a document holding only the
// pages that are not blank, in their original order.
//
// When every page is blank the output is a valid zero-page document and
// Result.AllRemoved reports it, unless RejectEmptyOutput is set. In that
// case ErrNoPagesKept is returned together with a Result carrying the
// counts but no output.
func (s *Sweeper) Clean() (*Result, error) {
	return s.run(true)
}

// Analyze classifies every page without writing an output document.
func (s *Sweeper) Analyze() (*Result, error) {
	return s.run(false)
}

// PageCount returns the number of pages in the input.
func (s *Sweeper) PageCount() (int, error) {
	rd, err := s.open()
	if err != nil {
		return 0, err
	}
	n, err := rd.PageCount()
	if err != nil {
		return 0, &ParseError{Err: err}
	}
	return n, nil
}

// load returns the input bytes, enforcing the size limit before a file is
// read.
func (s *Sweeper) load() ([]byte, error) {
	if s.filename != "" {
		info, err := os.Stat(s.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open PDF: %w", err)
		}
		if err := s.checkSize(info.Size()); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(s.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF: %w", err)
		}
		return data, nil
	}
	if err := s.checkSize(int64(len(s.data))); err != nil {
		return nil, err
	}
	return s.data, nil
}

func (s *Sweeper) checkSize(n int64) error {
	if n == 0 {
		return ErrEmptyInput
	}
	if n > s.options.maxInputSize {
		return fmt.Errorf("%w: %d bytes exceeds the limit of %d", ErrInputTooLarge, n, s.options.maxInputSize)
	}
	return nil
}

func (s *Sweeper) open() (*reader.Reader, error) {
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	rd, err := reader.NewReaderFromBytes(data)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return rd, nil
}

func (s *Sweeper) run(write bool) (*Result, error) {
	rd, err := s.open()
	if err != nil {
		return nil, err
	}
	tree, err := rd.PageTree()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	all, err := tree.Pages()
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	res := &Result{TotalPages: len(all)}
	if rd.Repaired() {
		res.Warnings = append(res.Warnings, Warning{Message: "cross-reference table was damaged and has been rebuilt"})
	}
	for _, msg := range tree.Skipped() {
		res.Warnings = append(res.Warnings, Warning{Message: msg})
	}

	var classifierOpts []blank.Option
	if s.options.maxFormDepth > 0 {
		classifierOpts = append(classifierOpts, blank.WithMaxFormDepth(s.options.maxFormDepth))
	}
	classifier := blank.NewClassifier(rd, classifierOpts...)

	var kept []*pages.Page
	var dropped []core.IndirectRef
	for _, page := range all {
		v := classifier.Classify(page)
		res.Verdicts = append(res.Verdicts, PageVerdict{Page: page.Number, Blank: v.Blank, Evidence: v.Evidence})
		for _, msg := range v.Warnings {
			res.Warnings = append(res.Warnings, Warning{Page: page.Number, Message: msg})
		}
		if v.Blank {
			res.RemovedPages++
			res.Removed = append(res.Removed, page.Number)
			dropped = append(dropped, page.Ref)
			continue
		}
		kept = append(kept, page)
	}

	if !write {
		return res, nil
	}
	if len(kept) == 0 && s.options.rejectEmpty {
		return res, ErrNoPagesKept
	}

	out, warnings, err := s.write(rd, tree, kept, dropped)
	if err != nil {
		return nil, err
	}
	res.Output = out
	res.Warnings = append(res.Warnings, warnings...)
	return res, nil
}

func (s *Sweeper) write(rd *reader.Reader, tree *pages.PageTree, kept []*pages.Page, dropped []core.IndirectRef) ([]byte, []Warning, error) {
	var warnings []Warning

	info, err := rd.GetInfo()
	if err != nil {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("document info not copied: %v", err)})
	}
	catalog, err := rd.GetCatalog()
	if err != nil {
		return nil, nil, &WriteError{Err: err}
	}

	w := writer.New(rd,
		writer.WithVersion(rd.Version().String()),
		writer.WithInfo(info),
		writer.WithCatalog(catalog),
		writer.WithProducer(s.options.producer),
		writer.WithPageTree(tree.IsNode),
		writer.WithDroppedPages(dropped...),
	)
	for _, page := range kept {
		w.AddPage(page)
	}
	out, err := w.Bytes()
	if err != nil {
		return nil, nil, &WriteError{Err: err}
	}
	for _, msg := range w.Warnings() {
		warnings = append(warnings, Warning{Message: msg})
	}
	return out, warnings, nil
}
