package pagesweep

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/tsawler/pagesweep/blank"
	"github.com/tsawler/pagesweep/core"
	"github.com/tsawler/pagesweep/reader"
)

func TestRemoveBlankPages(t *testing.T) {
	tests := []struct {
		name        string
		kinds       []pageKind
		wantRemoved []int
	}{
		{"mixed", []pageKind{textPage, blankPage, linkPage, whitespacePage, blankPage}, []int{2, 4, 5}},
		{"nothing blank", []pageKind{textPage, linkPage}, nil},
		{"single blank", []pageKind{blankPage}, []int{1}},
		{"leading blanks", []pageKind{blankPage, blankPage, textPage}, []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildPDF(t, tt.kinds...)
			res, err := RemoveBlankPages(data)
			if err != nil {
				t.Fatalf("RemoveBlankPages: %v", err)
			}
			if res.TotalPages != len(tt.kinds) {
				t.Errorf("TotalPages = %d, want %d", res.TotalPages, len(tt.kinds))
			}
			if res.RemovedPages != len(tt.wantRemoved) {
				t.Errorf("RemovedPages = %d, want %d", res.RemovedPages, len(tt.wantRemoved))
			}
			if !reflect.DeepEqual(res.Removed, tt.wantRemoved) {
				t.Errorf("Removed = %v, want %v", res.Removed, tt.wantRemoved)
			}

			rd, err := reader.NewReaderFromBytes(res.Output)
			if err != nil {
				t.Fatalf("output does not parse: %v", err)
			}
			n, err := rd.PageCount()
			if err != nil {
				t.Fatal(err)
			}
			if n != res.KeptPages() {
				t.Errorf("output has %d pages, want %d", n, res.KeptPages())
			}
		})
	}
}

func TestWhitespaceOnlyPagesAreRemoved(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"spaces", "   "},
		{"tab and newline", "\t\n"},
		{"carriage return", "\r\n"},
		{"form feed", " \f "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf := gofpdf.New("P", "mm", "A4", "")
			pdf.SetFont("Helvetica", "", 12)
			pdf.AddPage()
			pdf.CellFormat(0, 10, "kept", "", 1, "L", false, 0, "")
			pdf.AddPage()
			pdf.CellFormat(0, 10, tt.text, "", 1, "L", false, 0, "")

			_, total, removed, err := Filter(output(t, pdf))
			if err != nil {
				t.Fatalf("Filter: %v", err)
			}
			if total != 2 || removed != 1 {
				t.Errorf("total, removed = %d, %d, want 2, 1", total, removed)
			}
		})
	}
}

func TestVerdictEvidence(t *testing.T) {
	data := buildPDF(t, textPage, blankPage, linkPage)
	res, err := Analyze(data)
	if err != nil {
		t.Fatal(err)
	}
	want := []PageVerdict{
		{Page: 1, Evidence: blank.Text},
		{Page: 2, Blank: true, Evidence: blank.None},
		{Page: 3, Evidence: blank.Annotation},
	}
	if !reflect.DeepEqual(res.Verdicts, want) {
		t.Errorf("Verdicts = %+v, want %+v", res.Verdicts, want)
	}
	if res.Output != nil {
		t.Error("Analyze produced output")
	}
}

func TestKeptPagesStayInOrder(t *testing.T) {
	data := buildPDF(t, textPage, blankPage, linkPage, blankPage, textPage)
	res, err := RemoveBlankPages(data)
	if err != nil {
		t.Fatal(err)
	}

	rd, err := reader.NewReaderFromBytes(res.Output)
	if err != nil {
		t.Fatal(err)
	}
	pages, err := rd.Pages()
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	// Only the middle kept page carries the link.
	for i, p := range pages {
		annots, err := p.Annotations()
		if err != nil {
			t.Fatal(err)
		}
		if got, want := len(annots) > 0, i == 1; got != want {
			t.Errorf("page %d annotated = %v, want %v", i+1, got, want)
		}
	}
}

func TestImagePageIsKept(t *testing.T) {
	res, err := RemoveBlankPages(buildImagePDF(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.RemovedPages != 0 {
		t.Errorf("RemovedPages = %d, want 0", res.RemovedPages)
	}
	if res.Verdicts[0].Evidence != blank.Image {
		t.Errorf("Evidence = %v, want image", res.Verdicts[0].Evidence)
	}
}

func TestAllPagesBlank(t *testing.T) {
	data := buildPDF(t, blankPage, blankPage)

	res, err := RemoveBlankPages(data)
	if err != nil {
		t.Fatalf("RemoveBlankPages: %v", err)
	}
	if !res.AllRemoved() {
		t.Error("AllRemoved() = false")
	}
	rd, err := reader.NewReaderFromBytes(res.Output)
	if err != nil {
		t.Fatalf("zero-page output does not parse: %v", err)
	}
	if n, _ := rd.PageCount(); n != 0 {
		t.Errorf("output has %d pages", n)
	}

	res, err = RemoveBlankPages(data, WithRejectEmptyOutput())
	if !errors.Is(err, ErrNoPagesKept) {
		t.Fatalf("err = %v, want ErrNoPagesKept", err)
	}
	if res == nil || res.TotalPages != 2 || res.RemovedPages != 2 {
		t.Errorf("result = %+v, want counts 2/2", res)
	}
	if res != nil && res.Output != nil {
		t.Error("rejected run produced output")
	}
}

func TestInputErrors(t *testing.T) {
	valid := buildPDF(t, textPage)

	tests := []struct {
		name  string
		data  []byte
		opts  []Option
		check func(error) bool
	}{
		{"empty", nil, nil, func(err error) bool { return errors.Is(err, ErrEmptyInput) }},
		{"too large", valid, []Option{WithMaxInputSize(16)}, func(err error) bool { return errors.Is(err, ErrInputTooLarge) }},
		{"not a pdf", []byte("hello, world"), nil, isParseError},
		{"truncated", valid[:20], nil, isParseError},
		{"encrypted", buildEncryptedPDF(t), nil, func(err error) bool {
			return isParseError(err) && errors.Is(err, ErrEncrypted)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := RemoveBlankPages(tt.data, tt.opts...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error %T: %v", err, err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}
}

func isParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func TestIdempotent(t *testing.T) {
	data := buildPDF(t, blankPage, textPage, linkPage, blankPage)
	first, err := RemoveBlankPages(data)
	if err != nil {
		t.Fatal(err)
	}
	second, err := RemoveBlankPages(first.Output)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.TotalPages != first.KeptPages() {
		t.Errorf("second TotalPages = %d, want %d", second.TotalPages, first.KeptPages())
	}
	if second.RemovedPages != 0 {
		t.Errorf("second pass removed %d pages", second.RemovedPages)
	}
}

func TestInputUnchanged(t *testing.T) {
	data := buildPDF(t, textPage, blankPage)
	saved := append([]byte(nil), data...)
	if _, err := RemoveBlankPages(data); err != nil {
		t.Fatal(err)
	}
	if string(saved) != string(data) {
		t.Error("input buffer was modified")
	}
}

func TestFilter(t *testing.T) {
	out, total, removed, err := Filter(buildPDF(t, textPage, blankPage, blankPage))
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || removed != 2 {
		t.Errorf("total, removed = %d, %d, want 3, 2", total, removed)
	}
	if len(out) == 0 {
		t.Error("empty output")
	}

	out, total, removed, err = Filter(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("err = %v, want ErrEmptyInput", err)
	}
	if out != nil || total != 0 || removed != 0 {
		t.Errorf("got %v, %d, %d on error", out, total, removed)
	}
}

func TestProducer(t *testing.T) {
	data := buildPDF(t, textPage)
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"default", nil, "pagesweep"},
		{"custom", []Option{WithProducer("acme scanner")}, "acme scanner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := RemoveBlankPages(data, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			rd, err := reader.NewReaderFromBytes(res.Output)
			if err != nil {
				t.Fatal(err)
			}
			info, err := rd.GetInfo()
			if err != nil || info == nil {
				t.Fatalf("GetInfo: %v, %v", info, err)
			}
			if got := info.Get("Producer"); got != core.String(tt.want) {
				t.Errorf("Producer = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, buildPDF(t, blankPage, textPage), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := Open(path).Clean()
	if err != nil {
		t.Fatal(err)
	}
	if res.RemovedPages != 1 {
		t.Errorf("RemovedPages = %d, want 1", res.RemovedPages)
	}

	if n := Must(Open(path).PageCount()); n != 2 {
		t.Errorf("PageCount = %d, want 2", n)
	}

	if _, err := Open(path).MaxInputSize(10).Clean(); !errors.Is(err, ErrInputTooLarge) {
		t.Errorf("err = %v, want ErrInputTooLarge", err)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.pdf")).Clean(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestSweeperChainDoesNotMutate(t *testing.T) {
	base := FromBytes(buildPDF(t, blankPage))
	strict := base.RejectEmptyOutput()

	if _, err := strict.Clean(); !errors.Is(err, ErrNoPagesKept) {
		t.Errorf("strict: err = %v, want ErrNoPagesKept", err)
	}
	if _, err := base.Clean(); err != nil {
		t.Errorf("base: %v", err)
	}
}

func TestWarningString(t *testing.T) {
	tests := []struct {
		w    Warning
		want string
	}{
		{Warning{Page: 3, Message: "bad font"}, "page 3: bad font"},
		{Warning{Message: "xref rebuilt"}, "xref rebuilt"},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
	if got := FormatWarnings([]Warning{tests[0].w, tests[1].w}); got != "page 3: bad font; xref rebuilt" {
		t.Errorf("FormatWarnings = %q", got)
	}
}

func TestMust(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Must did not panic")
		}
	}()
	Must(0, errors.New("boom"))
}
