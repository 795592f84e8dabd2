package pagesweep

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// pageKind describes the content put on one fixture page.
type pageKind int

const (
	blankPage pageKind = iota
	textPage
	whitespacePage
	linkPage
)

// buildPDF renders one page per kind.
func buildPDF(t *testing.T, kinds ...pageKind) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i, kind := range kinds {
		pdf.AddPage()
		switch kind {
		case textPage:
			pdf.CellFormat(0, 10, "Page with words", "", 1, "L", false, 0, "")
		case whitespacePage:
			pdf.CellFormat(0, 10, "   ", "", 1, "L", false, 0, "")
		case linkPage:
			pdf.LinkString(20, 20+float64(i), 40, 10, "https://example.com")
		}
	}
	return output(t, pdf)
}

// buildImagePDF renders a single page that only draws an image.
func buildImagePDF(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.SetGray(x, x, color.Gray{Y: 200})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.RegisterImageOptionsReader("dot", gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
	pdf.AddPage()
	pdf.ImageOptions("dot", 10, 10, 20, 20, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return output(t, pdf)
}

// buildEncryptedPDF renders a password-protected document.
func buildEncryptedPDF(t *testing.T) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetProtection(gofpdf.CnProtectPrint, "user", "owner")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.CellFormat(0, 10, "secret", "", 1, "L", false, 0, "")
	return output(t, pdf)
}

func output(t *testing.T, pdf *gofpdf.Fpdf) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("gofpdf: %v", err)
	}
	return buf.Bytes()
}
