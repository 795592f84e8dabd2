// Package format identifies the kind of file an upload holds, so that a
// document that is not a PDF can be rejected with a useful message.
package format

import (
	"archive/zip"
	"bytes"
	"strings"
)

// headerWindow is how far into the data a %PDF- header may start.
const headerWindow = 1024

// Format represents a recognized file kind.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PDF indicates a PDF document.
	PDF
	// DOCX indicates a Microsoft Word (.docx) document.
	DOCX
	// ODT indicates an OpenDocument Text (.odt) document.
	ODT
	// XLSX indicates a Microsoft Excel (.xlsx) document.
	XLSX
	// PPTX indicates a Microsoft PowerPoint (.pptx) document.
	PPTX
	// ZIP indicates another ZIP archive.
	ZIP
	// HTML indicates an HTML document.
	HTML
	// PNG, JPEG and TIFF are scanned images uploaded without a PDF wrapper.
	PNG
	JPEG
	TIFF
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case DOCX:
		return "DOCX"
	case ODT:
		return "ODT"
	case XLSX:
		return "XLSX"
	case PPTX:
		return "PPTX"
	case ZIP:
		return "ZIP"
	case HTML:
		return "HTML"
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	case TIFF:
		return "TIFF"
	default:
		return "Unknown"
	}
}

var (
	pdfMagic  = []byte("%PDF-")
	zipMagic  = []byte("PK\x03\x04")
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	tiffLE    = []byte("II*\x00")
	tiffBE    = []byte("MM\x00*")
)

// Detect inspects the content to determine its format. A PDF header may be
// preceded by up to 1 KiB of junk, as PDF readers allow.
func Detect(data []byte) Format {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	switch {
	case bytes.Contains(window, pdfMagic):
		return PDF
	case bytes.HasPrefix(data, zipMagic):
		return detectZIPFormat(data)
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG
	case bytes.HasPrefix(data, tiffLE), bytes.HasPrefix(data, tiffBE):
		return TIFF
	case detectHTMLMagic(window):
		return HTML
	}
	return Unknown
}

// detectHTMLMagic checks if the data looks like HTML content.
func detectHTMLMagic(data []byte) bool {
	upper := strings.ToUpper(string(bytes.TrimLeft(data, " \t\r\n")))
	if strings.HasPrefix(upper, "<!DOCTYPE HTML") || strings.HasPrefix(upper, "<HTML") {
		return true
	}
	// XML declaration followed by html-like content could be XHTML
	return strings.HasPrefix(upper, "<?XML") && strings.Contains(upper, "<HTML")
}

// detectZIPFormat inspects a ZIP archive to tell office documents apart.
func detectZIPFormat(data []byte) Format {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ZIP
	}

	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		buf := make([]byte, 256)
		n, _ := rc.Read(buf)
		rc.Close()
		if strings.Contains(string(buf[:n]), "application/vnd.oasis.opendocument.text") {
			return ODT
		}
	}

	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "word/"):
			return DOCX
		case strings.HasPrefix(f.Name, "xl/"):
			return XLSX
		case strings.HasPrefix(f.Name, "ppt/"):
			return PPTX
		}
	}
	return ZIP
}
