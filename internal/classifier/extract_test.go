package classifier_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meddoc/internal/classifier"
)

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestExcerptDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cau_hinh.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			`<w:p><w:r><w:t>Cấu hình máy</w:t></w:r></w:p><w:p><w:r><w:t>Optima XR220</w:t></w:r></w:p></w:body></w:document>`,
	})
	got, err := classifier.Excerpt(path, 3000)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if got != "Cấu hình máy\nOptima XR220" {
		t.Fatalf("unexpected excerpt %q", got)
	}
}

func TestExcerptPptxOrdersSlides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:cSld></p:sld>`
	}
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml": slide("ten"),
		"ppt/slides/slide2.xml":  slide("two"),
		"ppt/slides/slide1.xml":  slide("one"),
	})
	got, err := classifier.Excerpt(path, 3000)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if got != "one\ntwo\nten" {
		t.Fatalf("unexpected excerpt %q", got)
	}
}

func TestExcerptTruncatesByCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("đ", 50)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := classifier.Excerpt(path, 10)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if got != strings.Repeat("đ", 10) {
		t.Fatalf("unexpected excerpt %q", got)
	}
}

// writePDF lays out a one-page document with a correct xref table.
func writePDF(t *testing.T, path, content string) {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = doc.Len()
		fmt.Fprintf(&doc, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := doc.Len()
	fmt.Fprintf(&doc, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&doc, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&doc, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	if err := os.WriteFile(path, doc.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestExcerptPDFTextLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.pdf")
	writePDF(t, path, "BT /F1 12 Tf 72 712 Td (Bao gia may sieu am 2026) Tj ET")

	got, err := classifier.Excerpt(path, 3000)
	if err != nil {
		t.Fatalf("Excerpt: %v", err)
	}
	if got != "Bao gia may sieu am 2026" {
		t.Fatalf("unexpected excerpt %q", got)
	}

	short, err := classifier.Excerpt(path, 7)
	if err != nil || short != "Bao gia" {
		t.Fatalf("expected truncated excerpt, got %q (%v)", short, err)
	}
}

func TestExcerptMalformedPDFDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\nnot really a pdf\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := classifier.Excerpt(path, 3000); !errors.Is(err, classifier.ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestExcerptUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.tiff")
	if err := os.WriteFile(path, []byte{0x49, 0x49, 0x2a, 0x00}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := classifier.Excerpt(path, 3000); !errors.Is(err, classifier.ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}
