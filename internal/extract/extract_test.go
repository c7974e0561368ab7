package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxBody)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_TextFallback(t *testing.T) {
	e := New()
	got, err := e.Extract(context.Background(), "notes.md", []byte("\xef\xbb\xbf# Title\nbody"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "# Title\nbody" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_BinaryRejected(t *testing.T) {
	_, err := New().Extract(context.Background(), "blob.bin", []byte{0xff, 0xfe, 0x00, 0x81})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestExtract_LegacyDoc(t *testing.T) {
	_, err := New().Extract(context.Background(), "old.DOC", []byte("x"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("error = %v", err)
	}
}

func TestExtract_DOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/><w:t>world</w:t></w:r></w:p>
<w:p><w:r><w:t>Second line</w:t></w:r></w:p>
</w:body></w:document>`
	got, err := New().Extract(context.Background(), "Report.DOCX", buildDOCX(t, doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello\tworld\nSecond line" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_DOCXNotZip(t *testing.T) {
	_, err := New().Extract(context.Background(), "x.docx", []byte("plain"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("error = %v", err)
	}
}

func TestExtract_CSV(t *testing.T) {
	data := "name,city\nAda,London\nLin,\n"
	got, err := New().Extract(context.Background(), "people.csv", []byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "name: Ada\ncity: London\n\nname: Lin\ncity: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_PDFInvalid(t *testing.T) {
	_, err := New().Extract(context.Background(), "broken.pdf", []byte("this is not a pdf document"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("error = %v", err)
	}
}

func TestRegister_Override(t *testing.T) {
	e := New()
	e.Register(".TXT", func(context.Context, []byte) (string, error) { return "custom", nil })
	got, _ := e.Extract(context.Background(), "a.txt", []byte("x"))
	if got != "custom" {
		t.Errorf("got %q", got)
	}
}
