// Package extract turns uploaded file bytes into plain text. The loader is
// chosen by file extension; anything without a dedicated loader is read as
// UTF-8 text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// Loader extracts text from one file format.
type Loader func(ctx context.Context, data []byte) (string, error)

// Extractor dispatches on file extension.
type Extractor struct {
	loaders map[string]Loader
}

// New returns an extractor with the built-in loaders for
// .pdf, .docx and .csv.
func New() *Extractor {
	return &Extractor{loaders: map[string]Loader{
		".pdf":  PDF,
		".docx": DOCX,
		".csv":  CSV,
	}}
}

// Register adds or replaces the loader for ext (with leading dot).
func (e *Extractor) Register(ext string, l Loader) {
	e.loaders[strings.ToLower(ext)] = l
}

// Extract returns the text of filename's content.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".doc" {
		return "", fmt.Errorf("%w: %s: legacy .doc is not supported", domain.ErrUnsupportedFormat, filename)
	}
	load, ok := e.loaders[ext]
	if !ok {
		load = Text
	}
	text, err := load(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return text, nil
}

// Text accepts valid UTF-8 and strips a leading byte order mark.
func Text(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not UTF-8 text", domain.ErrUnsupportedFormat)
	}
	return string(data), nil
}

// PDF extracts the plain text layer of every page. Malformed content
// streams make the parser panic; that is reported as an error.
func PDF(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", domain.ErrUnsupportedFormat, r)
		}
	}()
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %w", domain.ErrUnsupportedFormat, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("read pdf buffer: %w", err)
	}
	return buf.String(), nil
}
