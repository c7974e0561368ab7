package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

const docxBody = "word/document.xml"

// DOCX reads the main document part. Paragraphs become lines; tabs and
// breaks are kept as whitespace.
func DOCX(ctx context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %w", domain.ErrUnsupportedFormat, err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%w: docx has no %s", domain.ErrUnsupportedFormat, docxBody)
	}
	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", docxBody, err)
	}
	defer rc.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// CSV renders each row as "header: value" lines, rows separated by a blank
// line.
func CSV(_ context.Context, data []byte) (string, error) {
	text, err := Text(context.Background(), data)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("%w: parse csv: %w", domain.ErrUnsupportedFormat, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	header := rows[0]
	var sb strings.Builder
	for i, row := range rows[1:] {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		for j, v := range row {
			if j > 0 {
				sb.WriteByte('\n')
			}
			name := fmt.Sprintf("column_%d", j+1)
			if j < len(header) && strings.TrimSpace(header[j]) != "" {
				name = strings.TrimSpace(header[j])
			}
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(strings.TrimSpace(v))
		}
	}
	return sb.String(), nil
}
