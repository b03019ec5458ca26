// Package export renders tabular listings as downloadable files.
package export

import (
	"errors"
	"fmt"
	"strings"
)

// Format names a supported output.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ErrUnsupportedFormat is returned for anything other than csv or pdf.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Dataset is an ordered table: Headers fix the column order of every row.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Document is a rendered dataset.
type Document struct {
	ContentType string
	Extension   string
	Content     []byte
}

// ParseFormat accepts csv or pdf in any case; empty means csv.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Render encodes data in format.
func Render(format Format, data Dataset) (Document, error) {
	if len(data.Headers) == 0 {
		return Document{}, errors.New("export requires at least one header")
	}
	switch format {
	case FormatCSV:
		content, err := renderCSV(data)
		return Document{ContentType: "text/csv; charset=utf-8", Extension: "csv", Content: content}, err
	case FormatPDF:
		content, err := renderPDF(data)
		return Document{ContentType: "application/pdf", Extension: "pdf", Content: content}, err
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
