// Package extract turns raw document bytes into plain text.
//
// Each supported core.FileType has a Func. Failures of any kind, including
// unsupported types and unreadable input, wrap core.ErrExtractionFailure.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragstream/core"
)

var (
	// ErrUnsupportedType is returned for file types without a registered Func.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrNoText is returned when a document yields no text at all.
	ErrNoText = errors.New("no text extracted")

	// ErrInvalidEncoding is returned for text that is not UTF-8.
	ErrInvalidEncoding = errors.New("text is not valid UTF-8")
)

// Extractor extracts plain text from a document.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileType core.FileType) (string, error)
}

// Func extracts text from one kind of document.
type Func func(data []byte) (string, error)

// Registry dispatches to a Func by file type.
type Registry struct {
	funcs map[core.FileType]Func
}

var _ Extractor = (*Registry)(nil)

// New returns a Registry with every built-in extractor registered.
func New() *Registry {
	return &Registry{funcs: map[core.FileType]Func{
		core.FileTypeText:     Text,
		core.FileTypeMarkdown: Text,
		core.FileTypeCSV:      CSV,
		core.FileTypeExcel:    XLSX,
		core.FileTypePDF:      PDF,
	}}
}

// Register adds or replaces the Func for fileType.
func (r *Registry) Register(fileType core.FileType, fn Func) {
	r.funcs[fileType] = fn
}

// Supports reports whether fileType has a registered Func.
func (r *Registry) Supports(fileType core.FileType) bool {
	_, ok := r.funcs[fileType]
	return ok
}

// Extract runs the Func registered for fileType. Panics raised by
// third-party parsers on malformed input are reported as extraction failures.
func (r *Registry) Extract(ctx context.Context, data []byte, fileType core.FileType) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fn, ok := r.funcs[fileType]
	if !ok {
		return "", fmt.Errorf("%w: %w: %q", core.ErrExtractionFailure, ErrUnsupportedType, fileType)
	}

	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("%w: %s parser panicked: %v", core.ErrExtractionFailure, fileType, p)
		}
	}()

	text, err = fn(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtractionFailure, err)
	}
	return text, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text decodes UTF-8 text, dropping a byte order mark and normalizing line endings.
func Text(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
