package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	// MaxSheetText bounds the text rendered from one worksheet.
	MaxSheetText = 32 << 20

	maxUnzipSize    = 256 << 20
	maxUnzipXMLSize = 64 << 20
)

var (
	// ErrLegacyWorkbook is returned for BIFF (.xls) workbooks, which are not read.
	ErrLegacyWorkbook = errors.New("legacy .xls workbooks are not supported, save the file as .xlsx")

	// ErrSheetTooLarge is returned when a worksheet renders to more than MaxSheetText bytes.
	ErrSheetTooLarge = errors.New("worksheet text too large")
)

// oleMagic starts every OLE compound file, the container of BIFF workbooks.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// XLSX renders the first worksheet, in workbook order, of an Office Open XML
// workbook: one line per row, cells joined by CellSeparator. Empty cells
// inside a row are kept so columns stay aligned.
func XLSX(data []byte) (string, error) {
	if bytes.HasPrefix(data, oleMagic) {
		return "", ErrLegacyWorkbook
	}

	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{
		UnzipSizeLimit:    maxUnzipSize,
		UnzipXMLSizeLimit: maxUnzipXMLSize,
	})
	if err != nil {
		return "", fmt.Errorf("not an xlsx workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("workbook has no worksheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("worksheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var sb strings.Builder
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return "", fmt.Errorf("worksheet %q: %w", sheets[0], err)
		}
		line := joinCells(cells)
		if line == "" {
			continue
		}
		if sb.Len()+len(line)+1 > MaxSheetText {
			return "", ErrSheetTooLarge
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	if err := rows.Error(); err != nil {
		return "", fmt.Errorf("worksheet %q: %w", sheets[0], err)
	}
	return sb.String(), nil
}
