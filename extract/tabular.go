package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// CellSeparator joins the cells of a row in extracted tabular text.
const CellSeparator = " | "

// CSV renders comma or tab separated values as one line per row with cells
// joined by CellSeparator. Blank rows are skipped.
func CSV(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var rows []string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if row := joinCells(record); row != "" {
			rows = append(rows, row)
		}
	}
	return strings.Join(rows, "\n"), nil
}

// sniffDelimiter picks tab when the first line has more tabs than commas.
func sniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(line, []byte("\t")) > bytes.Count(line, []byte(",")) {
		return '\t'
	}
	return ','
}

// joinCells trims cells, drops trailing empty ones and joins the rest.
// A row with no content returns "".
func joinCells(cells []string) string {
	last := -1
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
		if cells[i] != "" {
			last = i
		}
	}
	if last < 0 {
		return ""
	}
	return strings.Join(cells[:last+1], CellSeparator)
}
