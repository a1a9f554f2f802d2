package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragstream/core"
)

// Rows packs whole lines into spans of at most maxLength code points.
// Rows are never split unless a single row exceeds maxLength, in which case
// that row alone is cut with Fixed. Overlap carries the trailing rows of the
// previous span whose joined length fits within overlap. Blank lines are dropped.
func Rows(text string, maxLength, overlap int) ([]string, error) {
	if err := core.ValidateChunkParams(maxLength, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var (
		spans []string
		cur   []string
	)

	flush := func() {
		if len(cur) > 0 {
			spans = append(spans, strings.Join(cur, "\n"))
		}
	}

	for _, row := range strings.Split(text, "\n") {
		row = strings.TrimRight(row, "\r")
		if strings.TrimSpace(row) == "" {
			continue
		}
		rowLen := utf8.RuneCountInString(row)

		if rowLen > maxLength {
			flush()
			cur = nil
			parts, err := Fixed(row, maxLength, overlap)
			if err != nil {
				return nil, err
			}
			spans = append(spans, parts...)
			continue
		}

		if len(cur) > 0 && joinedLen(cur)+1+rowLen > maxLength {
			flush()
			cur = carryRows(cur, overlap)
			for len(cur) > 0 && joinedLen(cur)+1+rowLen > maxLength {
				cur = cur[1:]
			}
		}
		cur = append(cur, row)
	}
	flush()

	return spans, nil
}

// carryRows returns the longest suffix of rows whose newline-joined length is at most limit.
func carryRows(rows []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	total := 0
	i := len(rows)
	for i > 0 {
		n := utf8.RuneCountInString(rows[i-1])
		if i < len(rows) {
			n++
		}
		if total+n > limit {
			break
		}
		total += n
		i--
	}
	carried := make([]string, len(rows)-i)
	copy(carried, rows[i:])
	return carried
}

func joinedLen(rows []string) int {
	if len(rows) == 0 {
		return 0
	}
	n := len(rows) - 1
	for _, r := range rows {
		n += utf8.RuneCountInString(r)
	}
	return n
}
