package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragstream/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Recursive splits on paragraph, line and word boundaries using langchaingo's
// recursive character splitter. Any span still longer than maxLength is cut
// again with Fixed so the bound always holds.
func Recursive(text string, maxLength, overlap int) ([]string, error) {
	if err := core.ValidateChunkParams(maxLength, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(maxLength),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	spans := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= maxLength {
			spans = append(spans, piece)
			continue
		}
		parts, err := Fixed(piece, maxLength, overlap)
		if err != nil {
			return nil, err
		}
		spans = append(spans, parts...)
	}
	return spans, nil
}
