package chunker

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/poiesic/ragstream/core"
)

// DefaultEncoding is the tiktoken encoding used by the token strategy.
const DefaultEncoding = "cl100k_base"

// Encoder converts text to tokens and back.
type Encoder interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenEncoder struct {
	tk *tiktoken.Tiktoken
}

// NewTiktokenEncoder loads a tiktoken encoding by name.
// Special tokens in the input are encoded as ordinary text.
func NewTiktokenEncoder(encoding string) (Encoder, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &tiktokenEncoder{tk: tk}, nil
}

func (e *tiktokenEncoder) Encode(text string) []int {
	return e.tk.EncodeOrdinary(text)
}

func (e *tiktokenEncoder) Decode(tokens []int) string {
	return e.tk.Decode(tokens)
}

// Tokens splits text into windows of at most maxLength tokens. Window edges
// fall between whole runes: a window that would end inside a multi-byte rune
// ends before it instead, or past it when the rune alone needs more than
// maxLength tokens.
func Tokens(enc Encoder, text string, maxLength, overlap int) ([]string, error) {
	if enc == nil {
		return nil, ErrEncoderRequired
	}
	if err := core.ValidateChunkParams(maxLength, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	tokens := enc.Encode(text)
	clean := runeBoundaries(enc, tokens)

	var spans []string
	for start := 0; start < len(tokens); {
		end := min(start+maxLength, len(tokens))
		for end > start && !clean[end] {
			end--
		}
		if end == start {
			end = start + 1
			for !clean[end] {
				end++
			}
		}
		if span := enc.Decode(tokens[start:end]); span != "" {
			spans = append(spans, span)
		}
		if end == len(tokens) {
			break
		}

		next := end - overlap
		for next > start && !clean[next] {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return spans, nil
}

// runeBoundaries reports, for each position between tokens, whether the text
// decoded so far ends on a whole rune.
func runeBoundaries(enc Encoder, tokens []int) []bool {
	clean := make([]bool, len(tokens)+1)
	clean[0], clean[len(tokens)] = true, true
	for k := 1; k < len(tokens); k++ {
		piece := enc.Decode(tokens[k : k+1])
		clean[k] = piece == "" || utf8.RuneStart(piece[0])
	}
	return clean
}
