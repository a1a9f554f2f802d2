package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runeEncoder treats every code point as one token.
type runeEncoder struct{}

func (runeEncoder) Encode(text string) []int {
	out := make([]int, 0, len(text))
	for _, r := range text {
		out = append(out, int(r))
	}
	return out
}

func (runeEncoder) Decode(tokens []int) string {
	rs := make([]rune, len(tokens))
	for i, t := range tokens {
		rs[i] = rune(t)
	}
	return string(rs)
}

// byteEncoder treats every byte as one token, the way byte-level BPE
// tokenizers split runes they have no merge for.
type byteEncoder struct{}

func (byteEncoder) Encode(text string) []int {
	out := make([]int, len(text))
	for i := range len(text) {
		out[i] = int(text[i])
	}
	return out
}

func (byteEncoder) Decode(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		b[i] = byte(t)
	}
	return string(b)
}

func TestFixed(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLength int
		overlap   int
		want      []string
	}{
		{name: "empty", text: "", maxLength: 10, overlap: 0, want: nil},
		{name: "shorter than window", text: "abc", maxLength: 10, overlap: 2, want: []string{"abc"}},
		{name: "exact fit", text: "abcd", maxLength: 4, overlap: 0, want: []string{"abcd"}},
		{name: "overlap ends on boundary", text: "abcdefghij", maxLength: 4, overlap: 1, want: []string{"abcd", "defg", "ghij"}},
		{name: "overlap with tail", text: "abcdefghijk", maxLength: 4, overlap: 1, want: []string{"abcd", "defg", "ghij", "jk"}},
		{name: "unicode counted by code point", text: "héllo wörld", maxLength: 6, overlap: 0, want: []string{"héllo ", "wörld"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fixed(tt.text, tt.maxLength, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixed_LongDocument(t *testing.T) {
	text := strings.Repeat("x", 2150)

	spans, err := Fixed(text, 1000, 0)
	require.NoError(t, err)
	require.Len(t, spans, 3)
	assert.Len(t, spans[0], 1000)
	assert.Len(t, spans[1], 1000)
	assert.Len(t, spans[2], 150)
}

func TestFixed_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 40)
	a, err := Fixed(text, 64, 8)
	require.NoError(t, err)
	b, err := Fixed(text, 64, 8)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFixed_InvalidParams(t *testing.T) {
	cases := []struct{ max, overlap int }{
		{0, 0},
		{-5, 0},
		{10, -1},
		{10, 10},
		{10, 11},
	}
	for _, c := range cases {
		_, err := Fixed("some text", c.max, c.overlap)
		assert.ErrorIs(t, err, core.ErrInvalidChunkParams, "max=%d overlap=%d", c.max, c.overlap)
	}
}

func TestRows(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLength int
		overlap   int
		want      []string
	}{
		{
			name:      "packs whole rows",
			text:      "a,1\nb,2\nc,3\n",
			maxLength: 7,
			overlap:   0,
			want:      []string{"a,1\nb,2", "c,3"},
		},
		{
			name:      "carries trailing rows as overlap",
			text:      "a,1\nb,2\nc,3",
			maxLength: 7,
			overlap:   3,
			want:      []string{"a,1\nb,2", "b,2\nc,3"},
		},
		{
			name:      "oversized row is cut alone",
			text:      "ab\nlongrowvalue\ncd",
			maxLength: 5,
			overlap:   0,
			want:      []string{"ab", "longr", "owval", "ue", "cd"},
		},
		{
			name:      "blank lines and carriage returns dropped",
			text:      "a,1\r\n\r\n\nb,2\r\n",
			maxLength: 20,
			overlap:   0,
			want:      []string{"a,1\nb,2"},
		},
		{
			name:      "empty",
			text:      "",
			maxLength: 10,
			overlap:   0,
			want:      nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rows(tt.text, tt.maxLength, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRows_NeverSplitsFittingRows(t *testing.T) {
	var rows []string
	for i := range 50 {
		rows = append(rows, strings.Repeat(string(rune('a'+i%26)), 5+i%7)+",value")
	}
	text := strings.Join(rows, "\n")

	spans, err := Rows(text, 40, 12)
	require.NoError(t, err)
	require.NotEmpty(t, spans)

	for _, span := range spans {
		assert.LessOrEqual(t, utf8.RuneCountInString(span), 40)
		for _, line := range strings.Split(span, "\n") {
			assert.Contains(t, rows, line)
		}
	}
	assert.True(t, strings.HasPrefix(spans[0], rows[0]))
	assert.True(t, strings.HasSuffix(spans[len(spans)-1], rows[len(rows)-1]))
}

func TestRecursive(t *testing.T) {
	text := "First paragraph talks about apples.\n\n" +
		"Second paragraph talks about oranges and is a bit longer than the first one.\n\n" +
		strings.Repeat("z", 120)

	spans, err := Recursive(text, 50, 5)
	require.NoError(t, err)
	require.NotEmpty(t, spans)
	for _, span := range spans {
		assert.NotEmpty(t, strings.TrimSpace(span))
		assert.LessOrEqual(t, utf8.RuneCountInString(span), 50)
	}
	assert.Contains(t, spans[0], "First paragraph")

	spans, err = Recursive("", 50, 5)
	require.NoError(t, err)
	assert.Empty(t, spans)

	_, err = Recursive(text, 10, 10)
	assert.ErrorIs(t, err, core.ErrInvalidChunkParams)
}

func TestTokens(t *testing.T) {
	spans, err := Tokens(runeEncoder{}, "abcdefghij", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, spans)

	spans, err = Tokens(runeEncoder{}, "", 4, 1)
	require.NoError(t, err)
	assert.Empty(t, spans)

	_, err = Tokens(nil, "abc", 4, 1)
	assert.ErrorIs(t, err, ErrEncoderRequired)

	_, err = Tokens(runeEncoder{}, "abc", 4, 4)
	assert.ErrorIs(t, err, core.ErrInvalidChunkParams)
}

func TestTokens_WholeRunes(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLength int
		overlap   int
		want      []string
	}{
		{name: "window ends inside a rune", text: "abcé", maxLength: 4, overlap: 0, want: []string{"abc", "é"}},
		{name: "overlap starts inside a rune", text: "aéb", maxLength: 2, overlap: 1, want: []string{"a", "é", "b"}},
		{name: "rune longer than a window", text: "€x", maxLength: 1, overlap: 0, want: []string{"€", "x"}},
		{name: "ascii is unaffected", text: "abcdefghij", maxLength: 4, overlap: 1, want: []string{"abcd", "defg", "ghij"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, err := Tokens(byteEncoder{}, tt.text, tt.maxLength, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spans)
			for _, span := range spans {
				assert.True(t, utf8.ValidString(span), "span %q", span)
			}
		})
	}
}

func TestTokens_KeepsEveryRune(t *testing.T) {
	text := strings.Repeat("añb€c😀", 40)
	spans, err := Tokens(byteEncoder{}, text, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, text, strings.Join(spans, ""))
}

func TestNew(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLength, c.MaxLength())
	assert.Equal(t, DefaultOverlap, c.Overlap())
	assert.Equal(t, StrategyFixed, c.Strategy())

	_, err = New(WithMaxLength(10), WithOverlap(10))
	assert.ErrorIs(t, err, core.ErrInvalidChunkParams)

	_, err = New(WithStrategy("sentences"))
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	c, err = New(WithStrategy(StrategyTokens), WithEncoder(runeEncoder{}))
	require.NoError(t, err)
	assert.Equal(t, StrategyTokens, c.Strategy())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFixed, s)

	s, err = ParseStrategy(" Recursive ")
	require.NoError(t, err)
	assert.Equal(t, StrategyRecursive, s)

	_, err = ParseStrategy("nope")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestChunker_Chunk(t *testing.T) {
	c, err := New(WithMaxLength(7), WithOverlap(0))
	require.NoError(t, err)

	t.Run("text uses fixed windows", func(t *testing.T) {
		chunks, err := c.Chunk("doc-1", "abcdefghij", core.FileTypeText)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, core.Chunk{DocumentID: "doc-1", Text: "abcdefg", SequenceIndex: 0}, chunks[0])
		assert.Equal(t, core.Chunk{DocumentID: "doc-1", Text: "hij", SequenceIndex: 1}, chunks[1])
	})

	t.Run("tabular uses rows", func(t *testing.T) {
		chunks, err := c.Chunk("doc-2", "a,1\nb,2\nc,3", core.FileTypeCSV)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "a,1\nb,2", chunks[0].Text)
		assert.Equal(t, "c,3", chunks[1].Text)
		assert.Equal(t, 1, chunks[1].SequenceIndex)
	})

	t.Run("empty text yields no chunks", func(t *testing.T) {
		chunks, err := c.Chunk("doc-3", "", core.FileTypeText)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}
