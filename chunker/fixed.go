package chunker

import "github.com/poiesic/ragstream/core"

// Fixed splits text into windows of at most maxLength code points, each
// starting maxLength-overlap code points after the previous one.
func Fixed(text string, maxLength, overlap int) ([]string, error) {
	if err := core.ValidateChunkParams(maxLength, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	windows := window([]rune(text), maxLength, overlap)
	spans := make([]string, len(windows))
	for i, w := range windows {
		spans[i] = string(w)
	}
	return spans, nil
}

// window slides over units. The final window ends exactly at the end of units;
// no window is emitted that is wholly contained in its predecessor.
func window[T any](units []T, maxLength, overlap int) [][]T {
	if len(units) == 0 {
		return nil
	}
	step := maxLength - overlap
	out := make([][]T, 0, len(units)/step+1)
	for start := 0; ; start += step {
		end := min(start+maxLength, len(units))
		out = append(out, units[start:end])
		if end == len(units) {
			break
		}
	}
	return out
}
