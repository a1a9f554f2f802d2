package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_IncrementToTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	out := buf.String()
	assert.Contains(t, out, "Reembedding")
	assert.Contains(t, out, "100/100")
	assert.Contains(t, out, "100%")
	assert.True(t, strings.HasSuffix(out, "\n"), "reaching the total ends the line")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Update(75)
	assert.Contains(t, buf.String(), "75/100")

	tracker.Finish()
	out := buf.String()
	assert.Contains(t, out, "100/100", "finish jumps to total")
	assert.True(t, strings.HasSuffix(out, "\n"), "finish ends the line")
	assert.Contains(t, out, "points/")
	assert.Equal(t, 1, strings.Count(out, "\n"))

	tracker.Finish()
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "a second finish draws nothing")
}

func TestProgressTracker_EdgeCases(t *testing.T) {
	t.Run("zero total is silent", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 0, 10)
		tracker.Start()
		tracker.Increment(1)
		tracker.Finish()
		assert.Empty(t, buf.String())
	})

	t.Run("capped at total", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Start()
		tracker.Increment(150)
		assert.Contains(t, buf.String(), "100/100")
		assert.NotContains(t, buf.String(), "150/")
	})

	t.Run("not started is silent", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 100, 10)
		tracker.Increment(10)
		tracker.Finish()
		assert.Empty(t, buf.String())
		assert.Zero(t, tracker.Elapsed())
	})

	t.Run("non-positive interval reports every item", func(t *testing.T) {
		var buf bytes.Buffer
		tracker := NewProgressTracker(&buf, 3, 0)
		tracker.Start()
		tracker.Increment(1)
		assert.Contains(t, buf.String(), "1/3")
	})
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)
	tracker.Start()
	assert.Contains(t, buf.String(), "0/1000", "start draws an empty bar")

	buf.Reset()
	tracker.Update(50)
	assert.Empty(t, buf.String(), "under the interval")

	tracker.Update(100)
	assert.Contains(t, buf.String(), "100/1000", "at the interval")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "less than an interval since the last report")

	tracker.Update(250)
	assert.Contains(t, buf.String(), "250/1000")
}
