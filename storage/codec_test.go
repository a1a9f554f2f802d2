package storage

import (
	"testing"
	"time"

	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointCodec(t *testing.T) {
	inserted := time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC)
	p := &core.Point{
		ID:     core.PointID(0xdeadbeefcafef00d),
		Vector: core.Vector{0.25, -1.5, 3.0, 0},
		Payload: core.Payload{
			DocumentID:    "doc-42",
			ChunkText:     "héllo | wörld",
			SequenceIndex: 7,
			InsertedAt:    inserted,
		},
	}

	got, err := UnmarshalPoint(MarshalPoint(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPointCodec_ZeroTime(t *testing.T) {
	p := &core.Point{ID: 1, Vector: core.Vector{1}}

	got, err := UnmarshalPoint(MarshalPoint(p))
	require.NoError(t, err)
	assert.True(t, got.Payload.InsertedAt.IsZero())
}

func TestPointCodec_Truncated(t *testing.T) {
	data := MarshalPoint(&core.Point{
		ID:      9,
		Vector:  core.Vector{1, 2, 3},
		Payload: core.Payload{DocumentID: "d", ChunkText: "text"},
	})

	for _, n := range []int{0, 1, 9, 17, len(data) - 1} {
		_, err := UnmarshalPoint(data[:n])
		assert.ErrorIs(t, err, ErrTruncatedData, "length %d", n)
	}
}

func TestPointCodec_UnknownVersion(t *testing.T) {
	data := MarshalPoint(&core.Point{ID: 1, Vector: core.Vector{1}})
	data[0] = 99

	_, err := UnmarshalPoint(data)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestCollectionCodec(t *testing.T) {
	cfg := core.CollectionConfig{Name: "rag_files", Dimension: 384, Distance: core.DistanceCosine}

	data, err := MarshalCollection(cfg)
	require.NoError(t, err)
	got, err := UnmarshalCollection(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = UnmarshalCollection([]byte("{not json"))
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
