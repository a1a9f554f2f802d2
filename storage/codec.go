package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/poiesic/ragstream/core"
)

const pointCodecVersion byte = 1

// MarshalPoint serializes a point for the embedded backends.
//
// Layout: version, id (8 bytes BE), inserted_at unix nanos (8 bytes BE),
// sequence_index (uvarint), document_id and chunk_text (uvarint length +
// bytes), dimension (uvarint), then dimension float32 values (4 bytes BE each).
func MarshalPoint(p *core.Point) []byte {
	size := 1 + 8 + 8 + 3*binary.MaxVarintLen64 +
		len(p.Payload.DocumentID) + len(p.Payload.ChunkText) +
		binary.MaxVarintLen64 + 4*len(p.Vector)
	buf := make([]byte, 0, size)

	buf = append(buf, pointCodecVersion)
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.ID))
	var insertedAt int64
	if !p.Payload.InsertedAt.IsZero() {
		insertedAt = p.Payload.InsertedAt.UnixNano()
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(insertedAt))
	buf = binary.AppendUvarint(buf, uint64(p.Payload.SequenceIndex))
	buf = appendString(buf, p.Payload.DocumentID)
	buf = appendString(buf, p.Payload.ChunkText)
	buf = binary.AppendUvarint(buf, uint64(len(p.Vector)))
	for _, f := range p.Vector {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// UnmarshalPoint deserializes a point written by MarshalPoint.
func UnmarshalPoint(data []byte) (*core.Point, error) {
	r := reader{data: data}

	version := r.byte()
	if r.err == nil && version != pointCodecVersion {
		return nil, fmt.Errorf("%w: unknown point version %d", ErrSerializationFailed, version)
	}

	p := &core.Point{}
	p.ID = core.PointID(r.uint64())
	insertedAt := int64(r.uint64())
	p.Payload.SequenceIndex = int(r.uvarint())
	p.Payload.DocumentID = r.string()
	p.Payload.ChunkText = r.string()
	dim := r.uvarint()
	if r.err == nil && dim > uint64(len(r.data)-r.off)/4 {
		r.err = ErrTruncatedData
	}
	if r.err != nil {
		return nil, r.err
	}

	p.Vector = make(core.Vector, dim)
	for i := range p.Vector {
		p.Vector[i] = math.Float32frombits(binary.BigEndian.Uint32(r.data[r.off:]))
		r.off += 4
	}
	if insertedAt != 0 {
		p.Payload.InsertedAt = time.Unix(0, insertedAt).UTC()
	}
	return p, nil
}

// MarshalCollection serializes a collection configuration.
func MarshalCollection(cfg core.CollectionConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalCollection deserializes a collection configuration.
func UnmarshalCollection(data []byte) (core.CollectionConfig, error) {
	var cfg core.CollectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return cfg, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// reader decodes sequentially and latches the first error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.data) {
		r.err = ErrTruncatedData
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	if len(r.data)-r.off < 8 {
		r.err = ErrTruncatedData
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *reader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		r.err = ErrTruncatedData
		return 0
	}
	r.off += n
	return v
}

func (r *reader) string() string {
	n := r.uvarint()
	if r.err != nil {
		return ""
	}
	if n > uint64(len(r.data)-r.off) {
		r.err = ErrTruncatedData
		return ""
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s
}
