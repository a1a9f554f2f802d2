package badger

import (
	"encoding/binary"
	"strconv"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Key prefixes for different data types. Collection names never contain ':'
// so every prefix below is unambiguous.
const (
	collectionPrefix = "col:"
	pointPrefix      = "pt:"
	pointIDPrefix    = "pid:"
	sequencePrefix   = "seq:"
	stagePrefix      = "stg:"
	commitPrefix     = "cmt:"
)

// makeCollectionKey generates the key holding a collection's configuration.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makePointPrefix generates the prefix shared by all points of a collection.
func makePointPrefix(name string) []byte {
	return []byte(pointPrefix + name + ":")
}

// makePointKey generates a composite key for a point in insertion order.
// Format: prefix:name:seq
func makePointKey(name string, seq uint64) []byte {
	prefix := makePointPrefix(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort matches insertion order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makePointIDKey generates the key mapping a point ID to its sequence.
// Format: prefix:name:id
func makePointIDKey(name string, id core.PointID) []byte {
	prefix := []byte(pointIDPrefix + name + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeSequenceName names the Badger sequence allocating insertion order.
func makeSequenceName(name string) string {
	return sequencePrefix + name
}

// makeStagePrefix generates the prefix shared by the staged points of one
// upsert batch. Batch IDs never contain ':'.
func makeStagePrefix(name, batch string) []byte {
	return []byte(stagePrefix + name + ":" + batch + ":")
}

// makeStageKey generates the key of the n-th staged point of a batch.
// Format: prefix:name:batch:n
func makeStageKey(name, batch string, n uint64) []byte {
	return binary.BigEndian.AppendUint64(makeStagePrefix(name, batch), n)
}

// batchFromStageKey extracts the batch ID from a staged point key.
func batchFromStageKey(name string, key []byte) string {
	return string(key[len(stagePrefix)+len(name)+1 : len(key)-9])
}

// makeCommitKey generates the marker that makes a staged batch durable.
func makeCommitKey(name, batch string) []byte {
	return []byte(commitPrefix + name + ":" + batch)
}

// seqFromPointKey extracts the sequence from a point key.
func seqFromPointKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

func encodeSeq(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

func decodeSeq(val []byte) uint64 {
	return binary.BigEndian.Uint64(val)
}

func cursorFromSeq(seq uint64) storage.Cursor {
	return storage.Cursor(strconv.FormatUint(seq, 10))
}

func seqFromCursor(c storage.Cursor) (uint64, bool, error) {
	if c == "" {
		return 0, false, nil
	}
	seq, err := strconv.ParseUint(string(c), 10, 64)
	if err != nil {
		return 0, false, storage.ErrInvalidCursor
	}
	return seq, true, nil
}
