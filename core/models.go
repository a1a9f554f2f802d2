package core

import (
	"encoding/binary"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// PointID identifies a point inside a vector collection.
// It is drawn from a random source and never derived from content.
type PointID uint64

// NewPointID returns the upper 64 bits of a random UUIDv4.
func NewPointID() PointID {
	u := uuid.New()
	return PointID(binary.BigEndian.Uint64(u[:8]))
}

// NewDocumentID generates a globally unique document identifier.
func NewDocumentID() string {
	return uuid.NewString()
}

// Checksum returns the hex encoded BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Vector is a fixed-dimension embedding.
type Vector = []float32

// FileType classifies a source document for extraction and chunking.
type FileType string

const (
	FileTypeUnknown  FileType = "unknown"
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypePDF      FileType = "pdf"
	FileTypeCSV      FileType = "csv"
	FileTypeExcel    FileType = "excel"
)

// FileTypeFromName maps a file name to a FileType by extension.
func FileTypeFromName(name string) FileType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return FileTypeExcel
	case ".csv", ".tsv":
		return FileTypeCSV
	case ".pdf":
		return FileTypePDF
	case ".md", ".markdown":
		return FileTypeMarkdown
	case ".txt", ".text", ".log":
		return FileTypeText
	default:
		return FileTypeUnknown
	}
}

// ParseFileType accepts a file type name or a file name and returns the matching FileType.
func ParseFileType(hint string) FileType {
	switch ft := FileType(strings.ToLower(strings.TrimSpace(hint))); ft {
	case FileTypeText, FileTypeMarkdown, FileTypePDF, FileTypeCSV, FileTypeExcel:
		return ft
	case "xlsx", "xls":
		return FileTypeExcel
	case "tsv":
		return FileTypeCSV
	case "txt":
		return FileTypeText
	case "md":
		return FileTypeMarkdown
	}
	return FileTypeFromName(hint)
}

// IsTabular reports whether documents of this type are made of row records.
func (ft FileType) IsTabular() bool {
	return ft == FileTypeCSV || ft == FileTypeExcel
}

// Document describes one ingested source.
type Document struct {
	ID         string
	SourceName string
	FileType   FileType
	Checksum   string    // BLAKE2b-256 of the raw bytes, informational
	IngestedAt time.Time
}

// Chunk is a bounded span of a document's text.
type Chunk struct {
	DocumentID    string
	Text          string
	SequenceIndex int // position in the original document, starting at 0
}

// Payload is the metadata stored alongside each vector.
type Payload struct {
	DocumentID    string    `json:"document_id"`
	ChunkText     string    `json:"chunk_text"`
	SequenceIndex int       `json:"sequence_index"`
	InsertedAt    time.Time `json:"inserted_at"`
}

// Point is a vector with its payload, owned by a vector index once upserted.
type Point struct {
	ID      PointID
	Vector  Vector
	Payload Payload
}

// SearchResult is a point returned by a similarity search.
type SearchResult struct {
	Point *Point
	Score float32
}

// Query is an ephemeral question against the index.
type Query struct {
	Text       string
	Provider   string
	TopK       int
	DocumentID string // optional filter
}

// ContextSet holds retrieved chunk texts ranked by similarity, descending.
type ContextSet []string

// ContextFromResults extracts the chunk texts of results, preserving order.
func ContextFromResults(results []*SearchResult) ContextSet {
	out := make(ContextSet, 0, len(results))
	for _, r := range results {
		if r == nil || r.Point == nil {
			continue
		}
		out = append(out, r.Point.Payload.ChunkText)
	}
	return out
}

// Distance is the similarity metric of a collection.
type Distance string

const (
	DistanceCosine Distance = "cosine"
	DistanceDot    Distance = "dot"
	DistanceEuclid Distance = "euclid"
)

// ParseDistance normalizes a distance name. Empty input selects cosine.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return DistanceCosine, nil
	case "dot":
		return DistanceDot, nil
	case "euclid", "euclidean":
		return DistanceEuclid, nil
	}
	return "", ErrInvalidCollection
}

// CollectionConfig describes one named vector collection.
type CollectionConfig struct {
	Name      string   `json:"name"`
	Dimension int      `json:"dimension"`
	Distance  Distance `json:"distance"`
}

// Equal reports whether two configs describe the same collection layout.
func (c CollectionConfig) Equal(other CollectionConfig) bool {
	return c.Name == other.Name && c.Dimension == other.Dimension && c.Distance == other.Distance
}
