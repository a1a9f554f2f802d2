// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"time"

	"github.com/poiesic/ragstream/core"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	Data []byte

	// DocumentID is generated when empty.
	DocumentID string

	// SourceName is the original file name. Its extension selects the
	// FileType when FileType is empty or unknown.
	SourceName string
	FileType   core.FileType
}

// IngestResult reports an ingested document.
type IngestResult struct {
	Document   core.Document
	ChunkCount int
}

// Ingest extracts, chunks, embeds and indexes one document. A failure at
// any stage returns the originating error and leaves the index as it was
// before the call.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	doc := newDocument(req.DocumentID, req.SourceName, req.FileType)
	doc.Checksum = core.Checksum(req.Data)
	logger := p.logger.With("document_id", doc.ID, "file_type", doc.FileType)

	text, err := p.extractor.Extract(ctx, req.Data, doc.FileType)
	if err != nil {
		logger.Error("error extracting text", "source", req.SourceName, "err", err)
		return nil, err
	}
	logger.Debug("extracted text", "bytes", len(req.Data), "chars", len(text))

	return p.indexText(ctx, doc, text)
}

// IngestText chunks, embeds and indexes text that needs no extraction.
func (p *Pipeline) IngestText(ctx context.Context, documentID, text string, fileType core.FileType) (*IngestResult, error) {
	if fileType == "" {
		fileType = core.FileTypeText
	}
	doc := newDocument(documentID, "", fileType)
	doc.Checksum = core.Checksum([]byte(text))
	return p.indexText(ctx, doc, text)
}

func newDocument(id, sourceName string, fileType core.FileType) core.Document {
	if id == "" {
		id = core.NewDocumentID()
	}
	if fileType == "" || fileType == core.FileTypeUnknown {
		fileType = core.FileTypeFromName(sourceName)
	}
	return core.Document{
		ID:         id,
		SourceName: sourceName,
		FileType:   fileType,
		IngestedAt: time.Now().UTC(),
	}
}

func (p *Pipeline) indexText(ctx context.Context, doc core.Document, text string) (*IngestResult, error) {
	logger := p.logger.With("document_id", doc.ID)

	chunks, err := p.chunker.Chunk(doc.ID, text, doc.FileType)
	if err != nil {
		logger.Error("error chunking document", "err", err)
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Info("document produced no chunks")
		return &IngestResult{Document: doc}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	points := make([]*core.Point, len(chunks))
	for i, c := range chunks {
		points[i] = &core.Point{
			ID:     core.NewPointID(),
			Vector: vectors[i],
			Payload: core.Payload{
				DocumentID:    c.DocumentID,
				ChunkText:     c.Text,
				SequenceIndex: c.SequenceIndex,
			},
		}
	}
	if err := p.index.Upsert(ctx, points...); err != nil {
		logger.Error("error upserting points", "points", len(points), "err", err)
		return nil, err
	}

	logger.Info("ingested document", "chunks", len(chunks))
	return &IngestResult{Document: doc, ChunkCount: len(chunks)}, nil
}

// DeleteDocument removes every chunk of documentID from the index and
// returns how many were removed.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	n, err := p.index.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	p.logger.Info("deleted document", "document_id", documentID, "chunks", n)
	return n, nil
}
