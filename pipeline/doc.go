// Package pipeline orchestrates ingestion and question answering.
//
// Ingest extracts text from a document, chunks it, embeds the chunks in
// concurrent sub-batches on a worker pool and upserts the resulting points in
// a single call. Any stage failure aborts the remaining stages and returns
// the originating error; nothing is rolled back.
//
// Query checks the provider, retrieves the closest chunks, and streams the
// generated answer. A retrieval miss yields a fixed fallback fragment without
// calling the generator. Errors raised while streaming are delivered as a
// final in-band fragment.
package pipeline
