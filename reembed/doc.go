// Package reembed migrates the points of a collection to a new embedding model.
//
// Every point of a source collection is re-embedded from its stored chunk
// text and upserted, with the same ID and payload, into a target collection.
// The target may be the source itself when the dimension does not change;
// otherwise a new collection is created alongside and the source is left
// untouched. Batches are retried with exponential backoff and progress is
// reported to a writer.
package reembed
