// Package qdrant implements storage.VectorIndex on a remote Qdrant server
// using its REST API.
//
// Payloads carry document_id and chunk_text, plus sequence_index and
// inserted_at so results can be ordered the same way as the embedded
// backends. When an API key is configured it is sent in the api-key header.
package qdrant
