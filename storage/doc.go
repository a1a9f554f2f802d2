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


// Package storage provides the vector index abstraction for ragstream.
//
// This package defines the VectorIndex interface that decouples retrieval and
// ingestion from the storage engine, together with the pieces every backend
// shares: similarity scoring, stable ranking and the binary point codec.
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.VectorIndex interface:
//
//	idx, err := badger.Open(path)  // returns storage.VectorIndex
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB (default)
//   - storage/bolt: embedded bbolt file
//   - storage/qdrant: remote Qdrant over its REST API
//   - storage/backends: builds one of the above from configuration
//
// # Usage
//
//	idx, err := badger.OpenMemory()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	err = idx.Init(ctx, core.CollectionConfig{Name: "rag_files", Dimension: 384, Distance: core.DistanceCosine})
//
// # Thread Safety
//
// All index implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
