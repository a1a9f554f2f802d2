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


package core

import "errors"

// Pipeline failure taxonomy
var (
	// ErrExtractionFailure indicates a document could not be read or its type is unsupported.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrEmbeddingFailure indicates the embedding backend failed or returned malformed output.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrIndexUnavailable indicates the vector backend could not serve the request.
	// It is never equivalent to an empty result.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrConfigConflict indicates an existing collection has a different configuration.
	ErrConfigConflict = errors.New("collection config conflict")

	// ErrUnsupportedProvider indicates no generation backend is registered under the requested name.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// Domain validation errors
var (
	// ErrIndexNotReady indicates the collection has not been initialised.
	ErrIndexNotReady = errors.New("index not initialised")

	// ErrDimensionMismatch indicates a vector length differs from the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidChunkParams indicates max length or overlap are out of range.
	ErrInvalidChunkParams = errors.New("invalid chunk parameters")

	// ErrInvalidTopK indicates a search limit below 1.
	ErrInvalidTopK = errors.New("top k must be at least 1")

	// ErrEmptyQuery indicates the query text is blank.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidCollection indicates a collection config failed validation.
	ErrInvalidCollection = errors.New("invalid collection config")

	// ErrInvalidPoint indicates a point failed validation.
	ErrInvalidPoint = errors.New("invalid point")
)
