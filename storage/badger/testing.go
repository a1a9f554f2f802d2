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


package badger

import (
	"fmt"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// OpenMemory opens an in-memory index, mainly for tests.
// Closing the index discards its data.
func OpenMemory() (storage.VectorIndex, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	return newIndex(backend, true), nil
}

// NewMemoryIndexes opens one in-memory backend and returns two independent
// indexes on it, for exercising shared-collection behavior.
// Caller must close both indexes and the backend when done.
func NewMemoryIndexes() (*Index, *Index, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewIndex(backend), NewIndex(backend), backend, nil
}
