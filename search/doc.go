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

// Package search retrieves the chunks most similar to a query.
//
// The Searcher embeds the query, searches the vector index and returns the
// ranked results together with their chunk texts as a core.ContextSet.
// A SearchMonitor can observe each stage, which the CLI uses for tracing.
// Hits whose chunk contains every significant query term are reported to
// the monitor as verbatim hits; this does not affect ranking.
package search
