package search

import (
	"github.com/poiesic/ragstream/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(vector core.Vector)
	AfterIndexSearch(results []*core.SearchResult)
	Hit(result *core.SearchResult, verbatim bool)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterEmbedding(_ core.Vector)            {}
func (n *noopMonitor) AfterIndexSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) Hit(_ *core.SearchResult, _ bool)        {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)           {}
