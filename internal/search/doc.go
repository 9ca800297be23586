// Package search implements semantic retrieval: natural-language queries
// are embedded into the same space as the indexed media, matched against
// the vector index and collapsed to one result per file.
package search
