// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph defines the knowledge-graph contract the retrieval layer
// depends on, plus two implementations: an in-memory graph for tests and
// small corpora, and a BadgerDB-backed graph for persistent local knowledge
// bases.
package graph

import "context"

// Node is a knowledge-graph node as returned by lookups. Relation is set on
// neighbor results and names the edge that reached the node.
type Node struct {
	// ID is the stable node identifier.
	ID string `json:"id"`

	// Name is the node's display label.
	Name string `json:"name"`

	// Description is the node's descriptive text, if any.
	Description string `json:"description,omitempty"`

	// Relation is the label of the edge that produced this node in a
	// neighbor lookup. Empty for search results.
	Relation string `json:"relation,omitempty"`
}

// Edge is a directed, labeled connection between two nodes. Used at ingest
// time.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// KnowledgeGraph is the neighbor-lookup contract the hybrid retriever uses.
//
// # Contract
//
//   - Neighbors returns zero or more 1-hop neighbors of the node; order is
//     not guaranteed and callers must not rely on it.
//   - SearchNodes matches nodes by name text; at most limit results.
//   - Both return empty slices, not errors, when nothing matches.
//
// # Thread Safety
//
// Implementations must be safe for concurrent read access; a single graph is
// shared by every concurrently running reasoning session.
type KnowledgeGraph interface {
	// Neighbors returns the 1-hop neighbors of the node.
	Neighbors(ctx context.Context, nodeID string) ([]Node, error)

	// SearchNodes finds nodes whose name matches the query text.
	SearchNodes(ctx context.Context, query string, limit int) ([]Node, error)

	// NodeProperties returns the stored attributes of one node, or nil if
	// the node does not exist.
	NodeProperties(ctx context.Context, nodeID string) (map[string]string, error)
}
