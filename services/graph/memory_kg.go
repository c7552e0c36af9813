// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"strings"
	"sync"
)

// MemoryKG is an in-memory KnowledgeGraph backed by adjacency maps.
//
// # Description
//
// Intended for tests, demos, and corpora small enough to hold in RAM. Writes
// (AddNode, AddEdge) are expected at ingest time, before reasoning sessions
// start; reads are safe for concurrent use throughout.
type MemoryKG struct {
	mu    sync.RWMutex
	nodes map[string]Node
	props map[string]map[string]string
	// adj maps node id -> neighbor id -> relation label. Edges are stored
	// in both directions so Neighbors is a single lookup.
	adj map[string]map[string]string
}

// NewMemoryKG creates an empty in-memory knowledge graph.
func NewMemoryKG() *MemoryKG {
	return &MemoryKG{
		nodes: make(map[string]Node),
		props: make(map[string]map[string]string),
		adj:   make(map[string]map[string]string),
	}
}

// AddNode inserts or replaces a node. Empty ids are ignored. The error is
// always nil; the signature matches the persistent backend so both satisfy
// the ingest writer contract.
func (g *MemoryKG) AddNode(node Node, props map[string]string) error {
	if node.ID == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	node.Relation = ""
	g.nodes[node.ID] = node
	if props != nil {
		g.props[node.ID] = props
	}
	return nil
}

// AddEdge inserts an undirected, labeled edge. Unknown endpoints are created
// as bare nodes so neighbor lookups stay closed over the graph.
func (g *MemoryKG) AddEdge(edge Edge) error {
	if edge.From == "" || edge.To == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range []string{edge.From, edge.To} {
		if _, ok := g.nodes[id]; !ok {
			g.nodes[id] = Node{ID: id, Name: id}
		}
	}
	if g.adj[edge.From] == nil {
		g.adj[edge.From] = make(map[string]string)
	}
	if g.adj[edge.To] == nil {
		g.adj[edge.To] = make(map[string]string)
	}
	relation := edge.Relation
	if relation == "" {
		relation = "connected_to"
	}
	g.adj[edge.From][edge.To] = relation
	g.adj[edge.To][edge.From] = relation
	return nil
}

// Neighbors implements KnowledgeGraph.
func (g *MemoryKG) Neighbors(ctx context.Context, nodeID string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges, ok := g.adj[nodeID]
	if !ok {
		return nil, nil
	}
	neighbors := make([]Node, 0, len(edges))
	for id, relation := range edges {
		n := g.nodes[id]
		n.Relation = relation
		neighbors = append(neighbors, n)
	}
	return neighbors, nil
}

// SearchNodes implements KnowledgeGraph with a case-insensitive substring
// match on node names.
func (g *MemoryKG) SearchNodes(ctx context.Context, query string, limit int) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	needle := strings.ToLower(query)

	g.mu.RLock()
	defer g.mu.RUnlock()

	var results []Node
	for _, node := range g.nodes {
		if strings.Contains(strings.ToLower(node.Name), needle) ||
			strings.Contains(needle, strings.ToLower(node.Name)) {
			results = append(results, node)
			if len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// NodeProperties implements KnowledgeGraph.
func (g *MemoryKG) NodeProperties(ctx context.Context, nodeID string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	props, ok := g.props[nodeID]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}

// NodeCount returns the number of stored nodes. Used by ingest reporting.
func (g *MemoryKG) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
