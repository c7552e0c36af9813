// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKG_NeighborsCarryRelationLabels(t *testing.T) {
	kg := NewMemoryKG()
	require.NoError(t, kg.AddNode(Node{ID: "ent-inception", Name: "Inception"}, nil))
	require.NoError(t, kg.AddNode(Node{ID: "ent-nolan", Name: "Christopher Nolan"}, nil))
	require.NoError(t, kg.AddEdge(Edge{From: "ent-inception", To: "ent-nolan", Relation: "director"}))

	neighbors, err := kg.Neighbors(context.Background(), "ent-inception")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "ent-nolan", neighbors[0].ID)
	assert.Equal(t, "director", neighbors[0].Relation)

	// Edges are undirected.
	back, err := kg.Neighbors(context.Background(), "ent-nolan")
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "ent-inception", back[0].ID)
	assert.Equal(t, "director", back[0].Relation)
}

func TestMemoryKG_EdgeCreatesMissingEndpoints(t *testing.T) {
	kg := NewMemoryKG()
	require.NoError(t, kg.AddEdge(Edge{From: "a", To: "b"}))

	assert.Equal(t, 2, kg.NodeCount())

	neighbors, err := kg.Neighbors(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "b", neighbors[0].ID)
	assert.Equal(t, "connected_to", neighbors[0].Relation)
}

func TestMemoryKG_NeighborsOfUnknownNodeIsEmpty(t *testing.T) {
	kg := NewMemoryKG()
	neighbors, err := kg.Neighbors(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestMemoryKG_SearchNodesMatchesSubstringsBothWays(t *testing.T) {
	kg := NewMemoryKG()
	require.NoError(t, kg.AddNode(Node{ID: "n1", Name: "Christopher Nolan"}, nil))
	require.NoError(t, kg.AddNode(Node{ID: "n2", Name: "Inception"}, nil))

	// Query containing the node name.
	hits, err := kg.SearchNodes(context.Background(), "who directed inception", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "n2", hits[0].ID)

	// Node name containing the query.
	hits, err = kg.SearchNodes(context.Background(), "nolan", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "n1", hits[0].ID)

	hits, err = kg.SearchNodes(context.Background(), "nolan", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryKG_NodePropertiesReturnsCopy(t *testing.T) {
	kg := NewMemoryKG()
	require.NoError(t, kg.AddNode(Node{ID: "n1", Name: "Inception"}, map[string]string{"year": "2010"}))

	props, err := kg.NodeProperties(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "2010", props["year"])

	props["year"] = "mutated"
	again, err := kg.NodeProperties(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "2010", again["year"])
}

func TestMemoryKG_RespectsCancelledContext(t *testing.T) {
	kg := NewMemoryKG()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := kg.Neighbors(ctx, "n1")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = kg.SearchNodes(ctx, "anything", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
