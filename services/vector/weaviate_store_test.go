// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func entityResponse(entities ...map[string]any) *models.GraphQLResponse {
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]any{
				"KnowledgeEntity": entities,
			},
		},
	}
}

func TestParseEntityHits_MapsFieldsAndCertainty(t *testing.T) {
	resp := entityResponse(
		map[string]any{
			"entityId":    "ent-inception",
			"name":        "Inception",
			"description": "A 2010 film",
			"_additional": map[string]any{"certainty": 0.92},
		},
	)

	hits, err := parseEntityHits(resp)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ent-inception", hits[0].ID)
	assert.Equal(t, "Inception", hits[0].Name)
	assert.Equal(t, "A 2010 film", hits[0].Description)
	assert.InDelta(t, 0.92, hits[0].Score, 1e-9)
}

func TestParseEntityHits_DerivesScoreFromDistance(t *testing.T) {
	resp := entityResponse(
		map[string]any{
			"entityId":    "ent-a",
			"name":        "A",
			"_additional": map[string]any{"distance": 1.0},
		},
	)

	hits, err := parseEntityHits(resp)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.5, hits[0].Score, 1e-9)
}

func TestParseEntityHits_DropsHitsWithoutEntityID(t *testing.T) {
	resp := entityResponse(
		map[string]any{"name": "orphan"},
		map[string]any{"entityId": "ent-keep", "name": "Keep"},
	)

	hits, err := parseEntityHits(resp)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ent-keep", hits[0].ID)
}

func TestParseEntityHits_EmptyResultIsEmptySlice(t *testing.T) {
	hits, err := parseEntityHits(entityResponse())
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestParseGraphQLResponse_NilResponse(t *testing.T) {
	_, err := parseGraphQLResponse[entityQueryResponse](nil)
	assert.Error(t, err)
}

func TestNewWeaviateStore_RejectsNilClient(t *testing.T) {
	_, err := NewWeaviateStore(nil)
	assert.Error(t, err)
}
