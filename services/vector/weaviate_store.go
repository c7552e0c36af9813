// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var weaviateTracer = otel.Tracer("crag.vector.weaviate")

// EntityClassName is the Weaviate class holding knowledge-base entities.
const EntityClassName = "KnowledgeEntity"

// Compile-time interface implementation checks.
var (
	_ Searcher = (*WeaviateStore)(nil)
	_ Upserter = (*WeaviateStore)(nil)
)

// WeaviateStore is a Searcher backed by a Weaviate instance.
//
// # Description
//
// Uses nearText GraphQL queries so embedding computation stays inside
// Weaviate's configured vectorizer module; this process never touches
// embeddings. Hit scores are derived from the returned certainty, so higher
// remains better in line with the Searcher contract.
//
// # Thread Safety
//
// Safe for concurrent use; the underlying client is stateless per request.
type WeaviateStore struct {
	client *weaviate.Client
	class  string
}

// NewWeaviateStore creates a store over the given client.
//
// Inputs:
//
//	client - Connected Weaviate client. Must not be nil.
//
// Outputs:
//
//	*WeaviateStore - The store, querying the KnowledgeEntity class.
//	error - Non-nil if client is nil.
func NewWeaviateStore(client *weaviate.Client) (*WeaviateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate client must not be nil")
	}
	return &WeaviateStore{client: client, class: EntityClassName}, nil
}

// entityQueryResponse mirrors the GraphQL Get response shape for the
// KnowledgeEntity class.
type entityQueryResponse struct {
	Get struct {
		KnowledgeEntity []struct {
			EntityID    string `json:"entityId"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Additional  struct {
				Certainty float64 `json:"certainty"`
				Distance  float64 `json:"distance"`
			} `json:"_additional"`
		} `json:"KnowledgeEntity"`
	} `json:"Get"`
}

// Search implements Searcher via a nearText query.
func (s *WeaviateStore) Search(ctx context.Context, text string, k int) ([]Hit, error) {
	ctx, span := weaviateTracer.Start(ctx, "WeaviateStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("vector.class", s.class),
		attribute.Int("vector.k", k),
	)

	if k <= 0 {
		return nil, nil
	}

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{text})

	fields := []graphql.Field{
		{Name: "entityId"},
		{Name: "name"},
		{Name: "description"},
		{Name: "_additional { certainty distance }"},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearText query failed")
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(result.Errors) > 0 {
		err := fmt.Errorf("vector search: %s", result.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, "graphql error")
		return nil, err
	}

	hits, err := parseEntityHits(result)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("vector.hits", len(hits)))
	return hits, nil
}

// parseEntityHits converts the dynamic GraphQL response into Hits.
func parseEntityHits(result *models.GraphQLResponse) ([]Hit, error) {
	parsed, err := parseGraphQLResponse[entityQueryResponse](result)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(parsed.Get.KnowledgeEntity))
	for _, obj := range parsed.Get.KnowledgeEntity {
		if obj.EntityID == "" {
			slog.Warn("Dropping vector hit without entityId", "name", obj.Name)
			continue
		}
		score := obj.Additional.Certainty
		if score == 0 && obj.Additional.Distance > 0 {
			score = 1 / (1 + obj.Additional.Distance)
		}
		hits = append(hits, Hit{
			ID:          obj.EntityID,
			Name:        obj.Name,
			Description: obj.Description,
			Score:       score,
		})
	}
	return hits, nil
}

// Upsert implements Upserter using the batch API.
func (s *WeaviateStore) Upsert(ctx context.Context, docs []Document) error {
	ctx, span := weaviateTracer.Start(ctx, "WeaviateStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("vector.batch_size", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document id must not be empty")
		}
		objects = append(objects, &models.Object{
			Class: s.class,
			Properties: map[string]any{
				"entityId":    doc.ID,
				"name":        doc.Name,
				"description": doc.Description,
			},
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch upsert failed")
		return fmt.Errorf("vector upsert: %w", err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			err := fmt.Errorf("vector upsert: %s", obj.Result.Errors.Error[0].Message)
			span.RecordError(err)
			return err
		}
	}
	return nil
}

// parseGraphQLResponse converts Weaviate's dynamic response into a typed
// struct via a marshal/unmarshal round trip.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal GraphQL response data: %w", err)
	}
	var out T
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return nil, fmt.Errorf("unmarshal GraphQL response: %w", err)
	}
	return &out, nil
}
