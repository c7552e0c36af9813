// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest builds the retrieval corpus: it loads entities and triples
// from JSONL files, chunks long descriptions, and populates the vector store
// and the knowledge graph that the reasoning loop searches.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"

	"github.com/crag-labs/crag/services/graph"
	"github.com/crag-labs/crag/services/vector"
)

// Chunking parameters for long entity descriptions. Overlap is 10% of the
// chunk size so a fact split across a boundary stays findable.
const (
	chunkSize    = 1000
	chunkOverlap = chunkSize / 10
)

// upsertBatchSize is how many documents go to the vector store per call.
const upsertBatchSize = 64

// Entity is one JSONL corpus record describing a knowledge graph node.
type Entity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Triple is one JSONL corpus record describing a knowledge graph edge.
type Triple struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Relation string `json:"relation"`
}

// GraphWriter is the mutation surface of a knowledge graph store. Both the
// in-memory and the Badger-backed graphs satisfy it.
type GraphWriter interface {
	AddNode(node graph.Node, props map[string]string) error
	AddEdge(edge graph.Edge) error
}

// Stats summarizes one ingest run.
type Stats struct {
	Entities int
	Triples  int
	Chunks   int
}

// Ingestor loads a corpus into the vector store and knowledge graph.
type Ingestor struct {
	upserter vector.Upserter
	kg       GraphWriter
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
	workers  int
}

// NewIngestor creates the ingestor.
//
// Inputs:
//
//	upserter - Vector store write side. Must not be nil.
//	kg - Knowledge graph write side. Must not be nil.
//	workers - Concurrent upsert batches. Values below 1 become 1.
//	logger - Structured logger; nil uses slog.Default().
func NewIngestor(upserter vector.Upserter, kg GraphWriter, workers int, logger *slog.Logger) (*Ingestor, error) {
	if upserter == nil {
		return nil, fmt.Errorf("upserter must not be nil")
	}
	if kg == nil {
		return nil, fmt.Errorf("graph writer must not be nil")
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		upserter: upserter,
		kg:       kg,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger:  logger,
		workers: workers,
	}, nil
}

// Run ingests a corpus from the entity and triple files.
//
// Description:
//
//	Entities are written to both stores: the knowledge graph gets one node
//	per entity, the vector store gets one document per description chunk
//	(chunk ids are "{id}#0", "{id}#1", ... when splitting occurs; a short
//	description keeps the plain entity id). Triples are applied after all
//	nodes exist. Vector batches upload concurrently; the graph writes stay
//	sequential because both backends serialize writes anyway.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	entitiesPath - JSONL file of Entity records.
//	triplesPath - JSONL file of Triple records. Empty skips edges.
//
// Outputs:
//
//	Stats - Counts of what was ingested.
//	error - The first failure; ingestion stops at it.
func (in *Ingestor) Run(ctx context.Context, entitiesPath, triplesPath string) (Stats, error) {
	var stats Stats

	entities, err := readJSONLines[Entity](entitiesPath)
	if err != nil {
		return stats, fmt.Errorf("load entities: %w", err)
	}

	docs := make([]vector.Document, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			return stats, fmt.Errorf("entity %q has no id", e.Name)
		}
		if err := in.kg.AddNode(graph.Node{ID: e.ID, Name: e.Name, Description: e.Description}, e.Properties); err != nil {
			return stats, fmt.Errorf("add node %s: %w", e.ID, err)
		}
		chunks, err := in.chunkEntity(e)
		if err != nil {
			return stats, fmt.Errorf("chunk entity %s: %w", e.ID, err)
		}
		docs = append(docs, chunks...)
		stats.Entities++
	}
	stats.Chunks = len(docs)

	if err := in.upsertConcurrently(ctx, docs); err != nil {
		return stats, err
	}

	if triplesPath != "" {
		triples, err := readJSONLines[Triple](triplesPath)
		if err != nil {
			return stats, fmt.Errorf("load triples: %w", err)
		}
		for _, tr := range triples {
			if tr.SourceID == "" || tr.TargetID == "" {
				return stats, fmt.Errorf("triple %+v missing endpoint", tr)
			}
			if err := in.kg.AddEdge(graph.Edge{From: tr.SourceID, To: tr.TargetID, Relation: tr.Relation}); err != nil {
				return stats, fmt.Errorf("add edge %s -> %s: %w", tr.SourceID, tr.TargetID, err)
			}
			stats.Triples++
		}
	}

	in.logger.Info("ingest complete",
		"entities", stats.Entities,
		"chunks", stats.Chunks,
		"triples", stats.Triples)
	return stats, nil
}

// chunkEntity turns one entity into one or more vector documents.
func (in *Ingestor) chunkEntity(e Entity) ([]vector.Document, error) {
	if len(e.Description) <= chunkSize {
		return []vector.Document{{ID: e.ID, Name: e.Name, Description: e.Description}}, nil
	}
	pieces, err := in.splitter.SplitText(e.Description)
	if err != nil {
		return nil, err
	}
	docs := make([]vector.Document, 0, len(pieces))
	for i, piece := range pieces {
		docs = append(docs, vector.Document{
			ID:          fmt.Sprintf("%s#%d", e.ID, i),
			Name:        e.Name,
			Description: piece,
		})
	}
	return docs, nil
}

// upsertConcurrently uploads documents in bounded parallel batches.
func (in *Ingestor) upsertConcurrently(ctx context.Context, docs []vector.Document) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for start := 0; start < len(docs); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		g.Go(func() error {
			if err := in.upserter.Upsert(ctx, batch); err != nil {
				return fmt.Errorf("upsert batch of %d: %w", len(batch), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// readJSONLines decodes one record per line, skipping blank lines.
func readJSONLines[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeJSONLines[T](f)
}

func decodeJSONLines[T any](r io.Reader) ([]T, error) {
	var out []T
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(text, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
