// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/crag-labs/crag/pkg/config"
	"github.com/crag-labs/crag/pkg/logging"
	"github.com/crag-labs/crag/services/agent"
	"github.com/crag-labs/crag/services/graph"
	"github.com/crag-labs/crag/services/ingest"
	"github.com/crag-labs/crag/services/llm"
	"github.com/crag-labs/crag/services/rerank"
	"github.com/crag-labs/crag/services/retrieval"
	"github.com/crag-labs/crag/services/vector"
)

// runtime bundles the wired collaborators a command needs. Close releases
// any resources holding OS handles (Badger, log files).
type runtime struct {
	Agent       *agent.CognitiveAgent
	Upserter    vector.Upserter
	GraphWriter ingest.GraphWriter
	Logger      *logging.Logger

	closers []func() error
}

// Close releases runtime resources in reverse acquisition order.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.Logger.Warn("close failed", "error", err)
		}
	}
}

// # Description
//
//	buildRuntime constructs every backend the configuration selects and
//	wires them into a ready CognitiveAgent. Construction is fail-fast: the
//	first backend that cannot be built aborts the command.
//
// # Inputs
//
//	cfg - Validated configuration (config.Load has already run).
//
// # Outputs
//
//	*runtime - Wired collaborators. Caller must Close.
//	error - Backend construction or agent validation failure.
func buildRuntime(cfg config.Config) (*runtime, error) {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "crag",
		JSON:    cfg.Logging.JSON,
	})

	rt := &runtime{Logger: logger}
	rt.closers = append(rt.closers, logger.Close)

	store, err := buildVectorStore(cfg.Vector)
	if err != nil {
		rt.Close()
		return nil, err
	}

	kg, kgCloser, err := buildGraph(cfg.Graph)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if kgCloser != nil {
		rt.closers = append(rt.closers, kgCloser)
	}

	llmClient, err := buildLLM(cfg.LLM)
	if err != nil {
		rt.Close()
		return nil, err
	}

	scorer, err := buildScorer(cfg.Rerank)
	if err != nil {
		rt.Close()
		return nil, err
	}

	hrm, err := retrieval.NewHybridRetrievalModule(store, kg)
	if err != nil {
		rt.Close()
		return nil, err
	}

	reranker, err := retrieval.NewRerankerAdapter(scorer, cfg.Agent.UseReranker)
	if err != nil {
		rt.Close()
		return nil, err
	}

	a, err := agent.NewCognitiveAgent(hrm, reranker, llmClient, cfg.Agent, logger.Slog())
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Agent = a
	rt.Upserter = store
	rt.GraphWriter = kg

	logger.Info("runtime ready",
		"vector_backend", cfg.Vector.Backend,
		"graph_backend", cfg.Graph.Backend,
		"llm_backend", cfg.LLM.Backend,
		"rerank_backend", cfg.Rerank.Backend,
	)
	return rt, nil
}

// vectorStore is the intersection of capabilities the commands need from a
// vector backend: search for solving, upsert for ingestion.
type vectorStore interface {
	vector.Searcher
	vector.Upserter
}

func buildVectorStore(cfg config.VectorConfig) (vectorStore, error) {
	switch cfg.Backend {
	case "weaviate":
		client, err := weaviate.NewClient(weaviate.Config{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
		})
		if err != nil {
			return nil, fmt.Errorf("weaviate client: %w", err)
		}
		return vector.NewWeaviateStore(client)
	case "memory":
		return vector.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

// knowledgeStore is a knowledge graph that also accepts writes, so the same
// backend serves both the agent and the ingestor.
type knowledgeStore interface {
	graph.KnowledgeGraph
	ingest.GraphWriter
}

func buildGraph(cfg config.GraphConfig) (knowledgeStore, func() error, error) {
	switch cfg.Backend {
	case "badger":
		kg, err := graph.OpenBadgerKG(graph.DefaultBadgerConfig(config.ExpandPath(cfg.BadgerPath)))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger graph: %w", err)
		}
		return kg, kg.Close, nil
	case "memory":
		return graph.NewMemoryKG(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown graph backend %q", cfg.Backend)
	}
}

func buildLLM(cfg config.LLMConfig) (llm.LLMClient, error) {
	switch cfg.Backend {
	case "ollama":
		if cfg.BaseURL != "" {
			return llm.NewOllamaClientWith(cfg.BaseURL, cfg.Model)
		}
		return llm.NewOllamaClient()
	case "openai":
		return llm.NewOpenAIClient()
	case "mock":
		return llm.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

func buildScorer(cfg config.RerankConfig) (rerank.Scorer, error) {
	switch cfg.Backend {
	case "http":
		return rerank.NewHTTPScorer(cfg.BaseURL)
	case "lexical":
		return rerank.NewLexicalScorer(), nil
	default:
		return nil, fmt.Errorf("unknown rerank backend %q", cfg.Backend)
	}
}
