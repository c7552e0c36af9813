// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crag-labs/crag/pkg/config"
	"github.com/crag-labs/crag/services/api"
	"github.com/crag-labs/crag/services/api/observability"
	"github.com/crag-labs/crag/services/ingest"
)

// --- Global Command Variables ---
var (
	configPath    string
	traceStdout   bool
	jsonOutput    bool
	entitiesPath  string
	triplesPath   string
	ingestWorkers int

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "crag",
		Short: "A hybrid graph-and-vector reasoning engine for multi-hop questions",
		Long: `crag answers multi-hop questions by iteratively expanding a
retrieval frontier over a knowledge graph and a vector index,
guided by a language model.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return nil
		},
	}

	solveCmd = &cobra.Command{
		Use:   "solve [question]",
		Short: "Answer one question and print the reasoning outcome",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP reasoning API",
		RunE:  runServe,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Load an entity and triple corpus into the vector store and knowledge graph",
		RunE:  runIngest,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.crag/crag.yaml)")
	rootCmd.PersistentFlags().BoolVar(&traceStdout, "trace-stdout", false, "print OpenTelemetry spans to stdout")

	solveCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full session state as JSON")

	ingestCmd.Flags().StringVar(&entitiesPath, "entities", "", "JSONL file of entities (required)")
	ingestCmd.Flags().StringVar(&triplesPath, "triples", "", "JSONL file of triples")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 4, "concurrent vector upsert batches")
	_ = ingestCmd.MarkFlagRequired("entities")

	rootCmd.AddCommand(solveCmd, serveCmd, ingestCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initTracing(ctx, traceStdout)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	queryID := uuid.NewString()
	rt.Logger.Info("solving", "query_id", queryID)

	state, err := rt.Agent.Solve(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		out := map[string]any{
			"query_id":           queryID,
			"query":              state.Query,
			"answer":             state.FinalAnswer(),
			"termination_reason": state.TerminationReason().String(),
			"hop_count":          state.HopCount,
			"hypotheses":         state.Hypotheses,
			"steps":              state.Steps,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Answer: %s\n", state.FinalAnswer())
	fmt.Printf("Reason: %s (hops: %d)\n", state.TerminationReason(), state.HopCount)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initTracing(ctx, traceStdout)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	metrics := observability.InitMetrics()
	server, err := api.NewServer(rt.Agent, metrics, rt.Logger.Slog())
	if err != nil {
		return err
	}
	return server.Run(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ingestor, err := ingest.NewIngestor(rt.Upserter, rt.GraphWriter, ingestWorkers, rt.Logger.Slog())
	if err != nil {
		return err
	}

	stats, err := ingestor.Run(ctx, entitiesPath, triplesPath)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d entities (%d chunks) and %d triples\n",
		stats.Entities, stats.Chunks, stats.Triples)
	return nil
}
