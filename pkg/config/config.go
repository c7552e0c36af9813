// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the crag service configuration.
//
// Configuration comes from a YAML file (default ~/.crag/crag.yaml, created
// with defaults on first run), with environment variable overrides for the
// settings that differ per deployment. Struct tags drive validation; a
// config that fails validation never reaches a running component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/crag-labs/crag/services/agent/datatypes"
)

// validate is the shared validator instance for config structs.
var validate = validator.New()

// Config is the top-level crag configuration.
//
// Thread Safety: safe to read concurrently, not safe to modify after Load.
type Config struct {
	// Agent holds the reasoning-loop tuning knobs.
	Agent datatypes.AgentConfig `yaml:"agent"`

	// Vector configures the vector search backend.
	Vector VectorConfig `yaml:"vector"`

	// Graph configures the knowledge graph backend.
	Graph GraphConfig `yaml:"graph"`

	// LLM configures the reasoning model backend.
	LLM LLMConfig `yaml:"llm"`

	// Rerank configures the cross-encoder scoring service.
	Rerank RerankConfig `yaml:"rerank"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`
}

// VectorConfig selects and configures the vector store.
type VectorConfig struct {
	// Backend is "weaviate" or "memory".
	Backend string `yaml:"backend" validate:"required,oneof=weaviate memory"`

	// WeaviateHost is the host:port of the Weaviate instance.
	WeaviateHost string `yaml:"weaviate_host"`

	// WeaviateScheme is http or https.
	WeaviateScheme string `yaml:"weaviate_scheme" validate:"omitempty,oneof=http https"`
}

// GraphConfig selects and configures the knowledge graph store.
type GraphConfig struct {
	// Backend is "badger" or "memory".
	Backend string `yaml:"backend" validate:"required,oneof=badger memory"`

	// BadgerPath is the on-disk location of the Badger store. Supports ~
	// expansion. Ignored for the memory backend.
	BadgerPath string `yaml:"badger_path"`
}

// LLMConfig selects and configures the reasoning model.
type LLMConfig struct {
	// Backend is "ollama", "openai", or "mock".
	Backend string `yaml:"backend" validate:"required,oneof=ollama openai mock"`

	// BaseURL overrides the backend endpoint (Ollama only).
	BaseURL string `yaml:"base_url"`

	// Model names the model to use.
	Model string `yaml:"model"`
}

// RerankConfig configures the cross-encoder scoring service.
type RerankConfig struct {
	// Backend is "http" or "lexical".
	Backend string `yaml:"backend" validate:"required,oneof=http lexical"`

	// BaseURL is the scoring service endpoint (http backend).
	BaseURL string `yaml:"base_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables JSON file logging when set.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Agent: datatypes.DefaultAgentConfig(),
		Vector: VectorConfig{
			Backend:        "memory",
			WeaviateScheme: "http",
		},
		Graph: GraphConfig{
			Backend:    "memory",
			BadgerPath: "~/.crag/graph",
		},
		LLM: LLMConfig{
			Backend: "mock",
		},
		Rerank: RerankConfig{
			Backend: "lexical",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.crag/crag.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".crag", "crag.yaml"), nil
}

// Load reads the configuration from path, creating a default file on first
// run, then applies environment overrides and validates.
//
// Inputs:
//
//	path - Config file location. Empty uses DefaultPath().
//
// Outputs:
//
//	Config - The validated configuration.
//	error - File, parse, or validation errors.
func Load(path string) (Config, error) {
	var err error
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return Config{}, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Agent, err = cfg.Agent.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies the per-deployment environment variables. Only
// the settings that commonly differ between a laptop and a cluster get an
// override; everything else stays file-driven.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CRAG_VECTOR_BACKEND"); v != "" {
		cfg.Vector.Backend = v
	}
	if v := os.Getenv("CRAG_WEAVIATE_HOST"); v != "" {
		cfg.Vector.WeaviateHost = v
	}
	if v := os.Getenv("CRAG_GRAPH_BACKEND"); v != "" {
		cfg.Graph.Backend = v
	}
	if v := os.Getenv("CRAG_BADGER_PATH"); v != "" {
		cfg.Graph.BadgerPath = v
	}
	if v := os.Getenv("CRAG_LLM_BACKEND"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv("CRAG_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("CRAG_RERANK_URL"); v != "" {
		cfg.Rerank.Backend = "http"
		cfg.Rerank.BaseURL = v
	}
	if v := os.Getenv("CRAG_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CRAG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CRAG_MAX_HOPS"); v != "" {
		if hops, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxHops = hops
		}
	}
}

// writeDefault creates the config directory and writes the default file.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExpandPath expands a leading ~ to the user's home directory. Exposed for
// path-valued settings like Graph.BadgerPath.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
