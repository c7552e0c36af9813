// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"time"
)

// Tuning-knob bounds. Values above a bound are clamped at construction,
// never rejected; values below the minimum are configuration errors.
const (
	// MaxHopsCeiling bounds the hop budget.
	MaxHopsCeiling = 10

	// MaxExpansionsCeiling bounds frontier expansion per hop.
	MaxExpansionsCeiling = 20

	// RerankTopKCeiling bounds the retained working-set size.
	RerankTopKCeiling = 50
)

// ConfigurationError reports an agent configuration value that violates its
// constraint. Raised at construction time, before any retrieval happens.
type ConfigurationError struct {
	// Field is the offending configuration field name.
	Field string

	// Value is the rejected value.
	Value int

	// Constraint describes what the field requires.
	Constraint string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%d (%s)", e.Field, e.Value, e.Constraint)
}

// AgentConfig carries the tuning knobs for one reasoning agent.
//
// Out-of-range handling follows a single documented policy: values below the
// minimum are hard errors, values above the ceiling are clamped. The source
// material clamped in one layer and left another unchecked; here Validate is
// the only gate and the agent constructor always calls it.
type AgentConfig struct {
	// MaxHops is the think-act-observe hop budget. Minimum 1, clamped to
	// MaxHopsCeiling.
	MaxHops int `yaml:"max_hops" validate:"required,min=1"`

	// MaxExpansions is the number of frontier nodes expanded per hop.
	// Minimum 1, clamped to MaxExpansionsCeiling.
	MaxExpansions int `yaml:"max_expansions" validate:"required,min=1"`

	// RerankTopK is the working-set size retained after each observe step.
	// Minimum 1, clamped to RerankTopKCeiling.
	RerankTopK int `yaml:"rerank_top_k" validate:"required,min=1"`

	// UseReranker selects scored pruning (true) or pass-through truncation
	// that keeps retrieval scores (false).
	UseReranker bool `yaml:"use_reranker"`

	// StepTimeout is the best-effort budget for each external call (LLM,
	// expansion, rerank). Zero disables the per-step timeout.
	StepTimeout time.Duration `yaml:"step_timeout"`
}

// DefaultAgentConfig returns the defaults used by the CLI and the tests.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxHops:       3,
		MaxExpansions: 5,
		RerankTopK:    5,
		UseReranker:   true,
		StepTimeout:   60 * time.Second,
	}
}

// Validate checks the configuration and applies the documented clamping.
//
// Outputs:
//
//	AgentConfig - The validated, possibly clamped configuration.
//	error - *ConfigurationError for any field below its minimum.
func (c AgentConfig) Validate() (AgentConfig, error) {
	if c.MaxHops < 1 {
		return c, &ConfigurationError{Field: "max_hops", Value: c.MaxHops, Constraint: "must be >= 1"}
	}
	if c.MaxExpansions < 1 {
		return c, &ConfigurationError{Field: "max_expansions", Value: c.MaxExpansions, Constraint: "must be >= 1"}
	}
	if c.RerankTopK < 1 {
		return c, &ConfigurationError{Field: "rerank_top_k", Value: c.RerankTopK, Constraint: "must be >= 1"}
	}

	if c.MaxHops > MaxHopsCeiling {
		c.MaxHops = MaxHopsCeiling
	}
	if c.MaxExpansions > MaxExpansionsCeiling {
		c.MaxExpansions = MaxExpansionsCeiling
	}
	if c.RerankTopK > RerankTopKCeiling {
		c.RerankTopK = RerankTopKCeiling
	}
	return c, nil
}

// IsConfigurationError checks if an error is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	_, ok := err.(*ConfigurationError)
	return ok
}
