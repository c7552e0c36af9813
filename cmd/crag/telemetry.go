// Copyright (C) 2026 Crag Labs (eng@crag-labs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// initTracing installs a global OpenTelemetry tracer provider so package
// tracers across the codebase record real spans.
//
// When stdout is false the spans stay in-process (no exporter); the returned
// shutdown is then a no-op. When true, spans are pretty-printed to stdout,
// which is useful for watching a single solve session hop by hop.
func initTracing(ctx context.Context, stdout bool) (func(context.Context) error, error) {
	if !stdout {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "crag"),
		attribute.String("service.version", "1.0.0"),
	)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
