// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bestbox-ai/orchestrator/pkg/audit"
	"github.com/bestbox-ai/orchestrator/pkg/auth"
	"github.com/bestbox-ai/orchestrator/pkg/checkpoint"
	"github.com/bestbox-ai/orchestrator/pkg/config"
	"github.com/bestbox-ai/orchestrator/pkg/contextwindow"
	"github.com/bestbox-ai/orchestrator/pkg/gpu"
	"github.com/bestbox-ai/orchestrator/pkg/graph"
	"github.com/bestbox-ai/orchestrator/pkg/llm"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/server"
	"github.com/bestbox-ai/orchestrator/pkg/session"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

// ServeCmd starts the runtime's HTTP server.
type ServeCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`
}

// Run composes every component (C1-C9) from the loaded config and blocks
// until SIGINT/SIGTERM, then shuts down in reverse order.
func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("bestboxd: load config: %w", err)
	}

	obsManager, err := buildObservability(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("bestboxd: observability: %w", err)
	}
	defer obsManager.Shutdown(context.Background())

	sharedClient := defaultHTTPClient()

	reg, err := buildAdapterRegistry(cfg.Adapters, sharedClient)
	if err != nil {
		return fmt.Errorf("bestboxd: adapters: %w", err)
	}

	st, err := store.Open(cfg.Database.Dialect, string(cfg.Database.Dialect), cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("bestboxd: open store: %w", err)
	}
	defer st.Close()
	if err := st.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bestboxd: bootstrap store: %w", err)
	}

	lexicon, err := buildLexicon(cfg.LexiconPath)
	if err != nil {
		return fmt.Errorf("bestboxd: lexicon: %w", err)
	}

	retriever, err := buildRetriever(cfg, st, sharedClient, lexicon)
	if err != nil {
		return fmt.Errorf("bestboxd: retriever: %w", err)
	}
	retriever.WithObservability(obsManager.Tracer(), obsManager.Metrics())

	catalog, err := buildToolCatalog(reg, retriever)
	if err != nil {
		return fmt.Errorf("bestboxd: tool catalog: %w", err)
	}
	catalog.WithObservability(obsManager.Tracer(), obsManager.Metrics())

	llmClient := llm.NewHTTPClient(cfg.LLM, sharedClient)
	llmClient.WithObservability(obsManager.Tracer(), obsManager.Metrics())

	compactor := contextwindow.New(cfg.ContextWindow, llmClient)

	cpManager := checkpoint.NewManager(&cfg.Checkpoint, st)
	cpManager.WithObservability(obsManager.Tracer())
	cpHooks := checkpoint.NewHooks(cpManager)

	personas, err := buildPersonas(cfg.Personas)
	if err != nil {
		return fmt.Errorf("bestboxd: personas: %w", err)
	}

	router := graph.NewRouter(llmClient, lexicon)
	rt := graph.New(llmClient, catalog, compactor, cpHooks, router, personas, cfg.Graph)
	rt.WithObservability(obsManager.Tracer(), obsManager.Metrics())

	auditWriter := audit.NewWriter(cfg.Audit, st)
	auditWriter.Start(ctx)
	defer auditWriter.Stop()

	sessions := session.New(st, cpManager, rt, auditWriter)
	sessions.WithObservability(obsManager.Metrics())

	var gpuMetrics *gpu.Metrics
	if obsManager.MetricsEnabled() {
		gpuMetrics = gpu.NewMetrics(obsManager.Metrics().Registry(), "gpu")
	}
	scheduler := gpu.New(cfg.GPU, gpuMetrics)

	authValidator, err := auth.NewValidatorFromConfig(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("bestboxd: auth: %w", err)
	}

	srv := server.New(cfg.Server, sessions, scheduler, obsManager, authValidator)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("bestboxd: start server: %w", err)
	}

	slog.Info("bestboxd serving", "addr", cfg.Server.Addr)
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		slog.Error("server stop", "error", err)
	}
	return nil
}

// buildObservability translates the flat config.ObservabilityConfig into the
// nested observability.Config the manager expects.
func buildObservability(ctx context.Context, cfg config.ObservabilityConfig) (*observability.Manager, error) {
	obsCfg := &observability.Config{
		Tracing: observability.TracingConfig{
			Enabled:     cfg.Enabled,
			Endpoint:    cfg.OTLPEndpoint,
			ServiceName: cfg.ServiceName,
		},
		Metrics: observability.MetricsConfig{
			Enabled:   cfg.MetricsEnabled,
			Namespace: cfg.ServiceName,
		},
	}
	return observability.NewFromConfig(ctx, obsCfg)
}

