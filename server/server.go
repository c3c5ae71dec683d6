// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the agent side of the A2A protocol: the
// JSON-RPC endpoint, the task store and lifecycle manager, SSE event
// fan-out, and push notification delivery.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-a2a/mindlink/a2a"
	"github.com/go-a2a/mindlink/auth"
)

// Config assembles a Server. AgentCard and TaskManager are required.
type Config struct {
	// AgentCard is served at the well-known path and gates which
	// JSON-RPC methods the server dispatches.
	AgentCard *a2a.AgentCard

	// TaskManager handles every dispatched method.
	TaskManager TaskManager

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Registry receives the server metrics. Leave nil to disable
	// instrumentation and the /metrics endpoint.
	Registry *prometheus.Registry

	// Keys, when set, are published at the JWKS well-known path so
	// push notification receivers can verify signed callbacks.
	Keys *auth.KeyManager
}

// Server is the A2A HTTP server. All protocol methods share one POST
// endpoint; the agent card and key set are plain GETs beside it.
type Server struct {
	card    *a2a.AgentCard
	tm      TaskManager
	logger  *slog.Logger
	metrics *Metrics
	router  chi.Router
}

// NewServer builds a Server from the config.
func NewServer(cfg Config) (*Server, error) {
	if cfg.AgentCard == nil {
		return nil, errors.New("server: agent card is required")
	}
	if cfg.TaskManager == nil {
		return nil, errors.New("server: task manager is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		card:   cfg.AgentCard,
		tm:     cfg.TaskManager,
		logger: logger,
	}
	if cfg.Registry != nil {
		s.metrics = NewMetrics(cfg.Registry)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(a2a.AgentCardPath, s.handleAgentCard)
	if cfg.Keys != nil {
		r.Get(auth.JWKSPath, cfg.Keys.JWKSHandler())
	}
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}
	r.Post("/", s.handleRPC)

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleAgentCard serves the agent's capability document.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	data, err := sonic.Marshal(s.card)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode agent card", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Start serves on addr until ctx is canceled, then shuts down
// gracefully. SSE streams observe the cancellation through their request
// contexts.
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "listening", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
