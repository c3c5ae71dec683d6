// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command mindlink-server runs an A2A agent that echoes each incoming
// message back as a text artifact. It exists to exercise the protocol
// surface end to end: streaming, push notifications and the agent card.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-a2a/mindlink/a2a"
	"github.com/go-a2a/mindlink/auth"
	"github.com/go-a2a/mindlink/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		addr       = flag.String("addr", "", "listen address, overrides config")
	)
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	card := cfg.AgentCard([]a2a.AgentSkill{
		{
			ID:          "echo",
			Name:        "Echo",
			Description: "Echoes the incoming message back as a text artifact.",
			Tags:        []string{"echo", "demo"},
			InputModes:  []string{"text"},
			OutputModes: []string{"text"},
		},
	})

	var notifierOpts []server.PushNotifierOption
	var keys *auth.KeyManager
	if cfg.Push.SigningKeyID != "" {
		keys = auth.NewKeyManager()
		if _, err := keys.GenerateKeyPair(cfg.Push.SigningKeyID); err != nil {
			return fmt.Errorf("failed to generate signing key: %w", err)
		}
		notifierOpts = append(notifierOpts, server.WithSigningKeys(keys, cfg.Push.SigningKeyID))
	}
	if cfg.Push.VerifyURLs {
		notifierOpts = append(notifierOpts, server.WithURLVerification())
	}
	notifierOpts = append(notifierOpts, server.WithNotifierLogger(logger))

	tm := server.NewTaskManager(
		server.TaskProcessorFunc(echoProcessor),
		server.WithLogger(logger),
		server.WithPushNotifier(server.NewPushNotifier(notifierOpts...)),
	)

	registry := prometheus.NewRegistry()
	srv, err := server.NewServer(server.Config{
		AgentCard:   card,
		TaskManager: tm,
		Logger:      logger,
		Registry:    registry,
		Keys:        keys,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting agent", slog.String("name", card.Name), slog.String("addr", cfg.Addr))
	return srv.Start(ctx, cfg.Addr)
}

// echoProcessor answers every message with a text artifact containing
// the same text.
func echoProcessor(ctx context.Context, task *a2a.Task, message *a2a.Message, updater *server.TaskUpdater) error {
	if err := updater.Working(ctx, nil); err != nil {
		return err
	}
	text := a2a.MessageText(message)
	if err := updater.AddArtifact(ctx, a2a.NewTextArtifact("echo", text)); err != nil {
		return err
	}
	return updater.Complete(ctx, a2a.NewAgentTextMessage("done"))
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
