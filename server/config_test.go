// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-a2a/mindlink/a2a"
)

const testConfigYAML = `
addr: ":9090"
log_level: debug
agent:
  name: mindlink
  description: Task lifecycle agent
  url: https://agent.example.com/
  version: 1.2.3
  provider:
    organization: Example Org
capabilities:
  streaming: true
  push_notifications: true
  knowledge_graph: true
  query_languages:
    - sparql
push:
  verify_urls: true
  signing_key_id: push-1
database:
  dsn: "file::memory:"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Errorf("addr = %s, want :9090", cfg.Addr)
	}
	if cfg.Agent.Name != "mindlink" {
		t.Errorf("name = %s, want mindlink", cfg.Agent.Name)
	}
	if !cfg.Capabilities.Streaming || !cfg.Capabilities.PushNotifications || !cfg.Capabilities.KnowledgeGraph {
		t.Errorf("capabilities = %+v, want all enabled", cfg.Capabilities)
	}
	if !cfg.Push.VerifyURLs || cfg.Push.SigningKeyID != "push-1" {
		t.Errorf("push = %+v, want verification with key push-1", cfg.Push)
	}
	if cfg.Database.DSN != "file::memory:" {
		t.Errorf("dsn = %s, want file::memory:", cfg.Database.DSN)
	}
	// Unset input/output modes fall back to text.
	if len(cfg.Agent.DefaultInputModes) != 1 || cfg.Agent.DefaultInputModes[0] != "text" {
		t.Errorf("input modes = %v, want [text]", cfg.Agent.DefaultInputModes)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MINDLINK_ADDR", ":7070")
	t.Setenv("MINDLINK_DB_DSN", "postgres://db")

	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("addr = %s, want :7070", cfg.Addr)
	}
	if cfg.Database.DSN != "postgres://db" {
		t.Errorf("dsn = %s, want postgres://db", cfg.Database.DSN)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "addr: :1\n")); err == nil {
		t.Fatal("config without agent name must fail")
	}
	if _, err := LoadConfig(writeConfig(t, "agent:\n  name: x\n")); err == nil {
		t.Fatal("config without agent url must fail")
	}
}

func TestFileConfigAgentCard(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfigYAML))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	card := cfg.AgentCard([]a2a.AgentSkill{{ID: "echo", Name: "Echo"}})
	if card.Name != "mindlink" || card.Version != "1.2.3" {
		t.Errorf("card = %+v, want mindlink 1.2.3", card)
	}
	if card.Provider == nil || card.Provider.Organization != "Example Org" {
		t.Errorf("provider = %+v, want Example Org", card.Provider)
	}
	if !card.Capabilities.KnowledgeGraph || len(card.Capabilities.KnowledgeGraphQueryLanguages) != 1 {
		t.Errorf("capabilities = %+v, want knowledge graph with sparql", card.Capabilities)
	}
	if len(card.Skills) != 1 {
		t.Errorf("skill count = %d, want 1", len(card.Skills))
	}
}
