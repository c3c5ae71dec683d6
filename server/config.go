// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/go-a2a/mindlink/a2a"
)

// FileConfig is the on-disk server configuration.
type FileConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Agent struct {
		Name               string   `yaml:"name"`
		Description        string   `yaml:"description"`
		URL                string   `yaml:"url"`
		Version            string   `yaml:"version"`
		DocumentationURL   string   `yaml:"documentation_url"`
		DefaultInputModes  []string `yaml:"default_input_modes"`
		DefaultOutputModes []string `yaml:"default_output_modes"`
		Provider           struct {
			Organization string `yaml:"organization"`
			URL          string `yaml:"url"`
		} `yaml:"provider"`
	} `yaml:"agent"`

	Capabilities struct {
		Streaming              bool     `yaml:"streaming"`
		PushNotifications      bool     `yaml:"push_notifications"`
		StateTransitionHistory bool     `yaml:"state_transition_history"`
		KnowledgeGraph         bool     `yaml:"knowledge_graph"`
		QueryLanguages         []string `yaml:"query_languages"`
	} `yaml:"capabilities"`

	Push struct {
		VerifyURLs   bool   `yaml:"verify_urls"`
		SigningKeyID string `yaml:"signing_key_id"`
	} `yaml:"push"`

	Database struct {
		// DSN selects the task persistence backend. Empty disables
		// write-through persistence.
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
}

// LoadConfig reads a YAML config file and applies defaults and
// environment overrides. MINDLINK_ADDR and MINDLINK_DB_DSN override
// their file counterparts.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	cfg.Addr = ":8080"
	cfg.LogLevel = "info"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if addr := os.Getenv("MINDLINK_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if dsn := os.Getenv("MINDLINK_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if cfg.Agent.Name == "" {
		return nil, fmt.Errorf("config: agent.name is required")
	}
	if cfg.Agent.URL == "" {
		return nil, fmt.Errorf("config: agent.url is required")
	}
	if cfg.Agent.Version == "" {
		cfg.Agent.Version = "0.1.0"
	}
	if len(cfg.Agent.DefaultInputModes) == 0 {
		cfg.Agent.DefaultInputModes = []string{"text"}
	}
	if len(cfg.Agent.DefaultOutputModes) == 0 {
		cfg.Agent.DefaultOutputModes = []string{"text"}
	}
	return cfg, nil
}

// AgentCard builds the card advertised by this configuration.
func (c *FileConfig) AgentCard(skills []a2a.AgentSkill) *a2a.AgentCard {
	card := &a2a.AgentCard{
		Name:               c.Agent.Name,
		Description:        c.Agent.Description,
		URL:                c.Agent.URL,
		Version:            c.Agent.Version,
		DocumentationURL:   c.Agent.DocumentationURL,
		DefaultInputModes:  c.Agent.DefaultInputModes,
		DefaultOutputModes: c.Agent.DefaultOutputModes,
		Capabilities: a2a.AgentCapabilities{
			Streaming:                    c.Capabilities.Streaming,
			PushNotifications:            c.Capabilities.PushNotifications,
			StateTransitionHistory:       c.Capabilities.StateTransitionHistory,
			KnowledgeGraph:               c.Capabilities.KnowledgeGraph,
			KnowledgeGraphQueryLanguages: c.Capabilities.QueryLanguages,
		},
		Skills: skills,
	}
	if c.Agent.Provider.Organization != "" {
		card.Provider = &a2a.AgentProvider{
			Organization: c.Agent.Provider.Organization,
			URL:          c.Agent.Provider.URL,
		}
	}
	return card
}
