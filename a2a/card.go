// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

// AgentCardPath is the well-known path where the agent card is served.
const AgentCardPath = "/.well-known/agent.json"

// AgentProvider identifies the organization behind an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities advertises the optional protocol surfaces an agent
// implements. Methods behind a false capability are gated off and answer
// with MethodNotFound.
type AgentCapabilities struct {
	Streaming                    bool     `json:"streaming"`
	PushNotifications            bool     `json:"pushNotifications"`
	StateTransitionHistory       bool     `json:"stateTransitionHistory"`
	KnowledgeGraph               bool     `json:"knowledgeGraph"`
	KnowledgeGraphQueryLanguages []string `json:"knowledgeGraphQueryLanguages,omitempty"`
}

// AgentAuthentication describes the authentication the agent endpoint
// requires.
type AgentAuthentication struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// AgentSkill describes one capability unit offered by the agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentCard is the static descriptor published at AgentCardPath.
type AgentCard struct {
	Name               string               `json:"name"`
	Description        string               `json:"description,omitempty"`
	URL                string               `json:"url"`
	Provider           *AgentProvider       `json:"provider,omitempty"`
	Version            string               `json:"version"`
	DocumentationURL   string               `json:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities    `json:"capabilities"`
	Authentication     *AgentAuthentication `json:"authentication,omitempty"`
	DefaultInputModes  []string             `json:"defaultInputModes"`
	DefaultOutputModes []string             `json:"defaultOutputModes"`
	Skills             []AgentSkill         `json:"skills"`
}
