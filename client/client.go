// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package client provides an A2A protocol client: unary JSON-RPC calls
// over HTTP POST plus SSE event streams for the subscribe methods.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/go-a2a/mindlink/a2a"
)

// A2AClient talks to a single A2A agent endpoint.
type A2AClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures an A2AClient.
type ClientOption func(*A2AClient)

// WithHTTPClient sets the underlying HTTP client. Streaming calls need a
// client without a response timeout.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *A2AClient) {
		c.client = client
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *A2AClient) {
		c.logger = logger
	}
}

// NewClient creates a client for the agent at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *A2AClient {
	c := &A2AClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AgentCard fetches the agent's capability document from the well-known
// path.
func (c *A2AClient) AgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+a2a.AgentCardPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent card request returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent card: %w", err)
	}
	var card a2a.AgentCard
	if err := sonic.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	return &card, nil
}

// SendTask sends a message to a task and waits for the resulting task
// snapshot.
func (c *A2AClient) SendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, a2a.MethodTasksSend, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask fetches the current snapshot of a task.
func (c *A2AClient) GetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, a2a.MethodTasksGet, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask requests cancellation of a task.
func (c *A2AClient) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, a2a.MethodTasksCancel, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetPushNotification registers a callback URL for a task.
func (c *A2AClient) SetPushNotification(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	var config a2a.TaskPushNotificationConfig
	if err := c.call(ctx, a2a.MethodTasksPushNotificationSet, params, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetPushNotification fetches the registered callback config of a task.
func (c *A2AClient) GetPushNotification(ctx context.Context, params *a2a.TaskIDParams) (*a2a.TaskPushNotificationConfig, error) {
	var config a2a.TaskPushNotificationConfig
	if err := c.call(ctx, a2a.MethodTasksPushNotificationGet, params, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// KnowledgeQuery runs a query against the agent's knowledge graph.
func (c *A2AClient) KnowledgeQuery(ctx context.Context, params *a2a.KnowledgeQueryParams) (*a2a.KnowledgeQueryResult, error) {
	var result a2a.KnowledgeQueryResult
	if err := c.call(ctx, a2a.MethodKnowledgeQuery, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// KnowledgeUpdate applies a patch to the agent's knowledge graph.
func (c *A2AClient) KnowledgeUpdate(ctx context.Context, params *a2a.KnowledgeUpdateParams) (*a2a.KnowledgeUpdateResult, error) {
	var result a2a.KnowledgeUpdateResult
	if err := c.call(ctx, a2a.MethodKnowledgeUpdate, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendTaskSubscribe sends a message and subscribes to the task's event
// stream. The caller must Close the returned stream.
func (c *A2AClient) SendTaskSubscribe(ctx context.Context, params *a2a.TaskSendParams) (*EventStream, error) {
	return c.stream(ctx, a2a.MethodTasksSendSubscribe, params)
}

// Resubscribe reattaches to a live task's event stream.
func (c *A2AClient) Resubscribe(ctx context.Context, params *a2a.TaskIDParams) (*EventStream, error) {
	return c.stream(ctx, a2a.MethodTasksResubscribe, params)
}

// call performs one unary JSON-RPC round trip and decodes the result
// into out.
func (c *A2AClient) call(ctx context.Context, method string, params any, out any) error {
	resp, err := c.post(ctx, method, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		a2a.JSONRPCMessage
		Result json.RawMessage   `json:"result,omitempty"`
		Error  *a2a.JSONRPCError `json:"error,omitempty"`
	}
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := sonic.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *A2AClient) post(ctx context.Context, method string, params any) (*http.Response, error) {
	rawParams, err := sonic.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	req := &a2a.JSONRPCRequest{
		JSONRPCMessage: a2a.JSONRPCMessage{JSONRPC: a2a.Version, ID: uuid.NewString()},
		Method:         method,
		Params:         rawParams,
	}
	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
