// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-a2a/mindlink/a2a"
	"github.com/go-a2a/mindlink/server"
)

func newTestAgent(t *testing.T) *httptest.Server {
	t.Helper()

	tm := server.NewTaskManager(server.TaskProcessorFunc(
		func(ctx context.Context, task *a2a.Task, message *a2a.Message, updater *server.TaskUpdater) error {
			if err := updater.Working(ctx, nil); err != nil {
				return err
			}
			if err := updater.AddArtifact(ctx, a2a.NewTextArtifact("echo", a2a.MessageText(message))); err != nil {
				return err
			}
			return updater.Complete(ctx, a2a.NewAgentTextMessage("done"))
		}))

	srv, err := server.NewServer(server.Config{
		AgentCard: &a2a.AgentCard{
			Name:    "echo-agent",
			URL:     "http://localhost/",
			Version: "0.1.0",
			Capabilities: a2a.AgentCapabilities{
				Streaming:         true,
				PushNotifications: true,
			},
			DefaultInputModes:  []string{"text"},
			DefaultOutputModes: []string{"text"},
			Skills:             []a2a.AgentSkill{{ID: "echo", Name: "Echo"}},
		},
		TaskManager: tm,
	})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func intPtr(n int) *int { return &n }

func TestClientAgentCard(t *testing.T) {
	ts := newTestAgent(t)
	c := NewClient(ts.URL)

	card, err := c.AgentCard(context.Background())
	if err != nil {
		t.Fatalf("failed to fetch card: %v", err)
	}
	if card.Name != "echo-agent" {
		t.Errorf("name = %s, want echo-agent", card.Name)
	}
	if !card.Capabilities.Streaming {
		t.Error("card must advertise streaming")
	}
}

func TestClientSendAndGetTask(t *testing.T) {
	ctx := context.Background()
	ts := newTestAgent(t)
	c := NewClient(ts.URL)

	task, err := c.SendTask(ctx, &a2a.TaskSendParams{
		ID:      "t1",
		Message: a2a.NewUserTextMessage("hello"),
	})
	if err != nil {
		t.Fatalf("failed to send task: %v", err)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %s, want %s", task.Status.State, a2a.TaskStateCompleted)
	}
	if len(task.Artifacts) != 1 {
		t.Errorf("artifact count = %d, want 1", len(task.Artifacts))
	}

	got, err := c.GetTask(ctx, &a2a.TaskQueryParams{ID: "t1", HistoryLength: intPtr(10)})
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got.ID != "t1" {
		t.Errorf("id = %s, want t1", got.ID)
	}
	if len(got.History) == 0 {
		t.Error("requested history must be returned")
	}
}

func TestClientDomainError(t *testing.T) {
	ts := newTestAgent(t)
	c := NewClient(ts.URL)

	_, err := c.GetTask(context.Background(), &a2a.TaskQueryParams{ID: "missing"})
	var rpcErr *a2a.JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want JSONRPCError", err)
	}
	if rpcErr.Code != a2a.CodeTaskNotFound {
		t.Errorf("code = %d, want %d", rpcErr.Code, a2a.CodeTaskNotFound)
	}
}

func TestClientCancelCompleted(t *testing.T) {
	ctx := context.Background()
	ts := newTestAgent(t)
	c := NewClient(ts.URL)

	if _, err := c.SendTask(ctx, &a2a.TaskSendParams{ID: "t1", Message: a2a.NewUserTextMessage("hi")}); err != nil {
		t.Fatalf("failed to send task: %v", err)
	}

	_, err := c.CancelTask(ctx, &a2a.TaskIDParams{ID: "t1"})
	var rpcErr *a2a.JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want JSONRPCError", err)
	}
	if rpcErr.Code != a2a.CodeTaskNotCancelable {
		t.Errorf("code = %d, want %d", rpcErr.Code, a2a.CodeTaskNotCancelable)
	}
}

func TestClientPushNotificationConfig(t *testing.T) {
	ctx := context.Background()
	ts := newTestAgent(t)
	c := NewClient(ts.URL)

	if _, err := c.SendTask(ctx, &a2a.TaskSendParams{ID: "t1", Message: a2a.NewUserTextMessage("hi")}); err != nil {
		t.Fatalf("failed to send task: %v", err)
	}

	want := a2a.PushNotificationConfig{URL: "https://example.com/hook", Token: "secret"}
	if _, err := c.SetPushNotification(ctx, &a2a.TaskPushNotificationConfig{
		ID:                     "t1",
		PushNotificationConfig: want,
	}); err != nil {
		t.Fatalf("failed to set push config: %v", err)
	}

	got, err := c.GetPushNotification(ctx, &a2a.TaskIDParams{ID: "t1"})
	if err != nil {
		t.Fatalf("failed to get push config: %v", err)
	}
	if got.PushNotificationConfig.URL != want.URL {
		t.Errorf("url = %s, want %s", got.PushNotificationConfig.URL, want.URL)
	}
}

func TestClientSendTaskSubscribe(t *testing.T) {
	ctx := context.Background()
	ts := newTestAgent(t)
	c := NewClient(ts.URL, WithHTTPClient(&http.Client{}))

	stream, err := c.SendTaskSubscribe(ctx, &a2a.TaskSendParams{
		ID:      "t1",
		Message: a2a.NewUserTextMessage("hello"),
	})
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer stream.Close()

	events, err := stream.Drain(ctx)
	if err != nil {
		t.Fatalf("failed to drain stream: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("stream must carry events")
	}

	last, ok := events[len(events)-1].(*a2a.TaskStatusUpdateEvent)
	if !ok || !last.Final || last.Status.State != a2a.TaskStateCompleted {
		t.Errorf("last event = %#v, want final completed status", events[len(events)-1])
	}
	sawArtifact := false
	for _, ev := range events {
		if _, ok := ev.(*a2a.TaskArtifactUpdateEvent); ok {
			sawArtifact = true
		}
	}
	if !sawArtifact {
		t.Error("stream must carry the artifact event")
	}
}

func TestClientSubscribeRejectedWithoutStreaming(t *testing.T) {
	tm := server.NewTaskManager(server.TaskProcessorFunc(
		func(ctx context.Context, task *a2a.Task, message *a2a.Message, updater *server.TaskUpdater) error {
			return updater.Complete(ctx, nil)
		}))
	srv, err := server.NewServer(server.Config{
		AgentCard: &a2a.AgentCard{
			Name:               "plain-agent",
			URL:                "http://localhost/",
			Version:            "0.1.0",
			DefaultInputModes:  []string{"text"},
			DefaultOutputModes: []string{"text"},
		},
		TaskManager: tm,
	})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := NewClient(ts.URL)
	_, err = c.SendTaskSubscribe(context.Background(), &a2a.TaskSendParams{
		ID:      "t1",
		Message: a2a.NewUserTextMessage("hello"),
	})
	var rpcErr *a2a.JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want JSONRPCError", err)
	}
	if rpcErr.Code != a2a.CodeMethodNotFound {
		t.Errorf("code = %d, want %d", rpcErr.Code, a2a.CodeMethodNotFound)
	}
}
