// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a defines the wire types of the Agent-to-Agent (A2A) task
// lifecycle protocol: tasks, messages, artifacts, streaming events, the
// JSON-RPC envelope and the protocol error taxonomy.
package a2a

import (
	"fmt"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single conversational exchange between user and agent.
type Message struct {
	Role     Role           `json:"role"`
	Parts    []*PartWrapper `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate ensures the Message is valid.
func (m *Message) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAgent {
		return fmt.Errorf("message role must be %q or %q, got %q", RoleUser, RoleAgent, m.Role)
	}
	if len(m.Parts) == 0 {
		return fmt.Errorf("message must contain at least one part")
	}
	for i, part := range m.Parts {
		if part == nil {
			return fmt.Errorf("message part at index %d cannot be nil", i)
		}
		if err := part.Validate(); err != nil {
			return fmt.Errorf("message part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskStateCompleted || s == TaskStateCanceled || s == TaskStateFailed
}

// Known reports whether s is a member of the closed TaskState enum.
func (s TaskState) Known() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateUnknown:
		return true
	}
	return false
}

// TaskStatus is the current state of a task plus an optional agent message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewTaskStatus creates a TaskStatus stamped with the current time.
func NewTaskStatus(state TaskState, message *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   message,
		Timestamp: Timestamp(),
	}
}

// Timestamp returns the current time in the wire format.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Artifact is a structured output produced by agent processing. Artifacts
// may arrive chunked: chunks for the same (task, Index) pair are
// concatenated while Append is true, until one arrives with LastChunk set.
type Artifact struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []*PartWrapper `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Index       int            `json:"index"`
	Append      *bool          `json:"append,omitempty"`
	LastChunk   *bool          `json:"lastChunk,omitempty"`
}

// Validate ensures the Artifact is valid.
func (a *Artifact) Validate() error {
	if len(a.Parts) == 0 {
		return fmt.Errorf("artifact must contain at least one part")
	}
	if a.Index < 0 {
		return fmt.Errorf("artifact index cannot be negative")
	}
	for i, part := range a.Parts {
		if part == nil {
			return fmt.Errorf("artifact part at index %d cannot be nil", i)
		}
		if err := part.Validate(); err != nil {
			return fmt.Errorf("artifact part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// Task is a unit of long-running work identified by a caller-chosen id.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	Artifacts []*Artifact    `json:"artifacts"`
	History   []*Message     `json:"history"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskEvent is implemented by the two event shapes carried over a task's
// SSE stream.
type TaskEvent interface {
	EventType() string
	TaskID() string
}

// TaskStatusUpdateEvent signals a status transition for a task.
type TaskStatusUpdateEvent struct {
	ID       string         `json:"id"`
	Status   TaskStatus     `json:"status"`
	Final    bool           `json:"final"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EventType returns the event discriminator.
func (e *TaskStatusUpdateEvent) EventType() string { return "task_status_update" }

// TaskID returns the id of the task the event belongs to.
func (e *TaskStatusUpdateEvent) TaskID() string { return e.ID }

// TaskArtifactUpdateEvent signals a new artifact for a task.
type TaskArtifactUpdateEvent struct {
	ID       string         `json:"id"`
	Artifact *Artifact      `json:"artifact"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EventType returns the event discriminator.
func (e *TaskArtifactUpdateEvent) EventType() string { return "task_artifact_update" }

// TaskID returns the id of the task the event belongs to.
func (e *TaskArtifactUpdateEvent) TaskID() string { return e.ID }

// IsFinalEvent reports whether ev terminates its stream.
func IsFinalEvent(ev TaskEvent) bool {
	if st, ok := ev.(*TaskStatusUpdateEvent); ok {
		return st.Final
	}
	return false
}

// AuthenticationInfo describes how a callback endpoint authenticates.
type AuthenticationInfo struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is the per-task out-of-band callback target.
type PushNotificationConfig struct {
	URL            string              `json:"url"`
	Token          string              `json:"token,omitempty"`
	Authentication *AuthenticationInfo `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig binds a push config to a task id.
type TaskPushNotificationConfig struct {
	ID                     string                 `json:"id"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}

// TaskIDParams identifies a task in get/cancel/push requests.
type TaskIDParams struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskQueryParams identifies a task and bounds the returned history.
// A nil or zero HistoryLength yields an empty history.
type TaskQueryParams struct {
	ID            string         `json:"id"`
	HistoryLength *int           `json:"historyLength,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// TaskSendParams initiates or continues a task.
type TaskSendParams struct {
	ID                  string                  `json:"id"`
	SessionID           string                  `json:"sessionId,omitempty"`
	Message             *Message                `json:"message"`
	AcceptedOutputModes []string                `json:"acceptedOutputModes,omitempty"`
	PushNotification    *PushNotificationConfig `json:"pushNotification,omitempty"`
	HistoryLength       *int                    `json:"historyLength,omitempty"`
	Metadata            map[string]any          `json:"metadata,omitempty"`
}

// Validate ensures the TaskSendParams are valid.
func (p *TaskSendParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}
	if p.Message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return p.Message.Validate()
}
