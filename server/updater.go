// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/go-a2a/mindlink/a2a"
)

// TaskUpdater is the write handle a TaskProcessor uses to report progress
// for one task. Every call is a cancellation checkpoint: once the
// processing context is done, updates are refused and the processor should
// return.
type TaskUpdater struct {
	tm     *DefaultTaskManager
	taskID string
}

// TaskID returns the id of the task this updater is bound to.
func (u *TaskUpdater) TaskID() string { return u.taskID }

// UpdateStatus applies an arbitrary status transition with optional
// artifacts.
func (u *TaskUpdater) UpdateStatus(ctx context.Context, status a2a.TaskStatus, artifacts ...*a2a.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := u.tm.applyUpdate(ctx, u.taskID, status, artifacts)
	return err
}

// Working marks the task as working, with an optional progress message.
func (u *TaskUpdater) Working(ctx context.Context, message *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.NewTaskStatus(a2a.TaskStateWorking, message))
}

// InputRequired pauses the task waiting for another user message.
func (u *TaskUpdater) InputRequired(ctx context.Context, message *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.NewTaskStatus(a2a.TaskStateInputRequired, message))
}

// AddArtifact emits an artifact (or artifact chunk) while the task keeps
// working.
func (u *TaskUpdater) AddArtifact(ctx context.Context, artifact *a2a.Artifact) error {
	return u.UpdateStatus(ctx, a2a.NewTaskStatus(a2a.TaskStateWorking, nil), artifact)
}

// Complete finishes the task with an optional closing message and
// artifacts.
func (u *TaskUpdater) Complete(ctx context.Context, message *a2a.Message, artifacts ...*a2a.Artifact) error {
	return u.UpdateStatus(ctx, a2a.NewTaskStatus(a2a.TaskStateCompleted, message), artifacts...)
}

// Fail finishes the task in the failed state with a user-visible message.
func (u *TaskUpdater) Fail(ctx context.Context, message *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.NewTaskStatus(a2a.TaskStateFailed, message))
}
