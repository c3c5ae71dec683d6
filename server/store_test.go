// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"testing"

	"github.com/go-a2a/mindlink/a2a"
)

func sendParams(id, text string) *a2a.TaskSendParams {
	return &a2a.TaskSendParams{
		ID:      id,
		Message: a2a.NewUserTextMessage(text),
	}
}

func boolPtr(b bool) *bool { return &b }

func chunk(index int, text string, appendChunk, lastChunk bool) *a2a.Artifact {
	return &a2a.Artifact{
		Name:      "doc",
		Index:     index,
		Parts:     []*a2a.PartWrapper{a2a.NewPartWrapper(a2a.NewTextPart(text))},
		Append:    boolPtr(appendChunk),
		LastChunk: boolPtr(lastChunk),
	}
}

func TestTaskStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()

	task, err := store.Upsert(ctx, sendParams("t1", "hello"))
	if err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if task.Status.State != a2a.TaskStateSubmitted {
		t.Errorf("state = %s, want %s", task.Status.State, a2a.TaskStateSubmitted)
	}
	if task.SessionID == "" {
		t.Error("session id must be generated")
	}
	if len(task.History) != 1 {
		t.Errorf("history length = %d, want 1", len(task.History))
	}

	task, err = store.Upsert(ctx, sendParams("t1", "again"))
	if err != nil {
		t.Fatalf("failed to upsert again: %v", err)
	}
	if task.Status.State != a2a.TaskStateWorking {
		t.Errorf("state = %s, want %s", task.Status.State, a2a.TaskStateWorking)
	}
	if task.Status.Message != nil {
		t.Error("continuing a task must clear the status message")
	}
	if len(task.History) != 2 {
		t.Errorf("history length = %d, want 2", len(task.History))
	}

	// The same message content appends again; sends are not deduplicated.
	task, err = store.Upsert(ctx, sendParams("t1", "again"))
	if err != nil {
		t.Fatalf("failed to upsert duplicate: %v", err)
	}
	if len(task.History) != 3 {
		t.Errorf("history length = %d, want 3", len(task.History))
	}
}

func TestTaskStoreUpsertInvalidParams(t *testing.T) {
	store := NewTaskStore()

	if _, err := store.Upsert(context.Background(), &a2a.TaskSendParams{ID: "t1"}); err == nil {
		t.Fatal("expected validation error for missing message")
	}
}

func TestTaskStoreGetHistory(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := store.Upsert(ctx, sendParams("t1", text)); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
	}

	tests := map[string]struct {
		historyLength int
		wantLen       int
	}{
		"zero yields empty": {historyLength: 0, wantLen: 0},
		"negative yields empty": {historyLength: -1, wantLen: 0},
		"partial": {historyLength: 2, wantLen: 2},
		"more than available": {historyLength: 10, wantLen: 3},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			task, err := store.Get(ctx, "t1", tt.historyLength)
			if err != nil {
				t.Fatalf("failed to get task: %v", err)
			}
			if task.History == nil {
				t.Fatal("history must never be nil")
			}
			if len(task.History) != tt.wantLen {
				t.Errorf("history length = %d, want %d", len(task.History), tt.wantLen)
			}
		})
	}

	// The last k messages are returned, not the first.
	task, err := store.Get(ctx, "t1", 1)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	if got, want := a2a.MessageText(task.History[0]), "three"; got != want {
		t.Errorf("last message = %q, want %q", got, want)
	}
}

func TestTaskStoreGetUnknown(t *testing.T) {
	store := NewTaskStore()

	_, err := store.Get(context.Background(), "missing", 0)
	var notFound *a2a.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want TaskNotFoundError", err)
	}
}

func TestTaskStoreUpdateStatusEvents(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()
	if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	status := a2a.NewTaskStatus(a2a.TaskStateCompleted, a2a.NewAgentTextMessage("done"))
	artifacts := []*a2a.Artifact{a2a.NewTextArtifact("out", "result")}

	task, events, err := store.UpdateStatus(ctx, "t1", status, artifacts)
	if err != nil {
		t.Fatalf("failed to update status: %v", err)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %s, want %s", task.Status.State, a2a.TaskStateCompleted)
	}
	if len(task.Artifacts) != 1 {
		t.Errorf("artifact count = %d, want 1", len(task.Artifacts))
	}
	// The status message lands in history alongside the user message.
	if len(task.History) != 2 {
		t.Errorf("history length = %d, want 2", len(task.History))
	}

	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2", len(events))
	}
	if _, ok := events[0].(*a2a.TaskArtifactUpdateEvent); !ok {
		t.Errorf("first event = %T, want artifact event", events[0])
	}
	last, ok := events[1].(*a2a.TaskStatusUpdateEvent)
	if !ok {
		t.Fatalf("last event = %T, want status event", events[1])
	}
	if !last.Final {
		t.Error("terminal status event must be final")
	}
}

func TestTaskStoreTerminalGuard(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()
	if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if _, _, err := store.UpdateStatus(ctx, "t1", a2a.NewTaskStatus(a2a.TaskStateCompleted, nil), nil); err != nil {
		t.Fatalf("failed to complete task: %v", err)
	}

	_, _, err := store.UpdateStatus(ctx, "t1", a2a.NewTaskStatus(a2a.TaskStateWorking, nil), nil)
	var finalized *a2a.TaskFinalizedError
	if !errors.As(err, &finalized) {
		t.Fatalf("error = %v, want TaskFinalizedError", err)
	}
}

func TestTaskStoreChunkAssembly(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()
	if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	working := func() a2a.TaskStatus { return a2a.NewTaskStatus(a2a.TaskStateWorking, nil) }

	// Opening chunk: buffered, nothing lands on the task yet.
	task, events, err := store.UpdateStatus(ctx, "t1", working(), []*a2a.Artifact{chunk(0, "alpha ", false, false)})
	if err != nil {
		t.Fatalf("failed to apply opening chunk: %v", err)
	}
	if len(task.Artifacts) != 0 {
		t.Errorf("artifact count after opening chunk = %d, want 0", len(task.Artifacts))
	}
	if len(events) != 1 {
		t.Fatalf("event count = %d, want only the status event", len(events))
	}

	// Middle chunk: still buffered.
	task, _, err = store.UpdateStatus(ctx, "t1", working(), []*a2a.Artifact{chunk(0, "beta ", true, false)})
	if err != nil {
		t.Fatalf("failed to apply middle chunk: %v", err)
	}
	if len(task.Artifacts) != 0 {
		t.Errorf("artifact count after middle chunk = %d, want 0", len(task.Artifacts))
	}

	// Closing chunk: the assembled artifact lands and produces an event.
	task, events, err = store.UpdateStatus(ctx, "t1", working(), []*a2a.Artifact{chunk(0, "gamma", true, true)})
	if err != nil {
		t.Fatalf("failed to apply closing chunk: %v", err)
	}
	if len(task.Artifacts) != 1 {
		t.Fatalf("artifact count after closing chunk = %d, want 1", len(task.Artifacts))
	}
	assembled := task.Artifacts[0]
	if len(assembled.Parts) != 3 {
		t.Errorf("assembled part count = %d, want 3", len(assembled.Parts))
	}
	if assembled.Append != nil || assembled.LastChunk != nil {
		t.Error("assembled artifact must not carry chunking fields")
	}
	if len(events) != 2 {
		t.Fatalf("event count = %d, want artifact event plus status event", len(events))
	}
	artifactEvent, ok := events[0].(*a2a.TaskArtifactUpdateEvent)
	if !ok {
		t.Fatalf("first event = %T, want artifact event", events[0])
	}
	if len(artifactEvent.Artifact.Parts) != 3 {
		t.Errorf("event part count = %d, want 3", len(artifactEvent.Artifact.Parts))
	}
}

func TestTaskStoreOrphanAppendChunk(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()
	if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	// An append chunk with no open buffer is dropped, not an error.
	task, events, err := store.UpdateStatus(ctx, "t1", a2a.NewTaskStatus(a2a.TaskStateWorking, nil),
		[]*a2a.Artifact{chunk(7, "stray", true, true)})
	if err != nil {
		t.Fatalf("failed to apply orphan chunk: %v", err)
	}
	if len(task.Artifacts) != 0 {
		t.Errorf("artifact count = %d, want 0", len(task.Artifacts))
	}
	if len(events) != 1 {
		t.Errorf("event count = %d, want only the status event", len(events))
	}
}

func TestTaskStoreCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("working task cancels with final event", func(t *testing.T) {
		store := NewTaskStore()
		if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		task, events, err := store.Cancel(ctx, "t1")
		if err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}
		if task.Status.State != a2a.TaskStateCanceled {
			t.Errorf("state = %s, want %s", task.Status.State, a2a.TaskStateCanceled)
		}
		if len(events) != 1 {
			t.Fatalf("event count = %d, want 1", len(events))
		}
		ev, ok := events[0].(*a2a.TaskStatusUpdateEvent)
		if !ok || !ev.Final {
			t.Errorf("event = %#v, want final status event", events[0])
		}
	})

	t.Run("canceled task cancels again without event", func(t *testing.T) {
		store := NewTaskStore()
		if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if _, _, err := store.Cancel(ctx, "t1"); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}

		task, events, err := store.Cancel(ctx, "t1")
		if err != nil {
			t.Fatalf("re-cancel must succeed: %v", err)
		}
		if task.Status.State != a2a.TaskStateCanceled {
			t.Errorf("state = %s, want %s", task.Status.State, a2a.TaskStateCanceled)
		}
		if len(events) != 0 {
			t.Errorf("event count = %d, want 0", len(events))
		}
	})

	t.Run("completed task is not cancelable", func(t *testing.T) {
		store := NewTaskStore()
		if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if _, _, err := store.UpdateStatus(ctx, "t1", a2a.NewTaskStatus(a2a.TaskStateCompleted, nil), nil); err != nil {
			t.Fatalf("failed to complete: %v", err)
		}

		_, _, err := store.Cancel(ctx, "t1")
		var notCancelable *a2a.TaskNotCancelableError
		if !errors.As(err, &notCancelable) {
			t.Fatalf("error = %v, want TaskNotCancelableError", err)
		}
		if notCancelable.State != a2a.TaskStateCompleted {
			t.Errorf("state = %s, want %s", notCancelable.State, a2a.TaskStateCompleted)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		store := NewTaskStore()
		_, _, err := store.Cancel(ctx, "missing")
		var notFound *a2a.TaskNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("error = %v, want TaskNotFoundError", err)
		}
	})
}

func TestTaskStoreCopySemantics(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore()
	if _, err := store.Upsert(ctx, sendParams("t1", "go")); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	task, err := store.Get(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("failed to get task: %v", err)
	}
	task.History[0] = a2a.NewUserTextMessage("mutated")
	task.Status.State = a2a.TaskStateFailed

	fresh, err := store.Get(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("failed to re-get task: %v", err)
	}
	if got := a2a.MessageText(fresh.History[0]); got != "go" {
		t.Errorf("history leaked caller mutation: %q", got)
	}
	if fresh.Status.State != a2a.TaskStateSubmitted {
		t.Errorf("status leaked caller mutation: %s", fresh.Status.State)
	}
}
