// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-a2a/mindlink/a2a"
)

// chunkKey addresses the buffer for one in-flight chunked artifact.
type chunkKey struct {
	taskID string
	index  int
}

// TaskStore is the single authoritative owner of task state. One mutex
// serializes every read-modify-write of the task map; callers only ever
// receive deep copies. The store never blocks on agent processing, which
// happens entirely outside the lock.
type TaskStore struct {
	mu     sync.Mutex
	tasks  map[string]*a2a.Task
	chunks map[chunkKey]*a2a.Artifact

	repo   TaskRepository
	logger *slog.Logger
}

// TaskStoreOption configures a TaskStore.
type TaskStoreOption func(*TaskStore)

// WithStoreLogger sets the logger used by the store.
func WithStoreLogger(logger *slog.Logger) TaskStoreOption {
	return func(s *TaskStore) {
		s.logger = logger
	}
}

// WithRepository sets a write-through persistence backend. Persistence
// failures are logged, never surfaced; the in-memory map stays
// authoritative.
func WithRepository(repo TaskRepository) TaskStoreOption {
	return func(s *TaskStore) {
		s.repo = repo
	}
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore(opts ...TaskStoreOption) *TaskStore {
	s := &TaskStore{
		tasks:  make(map[string]*a2a.Task),
		chunks: make(map[chunkKey]*a2a.Artifact),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert creates a task for an unseen id, or appends the incoming message
// to a known task's history and resets its state to working, clearing any
// prior status message. Duplicate messages are not deduplicated; every
// send appends.
func (s *TaskStore) Upsert(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[params.ID]
	if !ok {
		task = a2a.NewTask(params)
		s.tasks[params.ID] = task
		s.logger.InfoContext(ctx, "created task", slog.String("task_id", task.ID), slog.String("session_id", task.SessionID))
	} else {
		task.History = append(task.History, params.Message)
		task.Status = a2a.NewTaskStatus(a2a.TaskStateWorking, nil)
		s.logger.InfoContext(ctx, "continuing task", slog.String("task_id", task.ID))
	}

	s.persist(ctx, task)
	return copyTask(task), nil
}

// Get returns a copy of the task with history truncated to the last
// historyLength messages. Zero or negative historyLength yields an empty
// history array, not a missing one.
func (s *TaskStore) Get(ctx context.Context, taskID string, historyLength int) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}

	out := copyTask(task)
	out.History = truncateHistory(out.History, historyLength)
	return out, nil
}

// UpdateStatus applies a status transition and any new artifacts to a
// task, returning the updated copy and the events to fan out, artifact
// events first so a final status event is always last. A status message is
// appended to history. Transitions out of a terminal state are rejected.
func (s *TaskStore) UpdateStatus(ctx context.Context, taskID string, status a2a.TaskStatus, artifacts []*a2a.Artifact) (*a2a.Task, []a2a.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}
	if task.Status.State.Terminal() {
		return nil, nil, &a2a.TaskFinalizedError{TaskID: taskID, State: task.Status.State}
	}

	if status.Timestamp == "" {
		status.Timestamp = a2a.Timestamp()
	}
	task.Status = status
	if status.Message != nil {
		task.History = append(task.History, status.Message)
	}

	var events []a2a.TaskEvent
	for _, artifact := range artifacts {
		added, err := s.applyArtifact(ctx, task, artifact)
		if err != nil {
			return nil, nil, err
		}
		if added != nil {
			events = append(events, &a2a.TaskArtifactUpdateEvent{ID: taskID, Artifact: copyArtifact(added)})
		}
	}

	statusCopy := status
	statusCopy.Message = copyMessage(status.Message)
	events = append(events, &a2a.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: statusCopy,
		Final:  status.State.Terminal(),
	})

	s.persist(ctx, task)
	return copyTask(task), events, nil
}

// applyArtifact runs chunk assembly for one incoming artifact and returns
// the artifact added to the task's list, or nil when the chunk was only
// buffered. Callers hold s.mu.
func (s *TaskStore) applyArtifact(ctx context.Context, task *a2a.Task, artifact *a2a.Artifact) (*a2a.Artifact, error) {
	if artifact == nil {
		return nil, fmt.Errorf("artifact cannot be nil")
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	key := chunkKey{taskID: task.ID, index: artifact.Index}
	appendChunk := artifact.Append != nil && *artifact.Append
	lastChunk := artifact.LastChunk == nil || *artifact.LastChunk

	if !appendChunk {
		if !lastChunk {
			// Opening chunk of a multi-chunk artifact; buffer it until the
			// closing chunk arrives.
			s.chunks[key] = copyArtifact(artifact)
			return nil, nil
		}
		added := copyArtifact(artifact)
		task.Artifacts = append(task.Artifacts, added)
		return added, nil
	}

	buffered, ok := s.chunks[key]
	if !ok {
		s.logger.WarnContext(ctx, "dropping append chunk with no open buffer",
			slog.String("task_id", task.ID), slog.Int("index", artifact.Index))
		return nil, nil
	}
	buffered.Parts = append(buffered.Parts, copyArtifact(artifact).Parts...)
	if !lastChunk {
		return nil, nil
	}

	delete(s.chunks, key)
	buffered.Append = nil
	buffered.LastChunk = nil
	task.Artifacts = append(task.Artifacts, buffered)
	return buffered, nil
}

// Cancel moves a non-terminal task to canceled and returns it with the
// final event to publish. Re-canceling an already canceled task succeeds,
// returns the task unchanged and produces no event. Canceling a completed
// or failed task reports TaskNotCancelable with the current state.
func (s *TaskStore) Cancel(ctx context.Context, taskID string) (*a2a.Task, []a2a.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil, &a2a.TaskNotFoundError{TaskID: taskID}
	}

	switch {
	case task.Status.State == a2a.TaskStateCanceled:
		return copyTask(task), nil, nil
	case task.Status.State.Terminal():
		return nil, nil, &a2a.TaskNotCancelableError{TaskID: taskID, State: task.Status.State}
	}

	task.Status = a2a.NewTaskStatus(a2a.TaskStateCanceled, nil)
	s.logger.InfoContext(ctx, "canceled task", slog.String("task_id", taskID))

	events := []a2a.TaskEvent{&a2a.TaskStatusUpdateEvent{
		ID:     taskID,
		Status: task.Status,
		Final:  true,
	}}

	s.persist(ctx, task)
	return copyTask(task), events, nil
}

// Exists reports whether the store has a record for the task id.
func (s *TaskStore) Exists(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[taskID]
	return ok
}

// persist writes through to the repository when one is configured.
// Callers hold s.mu.
func (s *TaskStore) persist(ctx context.Context, task *a2a.Task) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, copyTask(task)); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist task",
			slog.String("task_id", task.ID), slog.String("error", err.Error()))
	}
}

// truncateHistory returns the last n messages as a non-nil slice. n <= 0
// yields an empty history.
func truncateHistory(history []*a2a.Message, n int) []*a2a.Message {
	if n <= 0 || len(history) == 0 {
		return []*a2a.Message{}
	}
	if n >= len(history) {
		out := make([]*a2a.Message, len(history))
		copy(out, history)
		return out
	}
	out := make([]*a2a.Message, n)
	copy(out, history[len(history)-n:])
	return out
}

// copyTask creates a deep copy so callers can never mutate shared state.
// Parts are immutable once constructed, so part pointers are shared.
func copyTask(task *a2a.Task) *a2a.Task {
	if task == nil {
		return nil
	}
	out := &a2a.Task{
		ID:        task.ID,
		SessionID: task.SessionID,
		Status:    task.Status,
		Metadata:  copyMetadata(task.Metadata),
	}
	out.Status.Message = copyMessage(task.Status.Message)
	out.Artifacts = make([]*a2a.Artifact, 0, len(task.Artifacts))
	for _, artifact := range task.Artifacts {
		out.Artifacts = append(out.Artifacts, copyArtifact(artifact))
	}
	out.History = make([]*a2a.Message, 0, len(task.History))
	for _, message := range task.History {
		out.History = append(out.History, copyMessage(message))
	}
	return out
}

func copyMessage(message *a2a.Message) *a2a.Message {
	if message == nil {
		return nil
	}
	parts := make([]*a2a.PartWrapper, len(message.Parts))
	copy(parts, message.Parts)
	return &a2a.Message{
		Role:     message.Role,
		Parts:    parts,
		Metadata: copyMetadata(message.Metadata),
	}
}

func copyArtifact(artifact *a2a.Artifact) *a2a.Artifact {
	if artifact == nil {
		return nil
	}
	parts := make([]*a2a.PartWrapper, len(artifact.Parts))
	copy(parts, artifact.Parts)
	out := &a2a.Artifact{
		Name:        artifact.Name,
		Description: artifact.Description,
		Parts:       parts,
		Metadata:    copyMetadata(artifact.Metadata),
		Index:       artifact.Index,
	}
	if artifact.Append != nil {
		v := *artifact.Append
		out.Append = &v
	}
	if artifact.LastChunk != nil {
		v := *artifact.LastChunk
		out.LastChunk = &v
	}
	return out
}

func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
