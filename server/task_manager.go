// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-a2a/mindlink/a2a"
)

// TaskProcessor is the agent-side collaborator the manager drives. It
// receives a copy of the task, the message that triggered processing, and
// an updater for emitting status and artifact updates. The context carries
// cooperative cancellation: implementations should check it between units
// of work and stop emitting once it is done.
type TaskProcessor interface {
	Process(ctx context.Context, task *a2a.Task, message *a2a.Message, updater *TaskUpdater) error
}

// TaskProcessorFunc adapts a function to the TaskProcessor interface.
type TaskProcessorFunc func(ctx context.Context, task *a2a.Task, message *a2a.Message, updater *TaskUpdater) error

// Process implements TaskProcessor.
func (f TaskProcessorFunc) Process(ctx context.Context, task *a2a.Task, message *a2a.Message, updater *TaskUpdater) error {
	return f(ctx, task, message, updater)
}

// KnowledgeBackend implements the knowledge-graph extension methods.
// Deployments without one answer those methods with UnsupportedOperation.
type KnowledgeBackend interface {
	Query(ctx context.Context, params *a2a.KnowledgeQueryParams) (*a2a.KnowledgeQueryResult, error)
	Update(ctx context.Context, params *a2a.KnowledgeUpdateParams) (*a2a.KnowledgeUpdateResult, error)
	Subscribe(ctx context.Context, params *a2a.KnowledgeSubscribeParams) (<-chan *a2a.KnowledgeGraphChangeEvent, error)
}

// TaskManager orchestrates the task lifecycle: creation, processing,
// status fan-out, cancellation, push notifications and the knowledge
// extension surface.
type TaskManager interface {
	OnSendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error)
	OnSendTaskSubscribe(ctx context.Context, params *a2a.TaskSendParams) (*Subscription, error)
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)
	OnSetTaskPushNotification(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error)
	OnGetTaskPushNotification(ctx context.Context, params *a2a.TaskIDParams) (*a2a.TaskPushNotificationConfig, error)
	OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) (*Subscription, error)
	OnKnowledgeQuery(ctx context.Context, params *a2a.KnowledgeQueryParams) (*a2a.KnowledgeQueryResult, error)
	OnKnowledgeUpdate(ctx context.Context, params *a2a.KnowledgeUpdateParams) (*a2a.KnowledgeUpdateResult, error)
	OnKnowledgeSubscribe(ctx context.Context, params *a2a.KnowledgeSubscribeParams) (<-chan *a2a.KnowledgeGraphChangeEvent, error)
}

// DefaultTaskManager is the in-memory TaskManager implementation backed by
// a TaskStore, an EventHub and a PushNotifier.
type DefaultTaskManager struct {
	store     *TaskStore
	hub       *EventHub
	notifier  *PushNotifier
	processor TaskProcessor
	knowledge KnowledgeBackend

	logger *slog.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

var _ TaskManager = (*DefaultTaskManager)(nil)

// TaskManagerOption configures a DefaultTaskManager.
type TaskManagerOption func(*DefaultTaskManager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) TaskManagerOption {
	return func(tm *DefaultTaskManager) {
		tm.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer trace.Tracer) TaskManagerOption {
	return func(tm *DefaultTaskManager) {
		tm.tracer = tracer
	}
}

// WithTaskStore sets a custom task store, e.g. one configured with a
// persistence repository.
func WithTaskStore(store *TaskStore) TaskManagerOption {
	return func(tm *DefaultTaskManager) {
		tm.store = store
	}
}

// WithPushNotifier sets a custom push notifier.
func WithPushNotifier(notifier *PushNotifier) TaskManagerOption {
	return func(tm *DefaultTaskManager) {
		tm.notifier = notifier
	}
}

// WithKnowledgeBackend enables the knowledge-graph extension methods.
func WithKnowledgeBackend(backend KnowledgeBackend) TaskManagerOption {
	return func(tm *DefaultTaskManager) {
		tm.knowledge = backend
	}
}

// NewTaskManager creates a DefaultTaskManager driving the given processor.
func NewTaskManager(processor TaskProcessor, opts ...TaskManagerOption) *DefaultTaskManager {
	tm := &DefaultTaskManager{
		processor: processor,
		logger:    slog.Default(),
		tracer:    otel.Tracer("a2a.task_manager"),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(tm)
	}
	if tm.store == nil {
		tm.store = NewTaskStore(WithStoreLogger(tm.logger))
	}
	if tm.notifier == nil {
		tm.notifier = NewPushNotifier(WithNotifierLogger(tm.logger))
	}
	tm.hub = NewEventHub(tm.logger)
	// A task whose last subscriber left has nobody listening; stop its
	// processing unit.
	tm.hub.onIdle = tm.cancelProcessing
	return tm
}

// Hub exposes the event hub, mainly for tests and embedding servers.
func (tm *DefaultTaskManager) Hub() *EventHub { return tm.hub }

// OnSendTask upserts the task and drives agent processing to completion
// synchronously, returning the final task with history truncated to the
// requested length.
func (tm *DefaultTaskManager) OnSendTask(ctx context.Context, params *a2a.TaskSendParams) (*a2a.Task, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnSendTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	task, err := tm.store.Upsert(ctx, params)
	if err != nil {
		return nil, err
	}
	if params.PushNotification != nil {
		tm.notifier.Set(params.ID, params.PushNotification)
	}

	procCtx, cancel := context.WithCancel(ctx)
	tm.registerCancel(params.ID, cancel)
	defer tm.unregisterCancel(params.ID)

	if err := tm.processor.Process(procCtx, task, params.Message, tm.updater(params.ID)); err != nil {
		tm.failTask(ctx, params.ID, err)
	}

	return tm.store.Get(ctx, params.ID, historyLen(params.HistoryLength))
}

// OnSendTaskSubscribe upserts the task, opens a subscription and launches
// agent processing concurrently. The subscription is returned immediately;
// the processing unit observes cancellation when the task is canceled or
// when the last subscriber disconnects mid-flight.
func (tm *DefaultTaskManager) OnSendTaskSubscribe(ctx context.Context, params *a2a.TaskSendParams) (*Subscription, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnSendTaskSubscribe",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	task, err := tm.store.Upsert(ctx, params)
	if err != nil {
		return nil, err
	}
	if params.PushNotification != nil {
		tm.notifier.Set(params.ID, params.PushNotification)
	}

	sub, err := tm.hub.Subscribe(params.ID, false)
	if err != nil {
		return nil, err
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	tm.registerCancel(params.ID, cancel)

	go func() {
		defer tm.unregisterCancel(params.ID)
		err := tm.processor.Process(procCtx, task, params.Message, tm.updater(params.ID))
		switch {
		case procCtx.Err() != nil:
			tm.logger.InfoContext(procCtx, "task processing stopped by cancellation",
				slog.String("task_id", params.ID))
		case err != nil:
			tm.failTask(context.WithoutCancel(ctx), params.ID, err)
		}
	}()

	return sub, nil
}

// OnGetTask returns the task with history truncated to the requested
// length.
func (tm *DefaultTaskManager) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnGetTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	return tm.store.Get(ctx, params.ID, historyLen(params.HistoryLength))
}

// OnCancelTask cancels a task. The running processing unit, if any, is
// signaled through its context; the final canceled event is published to
// subscribers. Re-canceling a canceled task is a no-op.
func (tm *DefaultTaskManager) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnCancelTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	task, events, err := tm.store.Cancel(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if len(events) > 0 {
		tm.cancelProcessing(params.ID)
		tm.hub.Publish(ctx, params.ID, events...)
		tm.notify(ctx, task)
	}
	return task, nil
}

// OnSetTaskPushNotification stores the push callback config for a task.
func (tm *DefaultTaskManager) OnSetTaskPushNotification(ctx context.Context, params *a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnSetTaskPushNotification",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	if !tm.store.Exists(params.ID) {
		return nil, &a2a.TaskNotFoundError{TaskID: params.ID}
	}
	if err := tm.notifier.VerifyURL(ctx, &params.PushNotificationConfig); err != nil {
		return nil, a2a.NewInvalidParamsError(err.Error())
	}
	config := params.PushNotificationConfig
	tm.notifier.Set(params.ID, &config)
	return params, nil
}

// OnGetTaskPushNotification returns the push callback config for a task.
// A known task without a configured callback reports
// PushNotificationNotSupported, not TaskNotFound.
func (tm *DefaultTaskManager) OnGetTaskPushNotification(ctx context.Context, params *a2a.TaskIDParams) (*a2a.TaskPushNotificationConfig, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnGetTaskPushNotification",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	if !tm.store.Exists(params.ID) {
		return nil, &a2a.TaskNotFoundError{TaskID: params.ID}
	}
	config, ok := tm.notifier.Get(params.ID)
	if !ok {
		return nil, &a2a.PushNotificationNotSupportedError{TaskID: params.ID}
	}
	return &a2a.TaskPushNotificationConfig{ID: params.ID, PushNotificationConfig: *config}, nil
}

// OnResubscribeToTask reopens an event stream for a task. A task already
// in a terminal state yields a one-shot stream carrying a synthesized
// final status event; an unknown id is an internal error.
func (tm *DefaultTaskManager) OnResubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) (*Subscription, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnResubscribeToTask",
		trace.WithAttributes(attribute.String("a2a.task_id", params.ID)))
	defer span.End()

	task, err := tm.store.Get(ctx, params.ID, 0)
	if err != nil {
		return nil, &a2a.ResubscribeError{TaskID: params.ID}
	}

	if task.Status.State.Terminal() {
		return singleShot(params.ID, &a2a.TaskStatusUpdateEvent{
			ID:     params.ID,
			Status: task.Status,
			Final:  true,
		}), nil
	}

	sub, err := tm.hub.Subscribe(params.ID, true)
	if err != nil {
		// The previous stream finished and its registry entry was
		// collected; the task record still exists, so open fresh.
		return tm.hub.Subscribe(params.ID, false)
	}
	return sub, nil
}

// OnKnowledgeQuery runs a knowledge-graph query through the configured
// backend.
func (tm *DefaultTaskManager) OnKnowledgeQuery(ctx context.Context, params *a2a.KnowledgeQueryParams) (*a2a.KnowledgeQueryResult, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnKnowledgeQuery")
	defer span.End()

	if tm.knowledge == nil {
		return nil, &a2a.UnsupportedOperationError{Operation: a2a.MethodKnowledgeQuery}
	}
	return tm.knowledge.Query(ctx, params)
}

// OnKnowledgeUpdate applies knowledge-graph mutations through the
// configured backend.
func (tm *DefaultTaskManager) OnKnowledgeUpdate(ctx context.Context, params *a2a.KnowledgeUpdateParams) (*a2a.KnowledgeUpdateResult, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnKnowledgeUpdate")
	defer span.End()

	if tm.knowledge == nil {
		return nil, &a2a.UnsupportedOperationError{Operation: a2a.MethodKnowledgeUpdate}
	}
	return tm.knowledge.Update(ctx, params)
}

// OnKnowledgeSubscribe opens a knowledge-graph change stream through the
// configured backend.
func (tm *DefaultTaskManager) OnKnowledgeSubscribe(ctx context.Context, params *a2a.KnowledgeSubscribeParams) (<-chan *a2a.KnowledgeGraphChangeEvent, error) {
	ctx, span := tm.tracer.Start(ctx, "a2a.task_manager.OnKnowledgeSubscribe")
	defer span.End()

	if tm.knowledge == nil {
		return nil, &a2a.UnsupportedOperationError{Operation: a2a.MethodKnowledgeSubscribe}
	}
	return tm.knowledge.Subscribe(ctx, params)
}

// updater builds the TaskUpdater handed to the processor for one task.
func (tm *DefaultTaskManager) updater(taskID string) *TaskUpdater {
	return &TaskUpdater{tm: tm, taskID: taskID}
}

// applyUpdate commits a status/artifact update and fans the resulting
// events out to subscribers and the push callback.
func (tm *DefaultTaskManager) applyUpdate(ctx context.Context, taskID string, status a2a.TaskStatus, artifacts []*a2a.Artifact) (*a2a.Task, error) {
	task, events, err := tm.store.UpdateStatus(ctx, taskID, status, artifacts)
	if err != nil {
		return nil, err
	}
	tm.hub.Publish(ctx, taskID, events...)
	tm.notify(ctx, task)
	return task, nil
}

// failTask converts a processing error into a terminal failed status so
// subscribers always receive a clean final event. A task that reached a
// terminal state in the meantime is left untouched.
func (tm *DefaultTaskManager) failTask(ctx context.Context, taskID string, procErr error) {
	tm.logger.ErrorContext(ctx, "task processing failed",
		slog.String("task_id", taskID), slog.String("error", procErr.Error()))

	status := a2a.NewTaskStatus(a2a.TaskStateFailed, a2a.NewAgentTextMessage(procErr.Error()))
	if _, err := tm.applyUpdate(ctx, taskID, status, nil); err != nil {
		var finalized *a2a.TaskFinalizedError
		if !errors.As(err, &finalized) {
			tm.logger.ErrorContext(ctx, "failed to record task failure",
				slog.String("task_id", taskID), slog.String("error", err.Error()))
		}
	}
}

// notify delivers the current task snapshot to the configured push
// callback, fire and forget.
func (tm *DefaultTaskManager) notify(ctx context.Context, task *a2a.Task) {
	config, ok := tm.notifier.Get(task.ID)
	if !ok {
		return
	}
	go func() {
		nctx := context.WithoutCancel(ctx)
		if err := tm.notifier.Notify(nctx, config, task); err != nil {
			tm.logger.WarnContext(nctx, "push notification failed",
				slog.String("task_id", task.ID), slog.String("error", err.Error()))
		}
	}()
}

func (tm *DefaultTaskManager) registerCancel(taskID string, cancel context.CancelFunc) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.cancels[taskID] = cancel
}

func (tm *DefaultTaskManager) unregisterCancel(taskID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cancel, ok := tm.cancels[taskID]; ok {
		cancel()
		delete(tm.cancels, taskID)
	}
}

func (tm *DefaultTaskManager) cancelProcessing(taskID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if cancel, ok := tm.cancels[taskID]; ok {
		cancel()
	}
}

func historyLen(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
