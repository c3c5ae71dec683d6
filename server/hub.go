// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/go-a2a/mindlink/a2a"
)

// ErrSubscriptionClosed is returned by Subscription.Next once the
// subscription is drained and closed.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is one consumer's view of a task's event stream: an
// unbounded FIFO queue filled by the hub and drained by Next. Publishing
// never blocks on a slow consumer; an overwhelmed consumer grows memory
// instead of stalling the producer.
type Subscription struct {
	taskID string
	hub    *EventHub

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []a2a.TaskEvent
	closed   bool
	sawFinal bool
}

func newSubscription(taskID string) *Subscription {
	s := &Subscription{taskID: taskID}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// TaskID returns the id of the task this subscription follows.
func (s *Subscription) TaskID() string { return s.taskID }

// Next blocks until an event is available, the subscription is closed, or
// ctx is done. Queued events are drained even after Close. The final
// status event of a task is delivered before the stream reports closed.
func (s *Subscription) Next(ctx context.Context) (a2a.TaskEvent, error) {
	stop := context.AfterFunc(ctx, s.markClosed)
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrSubscriptionClosed
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	if a2a.IsFinalEvent(ev) {
		s.sawFinal = true
	}
	return ev, nil
}

// Close stops delivery and detaches the subscription from its hub.
// Events already queued remain readable.
func (s *Subscription) Close() {
	if s.hub != nil {
		s.hub.Unsubscribe(s)
		return
	}
	s.markClosed()
}

func (s *Subscription) finalSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawFinal
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *Subscription) push(ev a2a.TaskEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.cond.Signal()
}

// EventHub fans task events out to every live subscriber of a task, in
// emission order, without blocking the emitter. There is no replay: events
// published while a task has no subscribers are dropped, so a late
// subscriber misses them.
type EventHub struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription
	logger *slog.Logger

	// onIdle, when set, is invoked after a task's last subscriber leaves,
	// outside the hub lock.
	onIdle func(taskID string)
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		subs:   make(map[string][]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a new consumer for the task's events. With
// resubscribe set, the task id must already have a subscriber-list entry;
// a fresh subscribe creates it.
func (h *EventHub) Subscribe(taskID string, resubscribe bool) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[taskID]; !ok {
		if resubscribe {
			return nil, &a2a.ResubscribeError{TaskID: taskID}
		}
		h.subs[taskID] = []*Subscription{}
	}
	sub := newSubscription(taskID)
	sub.hub = h
	h.subs[taskID] = append(h.subs[taskID], sub)
	return sub, nil
}

// Publish delivers the events to every live subscriber of the task.
func (h *EventHub) Publish(ctx context.Context, taskID string, events ...a2a.TaskEvent) {
	h.mu.Lock()
	subs := slices.Clone(h.subs[taskID])
	h.mu.Unlock()

	if len(subs) == 0 {
		h.logger.DebugContext(ctx, "no subscribers, dropping events",
			slog.String("task_id", taskID), slog.Int("count", len(events)))
		return
	}
	for _, ev := range events {
		for _, sub := range subs {
			sub.push(ev)
		}
	}
}

// Unsubscribe closes the subscription and removes it from the task's
// list. The list entry itself is garbage collected once the last
// subscriber of a finished stream leaves.
func (h *EventHub) Unsubscribe(sub *Subscription) {
	sub.markClosed()

	h.mu.Lock()
	list, ok := h.subs[sub.taskID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if i := slices.Index(list, sub); i >= 0 {
		list = slices.Delete(list, i, i+1)
		h.subs[sub.taskID] = list
	}
	idle := len(list) == 0
	if idle && sub.finalSeen() {
		delete(h.subs, sub.taskID)
	}
	h.mu.Unlock()

	if idle && h.onIdle != nil {
		h.onIdle(sub.taskID)
	}
}

// SubscriberCount returns the number of live subscribers for a task.
func (h *EventHub) SubscriberCount(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}

// singleShot builds a detached subscription preloaded with the given
// events and already closed, used to answer a resubscribe on a task that
// has already finished.
func singleShot(taskID string, events ...a2a.TaskEvent) *Subscription {
	sub := newSubscription(taskID)
	sub.queue = append(sub.queue, events...)
	sub.closed = true
	return sub
}
