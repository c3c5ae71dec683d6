// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"errors"
	"fmt"
)

// TaskNotFoundError indicates an operation referenced an unknown task id.
type TaskNotFoundError struct {
	TaskID string
}

// Error implements the error interface.
func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// JSONRPCError returns the wire representation.
func (e *TaskNotFoundError) JSONRPCError() *JSONRPCError {
	return NewTaskNotFoundError()
}

// TaskNotCancelableError indicates a cancel attempt on a task already in a
// terminal state.
type TaskNotCancelableError struct {
	TaskID string
	State  TaskState
}

// Error implements the error interface.
func (e *TaskNotCancelableError) Error() string {
	return fmt.Sprintf("task %s cannot be canceled in state %s", e.TaskID, e.State)
}

// JSONRPCError returns the wire representation, carrying the current state
// in the data field.
func (e *TaskNotCancelableError) JSONRPCError() *JSONRPCError {
	return NewTaskNotCancelableError(e.State)
}

// TaskFinalizedError indicates a status update attempted to move a task out
// of a terminal state.
type TaskFinalizedError struct {
	TaskID string
	State  TaskState
}

// Error implements the error interface.
func (e *TaskFinalizedError) Error() string {
	return fmt.Sprintf("task %s already finalized in state %s", e.TaskID, e.State)
}

// JSONRPCError returns the wire representation.
func (e *TaskFinalizedError) JSONRPCError() *JSONRPCError {
	return NewInternalError(e.Error())
}

// PushNotificationNotSupportedError indicates no push callback is
// configured or supported for the task.
type PushNotificationNotSupportedError struct {
	TaskID string
}

// Error implements the error interface.
func (e *PushNotificationNotSupportedError) Error() string {
	return fmt.Sprintf("push notification not supported for task %s", e.TaskID)
}

// JSONRPCError returns the wire representation.
func (e *PushNotificationNotSupportedError) JSONRPCError() *JSONRPCError {
	return NewPushNotificationNotSupportedError()
}

// UnsupportedOperationError indicates the agent does not implement the
// requested operation.
type UnsupportedOperationError struct {
	Operation string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation not supported: %s", e.Operation)
}

// JSONRPCError returns the wire representation.
func (e *UnsupportedOperationError) JSONRPCError() *JSONRPCError {
	return NewUnsupportedOperationError()
}

// ResubscribeError indicates a resubscription for a task id with no
// existing record.
type ResubscribeError struct {
	TaskID string
}

// Error implements the error interface.
func (e *ResubscribeError) Error() string {
	return fmt.Sprintf("task not found for resubscription: %s", e.TaskID)
}

// JSONRPCError returns the wire representation.
func (e *ResubscribeError) JSONRPCError() *JSONRPCError {
	return NewInternalError(e.Error())
}

// wireError is implemented by typed errors that know their JSON-RPC form.
type wireError interface {
	error
	JSONRPCError() *JSONRPCError
}

// ToJSONRPCError translates any error into a JSON-RPC error object. Typed
// protocol errors map 1:1; everything else becomes an internal error with
// the error text in the data field.
func ToJSONRPCError(err error) *JSONRPCError {
	if err == nil {
		return nil
	}
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var we wireError
	if errors.As(err, &we) {
		return we.JSONRPCError()
	}
	return NewInternalError(err.Error())
}
