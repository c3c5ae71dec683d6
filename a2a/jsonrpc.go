// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version used by A2A.
const Version = "2.0"

// A2A method names.
const (
	MethodTasksSend                = "tasks/send"
	MethodTasksSendSubscribe       = "tasks/sendSubscribe"
	MethodTasksGet                 = "tasks/get"
	MethodTasksCancel              = "tasks/cancel"
	MethodTasksPushNotificationSet = "tasks/pushNotification/set"
	MethodTasksPushNotificationGet = "tasks/pushNotification/get"
	MethodTasksResubscribe         = "tasks/resubscribe"
	MethodKnowledgeQuery           = "knowledge/query"
	MethodKnowledgeUpdate          = "knowledge/update"
	MethodKnowledgeSubscribe       = "knowledge/subscribe"
)

// JSONRPCMessage is the base of every request and response. The ID is
// echoed from request to every response, including every event within an
// SSE stream.
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
}

// JSONRPCRequest is a single JSON-RPC request.
type JSONRPCRequest struct {
	JSONRPCMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a single JSON-RPC response. Exactly one of Result and
// Error is set.
type JSONRPCResponse struct {
	JSONRPCMessage
	Result any           `json:"result,omitempty"`
	Error  *JSONRPCError `json:"error,omitempty"`
}

// NewResponse builds a success response echoing the request id.
func NewResponse(id any, result any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: Version, ID: id},
		Result:         result,
	}
}

// NewErrorResponse builds an error response echoing the request id.
func NewErrorResponse(id any, rpcErr *JSONRPCError) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: Version, ID: id},
		Error:          rpcErr,
	}
}

// JSON-RPC error codes. The -32000 range carries the A2A task errors, the
// -32010 range the knowledge-graph extension errors.
const (
	CodeParseError                   = -32700
	CodeInvalidRequest               = -32600
	CodeMethodNotFound               = -32601
	CodeInvalidParams                = -32602
	CodeInternalError                = -32603
	CodeTaskNotFound                 = -32001
	CodeTaskNotCancelable            = -32002
	CodePushNotificationNotSupported = -32003
	CodeUnsupportedOperation         = -32004
	CodeContentTypeNotSupported      = -32005
	CodeKnowledgeQueryError          = -32010
	CodeKnowledgeUpdateError         = -32011
	CodeKnowledgeSubscriptionError   = -32012
	CodeAlignmentViolation           = -32013
)

// JSONRPCError is the wire error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewParseError creates an error for unparseable JSON payloads.
func NewParseError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeParseError, Message: "Invalid JSON payload", Data: data}
}

// NewInvalidRequestError creates an error for schema-invalid requests.
func NewInvalidRequestError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeInvalidRequest, Message: "Request payload validation error", Data: data}
}

// NewMethodNotFoundError creates an error for unknown or gated-off methods.
func NewMethodNotFoundError() *JSONRPCError {
	return &JSONRPCError{Code: CodeMethodNotFound, Message: "Method not found"}
}

// NewInvalidParamsError creates an error for invalid method parameters.
func NewInvalidParamsError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeInvalidParams, Message: "Invalid parameters", Data: data}
}

// NewInternalError creates a generic internal error.
func NewInternalError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeInternalError, Message: "Internal error", Data: data}
}

// NewTaskNotFoundError creates an error for operations on unknown task ids.
func NewTaskNotFoundError() *JSONRPCError {
	return &JSONRPCError{Code: CodeTaskNotFound, Message: "Task not found"}
}

// NewTaskNotCancelableError creates an error for canceling a task that is
// already in a terminal state. The current state travels in the data field.
func NewTaskNotCancelableError(state TaskState) *JSONRPCError {
	return &JSONRPCError{
		Code:    CodeTaskNotCancelable,
		Message: "Task cannot be canceled",
		Data:    map[string]any{"currentState": string(state)},
	}
}

// NewPushNotificationNotSupportedError creates an error for push
// notification operations when no callback is configured or supported.
func NewPushNotificationNotSupportedError() *JSONRPCError {
	return &JSONRPCError{Code: CodePushNotificationNotSupported, Message: "Push Notification is not supported"}
}

// NewUnsupportedOperationError creates an error for operations the agent
// does not implement.
func NewUnsupportedOperationError() *JSONRPCError {
	return &JSONRPCError{Code: CodeUnsupportedOperation, Message: "This operation is not supported"}
}

// NewContentTypeNotSupportedError creates an error for incompatible
// content types.
func NewContentTypeNotSupportedError() *JSONRPCError {
	return &JSONRPCError{Code: CodeContentTypeNotSupported, Message: "Incompatible content types"}
}

// NewKnowledgeQueryError creates an error for failed knowledge queries.
func NewKnowledgeQueryError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeKnowledgeQueryError, Message: "Knowledge query failed", Data: data}
}

// NewKnowledgeUpdateError creates an error for failed knowledge updates.
func NewKnowledgeUpdateError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeKnowledgeUpdateError, Message: "Knowledge update failed", Data: data}
}

// NewKnowledgeSubscriptionError creates an error for failed knowledge
// subscriptions.
func NewKnowledgeSubscriptionError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeKnowledgeSubscriptionError, Message: "Knowledge subscription failed", Data: data}
}

// NewAlignmentViolationError creates an error for operations that violate
// alignment constraints.
func NewAlignmentViolationError(data any) *JSONRPCError {
	return &JSONRPCError{Code: CodeAlignmentViolation, Message: "Operation violates alignment constraints", Data: data}
}
