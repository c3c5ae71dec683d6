// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/go-a2a/mindlink/a2a"
)

// maxBodySize bounds how much of a request body is read.
const maxBodySize = 10 << 20

// handleRPC is the single JSON-RPC endpoint. Every A2A method arrives
// here as an HTTP POST; the method field selects the handler and the
// agent card's capabilities gate which methods exist at all.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.writeError(w, r, "", nil, http.StatusBadRequest, a2a.NewParseError(err.Error()))
		return
	}

	var req a2a.JSONRPCRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, "", nil, http.StatusBadRequest, a2a.NewParseError(err.Error()))
		return
	}
	if req.JSONRPC != a2a.Version || req.Method == "" {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(nil))
		return
	}
	if !s.methodEnabled(req.Method) {
		s.writeError(w, r, req.Method, req.ID, http.StatusNotFound, a2a.NewMethodNotFoundError())
		return
	}

	switch req.Method {
	case a2a.MethodTasksSend:
		s.handleSendTask(w, r, &req)
	case a2a.MethodTasksSendSubscribe:
		s.handleSendTaskSubscribe(w, r, &req)
	case a2a.MethodTasksGet:
		s.handleGetTask(w, r, &req)
	case a2a.MethodTasksCancel:
		s.handleCancelTask(w, r, &req)
	case a2a.MethodTasksPushNotificationSet:
		s.handleSetPushNotification(w, r, &req)
	case a2a.MethodTasksPushNotificationGet:
		s.handleGetPushNotification(w, r, &req)
	case a2a.MethodTasksResubscribe:
		s.handleResubscribe(w, r, &req)
	case a2a.MethodKnowledgeQuery:
		s.handleKnowledgeQuery(w, r, &req)
	case a2a.MethodKnowledgeUpdate:
		s.handleKnowledgeUpdate(w, r, &req)
	case a2a.MethodKnowledgeSubscribe:
		s.handleKnowledgeSubscribe(w, r, &req)
	default:
		s.writeError(w, r, req.Method, req.ID, http.StatusNotFound, a2a.NewMethodNotFoundError())
	}
}

// methodEnabled reports whether the method is dispatched at all given
// the agent card's capabilities. A gated-off method is indistinguishable
// from an unknown one.
func (s *Server) methodEnabled(method string) bool {
	caps := s.card.Capabilities
	switch method {
	case a2a.MethodTasksSend, a2a.MethodTasksGet, a2a.MethodTasksCancel:
		return true
	case a2a.MethodTasksSendSubscribe, a2a.MethodTasksResubscribe:
		return caps.Streaming
	case a2a.MethodTasksPushNotificationSet, a2a.MethodTasksPushNotificationGet:
		return caps.PushNotifications
	case a2a.MethodKnowledgeQuery, a2a.MethodKnowledgeUpdate:
		return caps.KnowledgeGraph
	case a2a.MethodKnowledgeSubscribe:
		return caps.KnowledgeGraph && caps.Streaming
	default:
		return false
	}
}

func (s *Server) handleSendTask(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskSendParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if err := params.Validate(); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError(err.Error()))
		return
	}
	task, err := s.tm.OnSendTask(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskQueryParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if params.ID == "" {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError("id is required"))
		return
	}
	task, err := s.tm.OnGetTask(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskIDParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if params.ID == "" {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError("id is required"))
		return
	}
	task, err := s.tm.OnCancelTask(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, task)
}

func (s *Server) handleSetPushNotification(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskPushNotificationConfig
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if params.ID == "" || params.PushNotificationConfig.URL == "" {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError("id and pushNotificationConfig.url are required"))
		return
	}
	config, err := s.tm.OnSetTaskPushNotification(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, config)
}

func (s *Server) handleGetPushNotification(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskIDParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if params.ID == "" {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError("id is required"))
		return
	}
	config, err := s.tm.OnGetTaskPushNotification(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, config)
}

func (s *Server) handleSendTaskSubscribe(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskSendParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if err := params.Validate(); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError(err.Error()))
		return
	}
	sub, err := s.tm.OnSendTaskSubscribe(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.streamSubscription(w, r, req, sub)
}

func (s *Server) handleResubscribe(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.TaskIDParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	if params.ID == "" {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidParamsError("id is required"))
		return
	}
	sub, err := s.tm.OnResubscribeToTask(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.streamSubscription(w, r, req, sub)
}

func (s *Server) handleKnowledgeQuery(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.KnowledgeQueryParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	result, err := s.tm.OnKnowledgeQuery(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, result)
}

func (s *Server) handleKnowledgeUpdate(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.KnowledgeUpdateParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	result, err := s.tm.OnKnowledgeUpdate(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}
	s.writeResult(w, r, req, result)
}

func (s *Server) handleKnowledgeSubscribe(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest) {
	var params a2a.KnowledgeSubscribeParams
	if err := sonic.Unmarshal(req.Params, &params); err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusBadRequest, a2a.NewInvalidRequestError(err.Error()))
		return
	}
	events, err := s.tm.OnKnowledgeSubscribe(r.Context(), &params)
	if err != nil {
		s.writeDomainError(w, r, req, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusInternalServerError, a2a.NewInternalError(err.Error()))
		return
	}
	s.metrics.streamOpened()
	s.metrics.observeRequest(req.Method, http.StatusOK)
	defer s.metrics.streamClosed()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteResponse(a2a.NewResponse(req.ID, ev)); err != nil {
				s.logger.WarnContext(r.Context(), "stopping knowledge stream",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// streamSubscription drains a task subscription onto an SSE stream. Each
// event travels as a full JSON-RPC response echoing the request id, and
// the stream ends after the final status event.
func (s *Server) streamSubscription(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest, sub *Subscription) {
	defer sub.Close()

	sse, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, r, req.Method, req.ID, http.StatusInternalServerError, a2a.NewInternalError(err.Error()))
		return
	}
	s.metrics.streamOpened()
	s.metrics.observeRequest(req.Method, http.StatusOK)
	defer s.metrics.streamClosed()

	for {
		ev, err := sub.Next(r.Context())
		if err != nil {
			if !errors.Is(err, ErrSubscriptionClosed) && r.Context().Err() == nil {
				s.logger.WarnContext(r.Context(), "event stream interrupted",
					slog.String("task_id", sub.TaskID()), slog.String("error", err.Error()))
			}
			return
		}
		if err := sse.WriteResponse(a2a.NewResponse(req.ID, ev)); err != nil {
			s.logger.WarnContext(r.Context(), "stopping event stream",
				slog.String("task_id", sub.TaskID()), slog.String("error", err.Error()))
			return
		}
		if a2a.IsFinalEvent(ev) {
			return
		}
	}
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest, result any) {
	s.writeJSON(w, r, req.Method, http.StatusOK, a2a.NewResponse(req.ID, result))
}

// writeDomainError maps a handler error onto the wire. Domain errors
// like TaskNotFound stay HTTP 200; protocol-level failures surface as
// their HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, req *a2a.JSONRPCRequest, err error) {
	rpcErr := a2a.ToJSONRPCError(err)
	s.writeError(w, r, req.Method, req.ID, httpStatusFor(rpcErr.Code), rpcErr)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, method string, id any, status int, rpcErr *a2a.JSONRPCError) {
	s.logger.WarnContext(r.Context(), "request failed",
		slog.String("method", method),
		slog.Int("code", rpcErr.Code),
		slog.String("message", rpcErr.Message))
	s.writeJSON(w, r, method, status, a2a.NewErrorResponse(id, rpcErr))
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, method string, status int, resp *a2a.JSONRPCResponse) {
	s.metrics.observeRequest(method, status)

	data, err := sonic.Marshal(resp)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// httpStatusFor maps JSON-RPC error codes to HTTP statuses. A2A domain
// errors ride a 200 because the JSON-RPC envelope already carries them.
func httpStatusFor(code int) int {
	switch code {
	case a2a.CodeParseError, a2a.CodeInvalidRequest, a2a.CodeInvalidParams:
		return http.StatusBadRequest
	case a2a.CodeMethodNotFound:
		return http.StatusNotFound
	case a2a.CodeUnsupportedOperation:
		return http.StatusNotImplemented
	case a2a.CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
