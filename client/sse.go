// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/go-a2a/mindlink/a2a"
)

// ErrStreamClosed is returned by EventStream.Next once the server ends
// the stream.
var ErrStreamClosed = errors.New("event stream closed")

// EventStream reads task events off an SSE response. Events arrive in
// the order the server emitted them; the stream ends after the final
// status event or when the connection drops.
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// stream opens an SSE method and hands the response body to an
// EventStream. A non-streaming response means the server rejected the
// call; its JSON-RPC error is decoded and returned.
func (c *A2AClient) stream(ctx context.Context, method string, params any) (*EventStream, error) {
	resp, err := c.post(ctx, method, params)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read error response: %w", err)
		}
		var envelope struct {
			Error *a2a.JSONRPCError `json:"error,omitempty"`
		}
		if err := sonic.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
			return nil, envelope.Error
		}
		return nil, fmt.Errorf("%s returned HTTP %d: %s", method, resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodySize)
	return &EventStream{body: resp.Body, scanner: scanner}, nil
}

// maxBodySize bounds a single SSE event.
const maxBodySize = 10 << 20

// Next returns the next task event on the stream. It returns
// ErrStreamClosed when the server closes the connection cleanly, and the
// server's error when an event carries a JSON-RPC error instead of a
// result.
func (s *EventStream) Next() (a2a.TaskEvent, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var envelope struct {
			Result json.RawMessage   `json:"result,omitempty"`
			Error  *a2a.JSONRPCError `json:"error,omitempty"`
		}
		if err := sonic.Unmarshal([]byte(data), &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode stream event: %w", err)
		}
		if envelope.Error != nil {
			return nil, envelope.Error
		}
		return decodeTaskEvent(envelope.Result)
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, ErrStreamClosed
}

// Drain reads events until the final status event or an error, returning
// everything received. Convenient for callers that only want the
// complete sequence.
func (s *EventStream) Drain(ctx context.Context) ([]a2a.TaskEvent, error) {
	var events []a2a.TaskEvent
	for {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		ev, err := s.Next()
		if err != nil {
			if errors.Is(err, ErrStreamClosed) {
				return events, nil
			}
			return events, err
		}
		events = append(events, ev)
		if a2a.IsFinalEvent(ev) {
			return events, nil
		}
	}
}

// Close releases the underlying connection.
func (s *EventStream) Close() error {
	return s.body.Close()
}

// decodeTaskEvent decodes a stream result into its concrete event type.
// Status events carry a status object, artifact events an artifact.
func decodeTaskEvent(data json.RawMessage) (a2a.TaskEvent, error) {
	var probe struct {
		Status   json.RawMessage `json:"status"`
		Artifact json.RawMessage `json:"artifact"`
	}
	if err := sonic.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe stream event: %w", err)
	}

	switch {
	case len(probe.Status) > 0:
		var ev a2a.TaskStatusUpdateEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode status event: %w", err)
		}
		return &ev, nil
	case len(probe.Artifact) > 0:
		var ev a2a.TaskArtifactUpdateEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode artifact event: %w", err)
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("unrecognized stream event: %s", string(data))
	}
}
