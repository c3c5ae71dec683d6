// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"strings"

	"github.com/google/uuid"
)

// NewTask creates a task from send params in the submitted state, with the
// initiating message as the first history entry. A session id is generated
// when the params carry none.
func NewTask(params *TaskSendParams) *Task {
	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Task{
		ID:        params.ID,
		SessionID: sessionID,
		Status:    NewTaskStatus(TaskStateSubmitted, nil),
		Artifacts: []*Artifact{},
		History:   []*Message{params.Message},
		Metadata:  params.Metadata,
	}
}

// NewUserTextMessage creates a user message with a single text part.
func NewUserTextMessage(text string) *Message {
	return &Message{
		Role:  RoleUser,
		Parts: []*PartWrapper{NewPartWrapper(NewTextPart(text))},
	}
}

// NewAgentTextMessage creates an agent message with a single text part.
func NewAgentTextMessage(text string) *Message {
	return &Message{
		Role:  RoleAgent,
		Parts: []*PartWrapper{NewPartWrapper(NewTextPart(text))},
	}
}

// MessageText concatenates the text parts of a message, one line per part.
func MessageText(m *Message) string {
	if m == nil {
		return ""
	}
	var texts []string
	for _, pw := range m.Parts {
		if pw == nil {
			continue
		}
		if tp, ok := pw.GetPart().(*TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// NewTextArtifact creates a single-text-part artifact at index 0.
func NewTextArtifact(name, text string) *Artifact {
	return &Artifact{
		Name:  name,
		Parts: []*PartWrapper{NewPartWrapper(NewTextPart(text))},
	}
}
