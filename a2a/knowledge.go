// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/google/uuid"
)

// The knowledge-graph collaboration extension. Only the contract shape is
// defined here; agents without a knowledge backend answer these methods
// with UnsupportedOperation.

// KGSubject is the subject of a knowledge graph statement.
type KGSubject struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// KGPredicate is the relationship type of a knowledge graph statement.
type KGPredicate struct {
	ID string `json:"id"`
}

// KGObject is the object of a knowledge graph statement: either another
// node (ID) or a literal (Value), never both.
type KGObject struct {
	ID    *string `json:"id,omitempty"`
	Value any     `json:"value,omitempty"`
	Type  string  `json:"type,omitempty"`
}

// Validate enforces the id/value exclusive-or invariant.
func (o KGObject) Validate() error {
	if o.ID == nil && o.Value == nil {
		return fmt.Errorf("kg object must have either id or value")
	}
	if o.ID != nil && o.Value != nil {
		return fmt.Errorf("kg object cannot have both id and value")
	}
	return nil
}

// KGStatement is a subject-predicate-object triple with optional
// provenance.
type KGStatement struct {
	Subject    KGSubject      `json:"subject"`
	Predicate  KGPredicate    `json:"predicate"`
	Object     KGObject       `json:"object"`
	Graph      string         `json:"graph,omitempty"`
	Certainty  *float64       `json:"certainty,omitempty"`
	Provenance map[string]any `json:"provenance,omitempty"`
}

// PatchOperationType enumerates knowledge graph patch operations.
type PatchOperationType string

const (
	PatchOpAdd     PatchOperationType = "add"
	PatchOpRemove  PatchOperationType = "remove"
	PatchOpReplace PatchOperationType = "replace"
)

// KnowledgeGraphPatch is one mutation applied to the knowledge graph.
type KnowledgeGraphPatch struct {
	Op        PatchOperationType `json:"op"`
	Statement KGStatement        `json:"statement"`
}

// KnowledgeQueryParams carries a knowledge/query request.
type KnowledgeQueryParams struct {
	Query             string         `json:"query"`
	QueryLanguage     string         `json:"queryLanguage"`
	Variables         map[string]any `json:"variables,omitempty"`
	TaskID            string         `json:"taskId,omitempty"`
	SessionID         string         `json:"sessionId,omitempty"`
	RequiredCertainty *float64       `json:"requiredCertainty,omitempty"`
	MaxAgeSeconds     *int           `json:"maxAgeSeconds,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// KnowledgeUpdateParams carries a knowledge/update request.
type KnowledgeUpdateParams struct {
	Mutations     []KnowledgeGraphPatch `json:"mutations"`
	TaskID        string                `json:"taskId,omitempty"`
	SessionID     string                `json:"sessionId,omitempty"`
	SourceAgentID string                `json:"sourceAgentId,omitempty"`
	Justification string                `json:"justification,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
}

// KnowledgeSubscribeParams carries a knowledge/subscribe request.
type KnowledgeSubscribeParams struct {
	SubscriptionQuery string         `json:"subscriptionQuery"`
	QueryLanguage     string         `json:"queryLanguage"`
	Variables         map[string]any `json:"variables,omitempty"`
	TaskID            string         `json:"taskId,omitempty"`
	SessionID         string         `json:"sessionId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// KnowledgeQueryResult is the result of a knowledge/query call.
type KnowledgeQueryResult struct {
	Data          any            `json:"data,omitempty"`
	QueryMetadata map[string]any `json:"queryMetadata,omitempty"`
}

// KnowledgeUpdateResult is the result of a knowledge/update call.
type KnowledgeUpdateResult struct {
	Success             bool     `json:"success"`
	StatementsAffected  *int     `json:"statementsAffected,omitempty"`
	AffectedIDs         []string `json:"affectedIds,omitempty"`
	VerificationStatus  string   `json:"verificationStatus,omitempty"`
	VerificationDetails string   `json:"verificationDetails,omitempty"`
}

// KnowledgeGraphChangeEvent is one confirmed change streamed to a
// knowledge/subscribe consumer.
type KnowledgeGraphChangeEvent struct {
	Op             PatchOperationType `json:"op"`
	Statement      KGStatement        `json:"statement"`
	ChangeID       string             `json:"changeId"`
	Timestamp      string             `json:"timestamp"`
	ChangeMetadata map[string]any     `json:"changeMetadata,omitempty"`
}

// NewKnowledgeGraphChangeEvent creates a change event stamped with a fresh
// change id and the current time.
func NewKnowledgeGraphChangeEvent(op PatchOperationType, statement KGStatement) *KnowledgeGraphChangeEvent {
	return &KnowledgeGraphChangeEvent{
		Op:        op,
		Statement: statement,
		ChangeID:  uuid.NewString(),
		Timestamp: Timestamp(),
	}
}
