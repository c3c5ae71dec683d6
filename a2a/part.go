// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Part type discriminator values as they appear on the wire.
const (
	PartTypeText = "text"
	PartTypeFile = "file"
	PartTypeData = "data"
)

// Part represents a distinct piece of content within a Message or Artifact.
// It is a closed union of TextPart, FilePart and DataPart, discriminated by
// the "type" field.
type Part interface {
	GetType() string
	GetMetadata() map[string]any
	Validate() error
}

// TextPart represents a plain text segment.
type TextPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GetType returns the part discriminator.
func (tp TextPart) GetType() string { return tp.Type }

// GetMetadata returns the part metadata.
func (tp TextPart) GetMetadata() map[string]any { return tp.Metadata }

// Validate ensures the TextPart is valid.
func (tp TextPart) Validate() error {
	if tp.Type != PartTypeText {
		return fmt.Errorf("text part type must be %q, got %q", PartTypeText, tp.Type)
	}
	return nil
}

// FileContent holds the content of a file, either as base64 encoded bytes
// or as a URI. Exactly one of Bytes or URI must be set.
type FileContent struct {
	Name     string  `json:"name,omitempty"`
	MimeType string  `json:"mimeType,omitempty"`
	Bytes    *string `json:"bytes,omitempty"`
	URI      *string `json:"uri,omitempty"`
}

// Validate enforces the bytes/uri exclusive-or invariant.
func (fc FileContent) Validate() error {
	if fc.Bytes == nil && fc.URI == nil {
		return fmt.Errorf("file content must have either bytes or uri")
	}
	if fc.Bytes != nil && fc.URI != nil {
		return fmt.Errorf("file content cannot have both bytes and uri")
	}
	return nil
}

// FilePart represents a file segment.
type FilePart struct {
	Type     string         `json:"type"`
	File     FileContent    `json:"file"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GetType returns the part discriminator.
func (fp FilePart) GetType() string { return fp.Type }

// GetMetadata returns the part metadata.
func (fp FilePart) GetMetadata() map[string]any { return fp.Metadata }

// Validate ensures the FilePart is valid.
func (fp FilePart) Validate() error {
	if fp.Type != PartTypeFile {
		return fmt.Errorf("file part type must be %q, got %q", PartTypeFile, fp.Type)
	}
	return fp.File.Validate()
}

// DataPart represents a structured data segment.
type DataPart struct {
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GetType returns the part discriminator.
func (dp DataPart) GetType() string { return dp.Type }

// GetMetadata returns the part metadata.
func (dp DataPart) GetMetadata() map[string]any { return dp.Metadata }

// Validate ensures the DataPart is valid.
func (dp DataPart) Validate() error {
	if dp.Type != PartTypeData {
		return fmt.Errorf("data part type must be %q, got %q", PartTypeData, dp.Type)
	}
	if dp.Data == nil {
		return fmt.Errorf("data part data cannot be nil")
	}
	return nil
}

// NewTextPart creates a TextPart with the discriminator set.
func NewTextPart(text string) *TextPart {
	return &TextPart{Type: PartTypeText, Text: text}
}

// NewFilePart creates a FilePart with the discriminator set.
func NewFilePart(file FileContent) *FilePart {
	return &FilePart{Type: PartTypeFile, File: file}
}

// NewDataPart creates a DataPart with the discriminator set.
func NewDataPart(data map[string]any) *DataPart {
	return &DataPart{Type: PartTypeData, Data: data}
}

// PartWrapper wraps a Part so the union survives JSON round trips.
type PartWrapper struct {
	part Part
}

// NewPartWrapper creates a new PartWrapper.
func NewPartWrapper(part Part) *PartWrapper {
	return &PartWrapper{part: part}
}

// GetPart returns the wrapped part.
func (pw *PartWrapper) GetPart() Part {
	return pw.part
}

// MarshalJSON implements custom JSON marshaling for PartWrapper.
func (pw PartWrapper) MarshalJSON() ([]byte, error) {
	if pw.part == nil {
		return nil, fmt.Errorf("cannot marshal nil part")
	}
	return json.Marshal(pw.part)
}

// UnmarshalJSON implements custom JSON unmarshaling for PartWrapper,
// dispatching on the "type" discriminator.
func (pw *PartWrapper) UnmarshalJSON(data []byte) error {
	var disc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &disc); err != nil {
		return fmt.Errorf("failed to unmarshal part type: %w", err)
	}

	switch disc.Type {
	case PartTypeText:
		var tp TextPart
		if err := json.Unmarshal(data, &tp); err != nil {
			return fmt.Errorf("failed to unmarshal text part: %w", err)
		}
		pw.part = &tp
	case PartTypeFile:
		var fp FilePart
		if err := json.Unmarshal(data, &fp); err != nil {
			return fmt.Errorf("failed to unmarshal file part: %w", err)
		}
		if err := fp.File.Validate(); err != nil {
			return err
		}
		pw.part = &fp
	case PartTypeData:
		var dp DataPart
		if err := json.Unmarshal(data, &dp); err != nil {
			return fmt.Errorf("failed to unmarshal data part: %w", err)
		}
		pw.part = &dp
	default:
		return fmt.Errorf("unknown part type: %q", disc.Type)
	}

	return nil
}

// Validate validates the wrapped part.
func (pw *PartWrapper) Validate() error {
	if pw.part == nil {
		return fmt.Errorf("part wrapper cannot contain nil part")
	}
	return pw.part.Validate()
}
