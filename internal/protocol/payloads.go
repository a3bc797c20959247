package protocol

import (
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// AddSourcePayload creates a new context source.
type AddSourcePayload struct {
	Name        string           `json:"name"`
	Type        types.SourceType `json:"type"`
	Path        string           `json:"path,omitempty"`
	Content     string           `json:"content,omitempty"`
	ContentType string           `json:"contentType,omitempty"`
	URL         string           `json:"url,omitempty"`
	Description string           `json:"description,omitempty"`
	Children    []string         `json:"children,omitempty"`
}

func (p *AddSourcePayload) Validate() error {
	if p.Name == "" {
		return &ValidationError{Reason: "Source name is required"}
	}
	if p.Type == "" {
		return &ValidationError{Reason: "Source type is required"}
	}
	if !p.Type.Valid() {
		return Validationf("Invalid source type: %s", p.Type)
	}
	if p.Type == types.SourceTypeFile && p.Path == "" {
		return &ValidationError{Reason: "File sources require a path"}
	}
	return nil
}

// Source builds the source record described by the payload. The store
// assigns ID and timestamps.
func (p *AddSourcePayload) Source() types.Source {
	return types.Source{
		Name:        p.Name,
		Type:        p.Type,
		Path:        p.Path,
		Content:     p.Content,
		ContentType: p.ContentType,
		URL:         p.URL,
		Description: p.Description,
		Children:    p.Children,
	}
}

// UpdateSourcePayload applies a partial update to a source.
type UpdateSourcePayload struct {
	SourceID string            `json:"sourceId"`
	Updates  types.SourcePatch `json:"updates"`
}

func (p *UpdateSourcePayload) Validate() error {
	if p.SourceID == "" {
		return &ValidationError{Reason: "Source ID is required"}
	}
	if p.Updates.Empty() {
		return &ValidationError{Reason: "No updates provided"}
	}
	return nil
}

// DeleteSourcePayload removes a source.
type DeleteSourcePayload struct {
	SourceID string `json:"sourceId"`
}

func (p *DeleteSourcePayload) Validate() error {
	if p.SourceID == "" {
		return &ValidationError{Reason: "Source ID is required"}
	}
	return nil
}

// SetActiveContextPayload replaces the active context membership.
type SetActiveContextPayload struct {
	SourceIDs []string `json:"sourceIds"`
}

func (p *SetActiveContextPayload) Validate() error {
	if p.SourceIDs == nil {
		return &ValidationError{Reason: "Source IDs are required"}
	}
	return nil
}

// GetSourceContentPayload reads the text behind a source.
type GetSourceContentPayload struct {
	SourceID string `json:"sourceId"`
}

func (p *GetSourceContentPayload) Validate() error {
	if p.SourceID == "" {
		return &ValidationError{Reason: "Source ID is required"}
	}
	return nil
}

// UpdateSourceContentPayload replaces the text behind a source.
// Content is a pointer so an explicit empty string stays distinct
// from a missing field.
type UpdateSourceContentPayload struct {
	SourceID string  `json:"sourceId"`
	Content  *string `json:"content"`
}

func (p *UpdateSourceContentPayload) Validate() error {
	if p.SourceID == "" {
		return &ValidationError{Reason: "Source ID is required"}
	}
	if p.Content == nil {
		return &ValidationError{Reason: "Content is required"}
	}
	return nil
}

// ClearSourceContentPayload empties the text behind a source.
type ClearSourceContentPayload struct {
	SourceID string `json:"sourceId"`
}

func (p *ClearSourceContentPayload) Validate() error {
	if p.SourceID == "" {
		return &ValidationError{Reason: "Source ID is required"}
	}
	return nil
}
