package types

import "time"

// SourceType identifies the kind of context source.
type SourceType string

const (
	SourceTypeFile    SourceType = "file"
	SourceTypeDiff    SourceType = "diff"
	SourceTypeSnippet SourceType = "snippet"
	SourceTypeGroup   SourceType = "group"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeFile, SourceTypeDiff, SourceTypeSnippet, SourceTypeGroup:
		return true
	}
	return false
}

// Source is a single unit of context tracked by the hub: a workspace
// file, a captured diff, a free-form snippet, or a named group of
// other sources.
type Source struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        SourceType `json:"type"`
	Path        string     `json:"path,omitempty"`
	Content     string     `json:"content,omitempty"`
	ContentType string     `json:"contentType,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
	Children    []string   `json:"children,omitempty"`
	Time        SourceTime `json:"time"`
}

// SourceTime carries creation and last-update timestamps.
type SourceTime struct {
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// HasInlineContent reports whether the source carries its text inline
// rather than referencing a workspace file.
func (s *Source) HasInlineContent() bool {
	return s.Type == SourceTypeDiff || s.Type == SourceTypeSnippet
}

// SourcePatch is a partial update to a source. Nil fields are left
// unchanged.
type SourcePatch struct {
	Name        *string   `json:"name,omitempty"`
	Path        *string   `json:"path,omitempty"`
	Content     *string   `json:"content,omitempty"`
	ContentType *string   `json:"contentType,omitempty"`
	URL         *string   `json:"url,omitempty"`
	Description *string   `json:"description,omitempty"`
	Children    *[]string `json:"children,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *SourcePatch) Empty() bool {
	return p.Name == nil && p.Path == nil && p.Content == nil &&
		p.ContentType == nil && p.URL == nil && p.Description == nil &&
		p.Children == nil
}
