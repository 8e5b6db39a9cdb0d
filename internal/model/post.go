package model

import (
	"fmt"
	"strings"
	"time"
)

// Properties is the MF2 property bag of a post. Every property is an ordered
// sequence of values; a value is a JSON scalar or a nested object.
type Properties map[string][]any

// Post is one document of the content tree. The on-disk JSON shape is the
// MF2 form: {"type": [...], "properties": {...}, "children": [...]}.
//   - Type: MF2 types, usually ["h-entry"]
//   - Properties: post-id, url, published, post-kind, content and so on
//   - Children: nested objects (comments, listen-of citations, recipes)
//   - Filename: where the document was read from; not serialized
type Post struct {
	Type       []string         `json:"type"`
	Properties Properties       `json:"properties"`
	Children   []map[string]any `json:"children"`
	Filename   string           `json:"-"`
}

// NewPost returns an empty h-entry.
func NewPost() *Post {
	return &Post{
		Type:       []string{"h-entry"},
		Properties: Properties{},
		Children:   []map[string]any{},
	}
}

// First returns the first value of key, or nil.
func (p Properties) First(key string) any {
	vs := p[key]
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

// FirstString returns the first value of key when it is a string.
func (p Properties) FirstString(key string) string {
	s, _ := p.First(key).(string)
	return s
}

// Has reports whether key is present with at least one value.
func (p Properties) Has(key string) bool { return len(p[key]) > 0 }

// Clone copies the top level of the bag. Values are shared.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, vs := range p {
		cp := make([]any, len(vs))
		copy(cp, vs)
		out[k] = cp
	}
	return out
}

func (p *Post) ID() string   { return p.Properties.FirstString("post-id") }
func (p *Post) URL() string  { return p.Properties.FirstString("url") }
func (p *Post) Name() string { return p.Properties.FirstString("name") }

// Deleted reports the soft-delete flag. Only a literal true (or the string
// "true") counts.
func (p *Post) Deleted() bool {
	switch v := p.Properties.First("deleted").(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// Kind returns the declared post-kind, lowercased. Posts without one are
// classified by DiscoverKind.
func (p *Post) Kind() Kind {
	if k := strings.TrimSpace(p.Properties.FirstString("post-kind")); k != "" {
		return Kind(strings.ToLower(k))
	}
	return DiscoverKind(p.Properties)
}

// Published parses the first published value.
func (p *Post) Published() (time.Time, error) {
	s := p.Properties.FirstString("published")
	if s == "" {
		return time.Time{}, fmt.Errorf("post %q has no published date", p.ID())
	}
	return ParseTime(s)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02",
}

// ParseTime accepts the ISO-8601 shapes found in MF2 documents. Values
// without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// TextContent returns the first textual content value: a plain string, or
// the value/html member of an object.
func (p *Post) TextContent() string {
	for _, c := range p.Properties["content"] {
		switch v := c.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if s, _ := v["value"].(string); s != "" {
				return s
			}
			if s, _ := v["html"].(string); s != "" {
				return s
			}
		}
	}
	return ""
}

// Card is an h-card for a person.
type Card struct {
	Name  string `mapstructure:"name" json:"name"`
	URL   string `mapstructure:"url" json:"url"`
	Photo string `mapstructure:"photo" json:"photo"`
}

// HCard renders the card as an MF2 object.
func (c Card) HCard() map[string]any {
	props := map[string]any{
		"name": []any{c.Name},
		"url":  []any{c.URL},
	}
	if c.Photo != "" {
		props["photo"] = []any{c.Photo}
	}
	return map[string]any{
		"type":       []any{"h-card"},
		"properties": props,
	}
}

// SyndicationTarget is one entry of the micropub syndicate-to list.
type SyndicationTarget struct {
	UID  string `mapstructure:"uid" json:"uid"`
	Name string `mapstructure:"name" json:"name"`
}
