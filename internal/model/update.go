package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Update is the three-verb micropub update applied to a post's properties.
// Verbs run in order: replace, add, delete.
type Update struct {
	Replace Properties `json:"replace,omitempty"`
	Add     Properties `json:"add,omitempty"`
	Delete  Deletion   `json:"delete,omitempty"`
}

// Deletion is either a list of property names removed outright, or a map of
// property name to values removed from that property.
type Deletion struct {
	Keys   []string
	Values Properties
}

func (d Deletion) IsZero() bool { return len(d.Keys) == 0 && len(d.Values) == 0 }

func (d *Deletion) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '[':
		return json.Unmarshal(b, &d.Keys)
	case '{':
		return json.Unmarshal(b, &d.Values)
	}
	return fmt.Errorf("delete must be a list of properties or a map of values")
}

func (d Deletion) MarshalJSON() ([]byte, error) {
	if len(d.Values) > 0 {
		return json.Marshal(d.Values)
	}
	if d.Keys == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Keys)
}

// Touches reports whether the update names key in any verb.
func (u Update) Touches(key string) bool {
	if _, ok := u.Replace[key]; ok {
		return true
	}
	if _, ok := u.Add[key]; ok {
		return true
	}
	if _, ok := u.Delete.Values[key]; ok {
		return true
	}
	for _, k := range u.Delete.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// IsZero reports whether the update has no verbs.
func (u Update) IsZero() bool {
	return len(u.Replace) == 0 && len(u.Add) == 0 && u.Delete.IsZero()
}

// Apply runs the update against p. Deleting absent keys or absent values
// is a no-op.
func (p *Post) Apply(u Update) {
	if p.Properties == nil {
		p.Properties = Properties{}
	}
	for k, vs := range u.Replace {
		p.Properties[k] = append([]any(nil), vs...)
	}
	for k, vs := range u.Add {
		p.Properties[k] = append(p.Properties[k], vs...)
	}
	for _, k := range u.Delete.Keys {
		delete(p.Properties, k)
	}
	for k, remove := range u.Delete.Values {
		current, ok := p.Properties[k]
		if !ok {
			continue
		}
		kept := make([]any, 0, len(current))
		for _, v := range current {
			if !containsValue(remove, v) {
				kept = append(kept, v)
			}
		}
		p.Properties[k] = kept
	}
}

func containsValue(list []any, v any) bool {
	for _, candidate := range list {
		if reflect.DeepEqual(candidate, v) {
			return true
		}
	}
	return false
}
