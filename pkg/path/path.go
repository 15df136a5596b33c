// Package path implements the dotted property paths used by the field catalog.
//
// A path like "applicant.phones[].number" has three segments. A segment ending in
// "[]" is an array segment: Get reads through the first element of the array and Set
// creates or reuses a single-element array wrapper. Paths never address more than one
// element, so they cannot describe a general array mapping.
package path

import (
	"strings"
)

const (
	separator   = "."
	arrayMarker = "[]"
)

type Segment struct {
	Key     string
	IsArray bool
}

type Path []Segment

// Parse splits a dotted path into segments. Empty segments are dropped.
func Parse(raw string) Path {
	parts := strings.Split(raw, separator)
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		seg := Segment{Key: part}
		if strings.HasSuffix(part, arrayMarker) {
			seg.Key = strings.TrimSuffix(part, arrayMarker)
			seg.IsArray = true
		}
		p = append(p, seg)
	}
	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.Key
		if seg.IsArray {
			parts[i] += arrayMarker
		}
	}
	return strings.Join(parts, separator)
}

// HasArray reports whether any segment uses the array marker.
func (p Path) HasArray() bool {
	for _, seg := range p {
		if seg.IsArray {
			return true
		}
	}
	return false
}

// Get walks the path through nested maps. The boolean is false when any segment is missing.
func (p Path) Get(data map[string]any) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return get(data, p)
}

func get(current any, p Path) (any, bool) {
	if len(p) == 0 {
		return current, true
	}
	m, ok := current.(map[string]any)
	if !ok {
		return nil, false
	}
	value, ok := m[p[0].Key]
	if !ok {
		return nil, false
	}
	if p[0].IsArray {
		value, ok = firstElement(value)
		if !ok {
			return nil, false
		}
	}
	return get(value, p[1:])
}

func firstElement(value any) (any, bool) {
	switch arr := value.(type) {
	case []any:
		if len(arr) == 0 {
			return nil, false
		}
		return arr[0], true
	case []map[string]any:
		if len(arr) == 0 {
			return nil, false
		}
		return arr[0], true
	default:
		// a scalar stored under an array segment is read as-is
		return value, true
	}
}

// Set writes value at the path, creating intermediate maps and single-element arrays.
// Existing non-map values along the way are replaced.
func (p Path) Set(data map[string]any, value any) {
	if len(p) == 0 || data == nil {
		return
	}
	set(data, p, value)
}

func set(target map[string]any, p Path, value any) {
	seg := p[0]
	last := len(p) == 1

	if !seg.IsArray {
		if last {
			target[seg.Key] = value
			return
		}
		child, ok := target[seg.Key].(map[string]any)
		if !ok {
			child = map[string]any{}
			target[seg.Key] = child
		}
		set(child, p[1:], value)
		return
	}

	if last {
		target[seg.Key] = []any{value}
		return
	}

	var child map[string]any
	if arr, ok := target[seg.Key].([]any); ok && len(arr) > 0 {
		child, _ = arr[0].(map[string]any)
	}
	if child == nil {
		child = map[string]any{}
	}
	target[seg.Key] = []any{child}
	set(child, p[1:], value)
}
