// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package configstore

import (
	"strings"
)

const pathSeparator = "."

// Document is a parsed configuration mapping. Values are scalars, slices or
// nested Documents. Once resolved, a Document is treated as immutable;
// callers that need to modify one work on a Clone.
type Document map[string]any

// Clone returns a deep copy of the document. Nested mappings are copied
// recursively, slices are copied shallowly.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	out := make(Document, len(d))

	for k, v := range d {
		switch t := v.(type) {
		case Document:
			out[k] = t.Clone()
		case map[string]any:
			out[k] = Document(t).Clone()
		case []any:
			s := make([]any, len(t))
			copy(s, t)
			out[k] = s
		default:
			out[k] = v
		}
	}

	return out
}

// Lookup returns the value at the given dot-separated path.
func (d Document) Lookup(path string) (any, bool) {
	parts := strings.Split(path, pathSeparator)
	cur := d

	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, false
		}

		if i == len(parts)-1 {
			return v, true
		}

		next, ok := asDocument(v)
		if !ok {
			return nil, false
		}

		cur = next
	}

	return nil, false
}

// String returns the string value at the given dot-separated path.
func (d Document) String(path string) (string, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// Bool returns the boolean value at the given dot-separated path.
func (d Document) Bool(path string) (bool, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return false, false
	}

	b, ok := v.(bool)

	return b, ok
}

// Int returns the integer value at the given dot-separated path. YAML
// decoding may surface numbers as several Go types so all of them are
// accepted.
func (d Document) Int(path string) (int, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return 0, false
	}

	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// Set stores a value at the given dot-separated path, creating intermediate
// mappings as needed.
func (d Document) Set(path string, value any) {
	parts := strings.Split(path, pathSeparator)
	cur := d

	for _, part := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[part])
		if !ok {
			next = Document{}
			cur[part] = next
		}

		cur = next
	}

	cur[parts[len(parts)-1]] = value
}

func asDocument(v any) (Document, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]any:
		return Document(t), true
	default:
		return nil, false
	}
}
