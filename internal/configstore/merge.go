// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package configstore

import (
	"reflect"
)

// Merge combines two documents into a new one. Where both sides hold a
// mapping for the same key the merge recurses; any other collision is won
// wholesale by overlay. Neither input is modified and the result is
// independent of map iteration order.
func Merge(base, overlay Document) Document {
	out := base.Clone()
	if out == nil {
		out = Document{}
	}

	for k, v := range overlay {
		ov, ovIsDoc := asDocument(v)
		bv, bvIsDoc := asDocument(out[k])

		if ovIsDoc && bvIsDoc {
			out[k] = Merge(bv, ov)
			continue
		}

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

// Resolve folds the configuration layers into the single effective document.
// Later layers take precedence; nil layers are skipped.
func Resolve(layers ...Document) Document {
	out := Document{}

	for _, layer := range layers {
		if layer == nil {
			continue
		}

		out = Merge(out, layer)
	}

	return out
}

// Overrides returns the subset of candidate values that differ from the
// corresponding value in the defaults document. Keys absent from defaults
// are always included.
func Overrides(defaults Document, candidates Document) Document {
	out := Document{}

	for k, v := range candidates {
		dv, ok := defaults.Lookup(k)
		if ok && equalValue(dv, v) {
			continue
		}

		out.Set(k, v)
	}

	return out
}

// equalValue compares a stored document value with a candidate, normalizing
// the numeric types YAML decoding can produce.
func equalValue(a, b any) bool {
	if an, aok := asInt64(a); aok {
		bn, bok := asInt64(b)
		return bok && an == bn
	}

	return reflect.DeepEqual(a, b)
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case uint64:
		return int64(t), true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}

		return 0, false
	default:
		return 0, false
	}
}
