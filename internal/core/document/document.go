// Package document holds the ordered document model shared by storage, the
// schema engine and the MongoDB layer. Mappings are bson.D and sequences are
// bson.A everywhere, so declaration order survives every round trip.
package document

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Get returns the value stored under key.
func Get(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func Has(d bson.D, key string) bool {
	_, ok := Get(d, key)
	return ok
}

// String returns the string under key or def.
func String(d bson.D, key, def string) string {
	if v, ok := Get(d, key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool under key or def.
func Bool(d bson.D, key string, def bool) bool {
	if v, ok := Get(d, key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the integer under key or def. Any numeric representation produced
// by the YAML or extended JSON decoders is accepted.
func Int(d bson.D, key string, def int) int {
	if v, ok := Get(d, key); ok {
		if n, ok := ToInt(v); ok {
			return n
		}
	}
	return def
}

// ToInt converts decoded numeric values to int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// Doc returns the nested mapping under key.
func Doc(d bson.D, key string) (bson.D, bool) {
	if v, ok := Get(d, key); ok {
		if sub, ok := v.(bson.D); ok {
			return sub, true
		}
	}
	return nil, false
}

// Array returns the sequence under key.
func Array(d bson.D, key string) (bson.A, bool) {
	if v, ok := Get(d, key); ok {
		return AsArray(v)
	}
	return nil, false
}

// AsArray normalizes the sequence types that show up in decoded documents.
func AsArray(v any) (bson.A, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return bson.A(a), true
	case []string:
		out := make(bson.A, len(a))
		for i, s := range a {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Strings returns the string items of the sequence under key. Non-string
// items are skipped.
func Strings(d bson.D, key string) []string {
	arr, ok := Array(d, key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Set replaces the value under key in place, or appends it.
func Set(d bson.D, key string, value any) bson.D {
	for i, e := range d {
		if e.Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: value})
}

// Delete removes key and keeps the order of the remaining entries.
func Delete(d bson.D, key string) bson.D {
	out := d[:0:0]
	for _, e := range d {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

// Merge applies src onto dst: existing keys keep their position and take the
// new value, new keys are appended in src order.
func Merge(dst, src bson.D) bson.D {
	for _, e := range src {
		dst = Set(dst, e.Key, Clone(e.Value))
	}
	return dst
}

// Rename moves the value of from to key to. If to already exists it keeps its
// position, otherwise it takes the position of from.
func Rename(d bson.D, from, to string) bson.D {
	v, ok := Get(d, from)
	if !ok {
		return d
	}
	if Has(d, to) {
		return Delete(Set(d, to, v), from)
	}
	for i, e := range d {
		if e.Key == from {
			d[i].Key = to
		}
	}
	return d
}

// Keys lists the keys in order.
func Keys(d bson.D) []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// Clone deep-copies mappings and sequences.
func Clone(v any) any {
	switch t := v.(type) {
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: Clone(e.Value)}
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case []any:
		return Clone(bson.A(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// CloneDoc is Clone for a mapping.
func CloneDoc(d bson.D) bson.D {
	if d == nil {
		return nil
	}
	return Clone(d).(bson.D)
}
