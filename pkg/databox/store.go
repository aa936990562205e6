package databox

import (
	"strings"

	"github.com/labkit/databox/pkg/errors"
)

// ordered is an insertion-ordered map with unique keys.
type ordered[V any] struct {
	keys   []string
	values map[string]V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{values: make(map[string]V)}
}

func (o *ordered[V]) Len() int { return len(o.keys) }

// Keys returns a copy of the keys in order.
func (o *ordered[V]) Keys() []string { return append([]string(nil), o.keys...) }

func (o *ordered[V]) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o *ordered[V]) Get(key string) (V, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Index returns the position of key or -1.
func (o *ordered[V]) Index(key string) int {
	for i, k := range o.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Insert sets key to v. An existing key keeps its position; a new key goes
// to index, or to the end when index is negative or past the end.
func (o *ordered[V]) Insert(key string, v V, index int) {
	if _, ok := o.values[key]; ok {
		o.values[key] = v
		return
	}
	o.values[key] = v
	if index < 0 || index >= len(o.keys) {
		o.keys = append(o.keys, key)
		return
	}
	o.keys = append(o.keys, "")
	copy(o.keys[index+1:], o.keys[index:])
	o.keys[index] = key
}

// Pop removes key and returns its value.
func (o *ordered[V]) Pop(key string) (V, bool) {
	v, ok := o.values[key]
	if !ok {
		return v, false
	}
	delete(o.values, key)
	i := o.Index(key)
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	return v, true
}

// Rename changes a key in place.
func (o *ordered[V]) Rename(oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	v, ok := o.values[oldKey]
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "key %q not found", oldKey)
	}
	if _, clash := o.values[newKey]; clash {
		return errors.Newf(errors.ErrorTypeConflict, "key %q already exists", newKey)
	}
	i := o.Index(oldKey)
	o.keys[i] = newKey
	delete(o.values, oldKey)
	o.values[newKey] = v
	return nil
}

func (o *ordered[V]) Clear() {
	o.keys = nil
	o.values = make(map[string]V)
}

// resolve turns a string key or an integer index into a key. Negative
// indices count from the end.
func (o *ordered[V]) resolve(key any) (string, error) {
	switch k := key.(type) {
	case string:
		if !o.Has(k) {
			return "", errors.Newf(errors.ErrorTypeNotFound, "key %q not found", k)
		}
		return k, nil
	case int:
		i := k
		if i < 0 {
			i += len(o.keys)
		}
		if i < 0 || i >= len(o.keys) {
			return "", errors.Newf(errors.ErrorTypeNotFound, "index %d out of range for %d keys", k, len(o.keys))
		}
		return o.keys[i], nil
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "key must be a string or int, got %T", key)
}

// fragment finds key exactly, else the first key containing it.
func (o *ordered[V]) fragment(key string) (string, bool) {
	if o.Has(key) {
		return key, true
	}
	for _, k := range o.keys {
		if strings.Contains(k, key) {
			return k, true
		}
	}
	return "", false
}

// HeaderStore holds the ordered metadata of a databox.
type HeaderStore = ordered[Value]

// ColumnStore holds the ordered columns of a databox.
type ColumnStore = ordered[*Column]
