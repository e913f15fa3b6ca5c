// Package normalization maps loosely written configuration values onto
// typed enumerations.
package normalization

import (
	"sort"
	"strings"
)

// Normalizer maps case- and space-insensitive strings to values of T.
type Normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
	keys         []string
}

// NewNormalizer creates a normalizer from raw string aliases. Unknown
// input normalizes to defaultValue.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	n := &Normalizer[T]{
		values:       make(map[string]T, len(values)),
		defaultValue: defaultValue,
		keys:         make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	sort.Strings(n.keys)
	return n
}

// Normalize returns the value for raw, or the default.
func (n *Normalizer[T]) Normalize(raw string) T {
	v, _ := n.Lookup(raw)
	return v
}

// Lookup returns the value for raw and whether raw is a known alias.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	if v, ok := n.values[clean(raw)]; ok {
		return v, true
	}
	return n.defaultValue, false
}

// ValidKeys returns the accepted aliases, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return append([]string(nil), n.keys...)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
