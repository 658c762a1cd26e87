// Package normalization turns loosely typed config and flag strings into enum values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps case-insensitive, whitespace-trimmed strings to values of T.
type Normalizer[T comparable] struct {
	name         string
	validValues  map[string]T
	defaultValue T
	validKeys    []string
}

// NewNormalizer creates a normalizer for the enum called name.
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))
	for k, v := range values {
		key := clean(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}
	sort.Strings(validKeys)

	return &Normalizer[T]{
		name:         name,
		validValues:  normalized,
		defaultValue: defaultValue,
		validKeys:    validKeys,
	}
}

// Normalize returns the value for raw, or the default when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, ok := n.validValues[clean(raw)]; ok {
		return value
	}
	return n.defaultValue
}

// Parse returns the value for raw. Empty input yields the default; unknown input is an error.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	cleaned := clean(raw)
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if value, ok := n.validValues[cleaned]; ok {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", n.name, raw, strings.Join(n.validKeys, ", "))
}

// ValidKeys returns the accepted spellings, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.validKeys))
	copy(out, n.validKeys)
	return out
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
