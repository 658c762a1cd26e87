package normalization

import (
	"strings"
	"testing"
)

type testMode string

const (
	modeDevelopment testMode = "development"
	modeProduction  testMode = "production"
)

func newModes() *Normalizer[testMode] {
	return NewNormalizer("mode", map[string]testMode{
		"development": modeDevelopment,
		"dev":         modeDevelopment,
		"production":  modeProduction,
		"prod":        modeProduction,
	}, modeDevelopment)
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newModes()
	tests := []struct {
		name     string
		input    string
		expected testMode
	}{
		{"exact match", "production", modeProduction},
		{"alias", "prod", modeProduction},
		{"case insensitive", "PRODUCTION", modeProduction},
		{"with spaces", "  dev  ", modeDevelopment},
		{"unknown falls back", "staging", modeDevelopment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_Parse(t *testing.T) {
	n := newModes()

	got, err := n.Parse("")
	if err != nil || got != modeDevelopment {
		t.Errorf("Parse(\"\") = %v, %v; want default", got, err)
	}

	_, err = n.Parse("staging")
	if err == nil {
		t.Fatal("expected error for unknown value")
	}
	if !strings.Contains(err.Error(), "invalid mode") || !strings.Contains(err.Error(), "dev, development, prod, production") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestNormalizer_ValidKeysIsCopy(t *testing.T) {
	n := newModes()
	keys := n.ValidKeys()
	keys[0] = "mutated"
	if n.ValidKeys()[0] != "dev" {
		t.Error("expected ValidKeys to return a copy")
	}
}
