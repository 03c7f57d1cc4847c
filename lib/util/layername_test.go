package util

import (
	"testing"
)

func TestFilterLayerName(t *testing.T) {
	tests := []struct {
		name     string
		layer    string
		expected string
	}{
		{name: "plain", layer: "topp_states", expected: "topp_states"},
		{name: "workspace separator", layer: "topp:states", expected: "topp%3Astates"},
		{name: "path separator", layer: "a/b", expected: "a%2Fb"},
		{name: "backslash", layer: `a\b`, expected: "a%5Cb"},
		{name: "percent", layer: "50%", expected: "50%25"},
		{name: "space", layer: "my layer", expected: "my%20layer"},
		{name: "non ascii", layer: "ü", expected: "%C3%BC"},
		{name: "dots inside", layer: "a.b", expected: "a.b"},
		{name: "empty", layer: "", expected: "%"},
		{name: "dot", layer: ".", expected: "%2E"},
		{name: "dot dot", layer: "..", expected: "%2E%2E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterLayerName(tt.layer); got != tt.expected {
				t.Errorf("FilterLayerName(%q) = %q, want %q", tt.layer, got, tt.expected)
			}
		})
	}
}

// TestFilterLayerNameInjective checks names that a lossy filter would merge
func TestFilterLayerNameInjective(t *testing.T) {
	layers := []string{
		"a:b", "a_b", "a/b", "a%3Ab", "a%b", "a b", "a+b", "", ".", "..", "%", "%2E", "%2E%2E",
	}

	seen := make(map[string]string, len(layers))
	for _, layer := range layers {
		dir := FilterLayerName(layer)
		if other, ok := seen[dir]; ok {
			t.Errorf("layers %q and %q both map to %q", other, layer, dir)
		}
		seen[dir] = layer
	}
}
