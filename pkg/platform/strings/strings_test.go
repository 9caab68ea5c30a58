package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   \t", expected: ""},
		{name: "lowercases", input: "Alice", expected: "alice"},
		{name: "trims and lowercases", input: "  ALICE  ", expected: "alice"},
		{name: "keeps inner spaces", input: " Alice Smith ", expected: "alice smith"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestDedupeBy(t *testing.T) {
	type item struct {
		key  string
		name string
	}
	byKey := func(i item) string { return i.key }

	t.Run("nil slice", func(t *testing.T) {
		assert.Nil(t, DedupeBy[item](nil, byKey))
	})

	t.Run("first occurrence wins and order is preserved", func(t *testing.T) {
		in := []item{{"a", "first"}, {"b", "second"}, {"a", "third"}, {"c", "fourth"}}
		assert.Equal(t, []item{{"a", "first"}, {"b", "second"}, {"c", "fourth"}}, DedupeBy(in, byKey))
	})

	t.Run("empty keys are never collapsed", func(t *testing.T) {
		in := []item{{"", "x"}, {"", "y"}}
		assert.Equal(t, in, DedupeBy(in, byKey))
	})
}

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "trims whitespace",
			input:    []string{"  foo  ", "bar  ", "  baz"},
			expected: []string{"foo", "bar", "baz"},
		},
		{
			name:     "combined: trim, dedupe, remove empty",
			input:    []string{"  foo ", "bar", "foo", "", "  ", "bar"},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "preserves case",
			input:    []string{"Foo", "foo"},
			expected: []string{"Foo", "foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
