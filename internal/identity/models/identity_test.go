package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aliceKey = "0240c42181068275a4f996ee570ed7c7a97c30003b174461bca5bad882fc06143f"

func TestIsIdentityKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "compressed 02 key", input: aliceKey, want: true},
		{name: "compressed 03 key", input: "03" + strings.Repeat("ab", 32), want: true},
		{name: "04 prefix", input: "04" + strings.Repeat("CD", 32), want: true},
		{name: "free text", input: "Alice", want: false},
		{name: "wrong prefix", input: "05" + strings.Repeat("ab", 32), want: false},
		{name: "too short", input: aliceKey[:65], want: false},
		{name: "too long", input: aliceKey + "0", want: false},
		{name: "non hex", input: "02" + strings.Repeat("zz", 32), want: false},
		{name: "surrounding whitespace", input: " " + aliceKey, want: false},
		{name: "empty", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIdentityKey(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "0123456789...", Truncate("0123456789abc", 10))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
}

func TestAbbreviateKey(t *testing.T) {
	assert.Equal(t, "0240c42181…", AbbreviateKey(aliceKey))
	assert.Equal(t, "02ab", AbbreviateKey("02ab"))
}

func TestUnknownIdentity(t *testing.T) {
	id := UnknownIdentity(aliceKey)

	assert.Equal(t, aliceKey, id.IdentityKey)
	assert.Equal(t, "Unknown Identity", id.Name)
	assert.True(t, id.IsDefault())
	assert.False(t, Identity{Name: "Alice"}.IsDefault())
}

func TestDedupe(t *testing.T) {
	in := []Identity{
		{Name: "Alice (discord)", IdentityKey: aliceKey},
		{Name: "Bob", IdentityKey: "bob"},
		{Name: "Alice (x)", IdentityKey: aliceKey},
	}

	out := Dedupe(in)

	require.Len(t, out, 2)
	assert.Equal(t, "Alice (discord)", out[0].Name)
	assert.Equal(t, "Bob", out[1].Name)
}

func TestFilterOptions(t *testing.T) {
	results := []Identity{
		{Name: "Alice Smith", IdentityKey: aliceKey},
		{Name: "Bob", IdentityKey: "03bbbb"},
	}

	t.Run("matches name case-insensitively", func(t *testing.T) {
		got := FilterOptions(results, "alice", false)
		require.Len(t, got, 1)
		assert.Equal(t, "Alice Smith", got[0].Name)
	})

	t.Run("matches identity key", func(t *testing.T) {
		got := FilterOptions(results, "03BB", false)
		require.Len(t, got, 1)
		assert.Equal(t, "Bob", got[0].Name)
	})

	t.Run("offers raw key when nothing matches", func(t *testing.T) {
		raw := "03" + strings.Repeat("ef", 32)
		got := FilterOptions(results, raw, false)
		require.Len(t, got, 1)
		assert.Equal(t, CustomIdentityName, got[0].Name)
		assert.Equal(t, raw, got[0].IdentityKey)
	})

	t.Run("no raw key option while loading", func(t *testing.T) {
		raw := "03" + strings.Repeat("ef", 32)
		assert.Empty(t, FilterOptions(results, raw, true))
	})

	t.Run("free text with no match yields nothing", func(t *testing.T) {
		assert.Empty(t, FilterOptions(results, "carol", false))
	})
}
