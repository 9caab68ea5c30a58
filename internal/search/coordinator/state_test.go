package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"idsearch/internal/identity/models"
)

func TestReduce(t *testing.T) {
	alice := models.Identity{Name: "Alice", IdentityKey: "02aa"}
	bob := models.Identity{Name: "Bob", IdentityKey: "03bb"}
	withResults := State{Query: "al", Results: []models.Identity{alice}, Selected: &bob}

	t.Run("typing starts loading and drops the selection", func(t *testing.T) {
		next := reduce(withResults, action{kind: actTyped, query: "ali"})
		assert.Equal(t, "ali", next.Query)
		assert.True(t, next.Loading)
		assert.Nil(t, next.Selected)
		assert.Equal(t, []models.Identity{alice}, next.Results)
	})

	t.Run("reset keeps the selection", func(t *testing.T) {
		next := reduce(withResults, action{kind: actTyped, query: "Bob", reason: ReasonReset})
		assert.Equal(t, &bob, next.Selected)
	})

	t.Run("typing to empty keeps results", func(t *testing.T) {
		loading := withResults
		loading.Loading = true
		next := reduce(loading, action{kind: actEmptied, query: ""})
		assert.False(t, next.Loading)
		assert.Equal(t, []models.Identity{alice}, next.Results)
	})

	t.Run("explicit clear drops results", func(t *testing.T) {
		next := reduce(withResults, action{kind: actEmptied, reason: ReasonClear})
		assert.Empty(t, next.Results)
		assert.False(t, next.Loading)
	})

	t.Run("failure shows nothing and remembers a missing wallet", func(t *testing.T) {
		next := reduce(State{Loading: true}, action{kind: actFailed, walletMissing: true})
		assert.NotNil(t, next.Results)
		assert.Empty(t, next.Results)
		assert.False(t, next.Loading)
		assert.True(t, next.WalletMissing)

		next = reduce(next, action{kind: actFailed})
		assert.True(t, next.WalletMissing)

		next = reduce(next, action{kind: actResolved, results: []models.Identity{alice}})
		assert.False(t, next.WalletMissing)
	})

	t.Run("a completion keeps loading while a newer query waits", func(t *testing.T) {
		next := reduce(State{Loading: true}, action{kind: actResolved, results: []models.Identity{alice}, pending: true})
		assert.Len(t, next.Results, 1)
		assert.True(t, next.Loading)

		next = reduce(next, action{kind: actFailed, pending: true})
		assert.True(t, next.Loading)
	})

	t.Run("selection clears results", func(t *testing.T) {
		next := reduce(State{Results: []models.Identity{alice}, Loading: true}, action{kind: actSelected, identity: &bob})
		assert.Nil(t, next.Results)
		assert.False(t, next.Loading)
		assert.Equal(t, "Bob", next.Selected.Name)
	})

	t.Run("input state is never mutated", func(t *testing.T) {
		in := []models.Identity{alice}
		next := reduce(State{}, action{kind: actResolved, results: in})
		in[0].Name = "Mallory"
		assert.Equal(t, "Alice", next.Results[0].Name)

		sel := bob
		next = reduce(next, action{kind: actSelected, identity: &sel})
		sel.Name = "Eve"
		assert.Equal(t, "Bob", next.Selected.Name)
	})
}

func TestParseInputReason(t *testing.T) {
	assert.Equal(t, ReasonClear, ParseInputReason("clear"))
	assert.Equal(t, ReasonReset, ParseInputReason("reset"))
	assert.Equal(t, ReasonInput, ParseInputReason("input"))
	assert.Equal(t, ReasonInput, ParseInputReason("whatever"))
	assert.Equal(t, "clear", ReasonClear.String())
}
