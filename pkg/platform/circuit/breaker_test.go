package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	fail   bool
	open   bool
	change StateChange
}

func play(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, st := range steps {
		var change StateChange
		if st.fail {
			_, change = b.RecordFailure()
		} else {
			_, change = b.RecordSuccess()
		}
		require.Equalf(t, st.change, change, "step %d", i)
		require.Equalf(t, st.open, b.IsOpen(), "step %d", i)
	}
}

func TestBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens exactly at the failure threshold",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				{fail: true},
				{fail: true},
				{fail: true, open: true, change: StateChange{Opened: true}},
				{fail: true, open: true},
			},
		},
		{
			name: "a success between failures starts the count over",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{fail: true},
				{},
				{fail: true},
				{fail: true, open: true, change: StateChange{Opened: true}},
			},
		},
		{
			name: "reports closed once after the success threshold",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, open: true, change: StateChange{Opened: true}},
				{open: true},
				{change: StateChange{Closed: true}},
				{},
			},
		},
		{
			name: "a failure while open restarts the recovery streak",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{fail: true, open: true, change: StateChange{Opened: true}},
				{open: true},
				{fail: true, open: true},
				{open: true},
				{change: StateChange{Closed: true}},
			},
		},
		{
			name: "non-positive thresholds keep the defaults",
			opts: []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			steps: []step{
				{fail: true}, {fail: true}, {fail: true}, {fail: true},
				{fail: true, open: true, change: StateChange{Opened: true}},
				{open: true}, {open: true},
				{change: StateChange{Closed: true}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("wallet", tt.opts...)
			assert.Equal(t, StateClosed, b.State())
			play(t, b, tt.steps)
		})
	}
}

func TestBreaker_ReopensAfterRecovery(t *testing.T) {
	b := New("wallet", WithFailureThreshold(2), WithSuccessThreshold(1))

	play(t, b, []step{
		{fail: true},
		{fail: true, open: true, change: StateChange{Opened: true}},
		{change: StateChange{Closed: true}},
		{fail: true},
		{fail: true, open: true, change: StateChange{Opened: true}},
	})
}

func TestBreaker_Reset(t *testing.T) {
	b := New("wallet", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	_, change := b.RecordSuccess()
	assert.False(t, change.Closed, "a reset breaker has nothing to recover from")
}

func TestBreaker_ConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("wallet", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, opened)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "wallet", New("wallet").Name())
}
