package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetryPolicy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		policy, err := NewRetryPolicy(60 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, 60*time.Second, policy.BaseDelay())
	})

	t.Run("invalid base delay", func(t *testing.T) {
		policy, err := NewRetryPolicy(0)
		require.ErrorIs(t, err, ErrInvalidBaseDelay)
		assert.Nil(t, policy)
	})
}

func TestRetryPolicy_Decide(t *testing.T) {
	t.Run("email schedule doubles without jitter", func(t *testing.T) {
		policy, err := NewRetryPolicy(60 * time.Second)
		require.NoError(t, err)

		expected := []time.Duration{
			60 * time.Second,
			120 * time.Second,
			240 * time.Second,
			480 * time.Second,
		}
		for i, want := range expected {
			decision := policy.Decide(i+1, 5)
			assert.False(t, decision.GiveUp, "attempt %d should retry", i+1)
			assert.Equal(t, want, decision.Delay, "attempt %d delay", i+1)
		}
	})

	t.Run("pdf schedule", func(t *testing.T) {
		policy, err := NewRetryPolicy(30 * time.Second)
		require.NoError(t, err)

		first := policy.Decide(1, 3)
		assert.Equal(t, 30*time.Second, first.Delay)

		second := policy.Decide(2, 3)
		assert.Equal(t, 60*time.Second, second.Delay)
	})

	t.Run("gives up at max attempts", func(t *testing.T) {
		policy, err := NewRetryPolicy(60 * time.Second)
		require.NoError(t, err)

		decision := policy.Decide(5, 5)
		assert.True(t, decision.GiveUp)
		assert.Zero(t, decision.Delay)
	})

	t.Run("gives up beyond max attempts", func(t *testing.T) {
		policy, err := NewRetryPolicy(60 * time.Second)
		require.NoError(t, err)

		decision := policy.Decide(7, 5)
		assert.True(t, decision.GiveUp)
	})

	t.Run("gives up when max attempts is zero", func(t *testing.T) {
		policy, err := NewRetryPolicy(60 * time.Second)
		require.NoError(t, err)

		decision := policy.Decide(1, 0)
		assert.True(t, decision.GiveUp)
	})

	t.Run("caps exponent on pathological attempt counts", func(t *testing.T) {
		policy, err := NewRetryPolicy(time.Second)
		require.NoError(t, err)

		decision := policy.Decide(100, 200)
		assert.False(t, decision.GiveUp)
		assert.Positive(t, decision.Delay)
	})
}
