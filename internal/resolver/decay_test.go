package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecencyDecay(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	cfg := DecayConfig{HalfLifeDays: 7, Floor: 0.1}

	t.Run("fresh observation has no decay", func(t *testing.T) {
		assert.Equal(t, 1.0, RecencyDecay(now, now, cfg))
	})

	t.Run("zero timestamp treated as current", func(t *testing.T) {
		assert.Equal(t, 1.0, RecencyDecay(time.Time{}, now, cfg))
	})

	t.Run("future timestamp treated as current", func(t *testing.T) {
		assert.Equal(t, 1.0, RecencyDecay(now.Add(time.Hour), now, cfg))
	})

	t.Run("one half-life halves the weight", func(t *testing.T) {
		assert.InDelta(t, 0.5, RecencyDecay(now.AddDate(0, 0, -7), now, cfg), 0.0001)
	})

	t.Run("two half-lives quarter the weight", func(t *testing.T) {
		assert.InDelta(t, 0.25, RecencyDecay(now.AddDate(0, 0, -14), now, cfg), 0.0001)
	})

	t.Run("floor bounds stale observations", func(t *testing.T) {
		assert.Equal(t, 0.1, RecencyDecay(now.AddDate(0, -3, 0), now, cfg))
	})

	t.Run("invalid half-life falls back to a week", func(t *testing.T) {
		got := RecencyDecay(now.AddDate(0, 0, -7), now, DecayConfig{HalfLifeDays: 0, Floor: 0.1})
		assert.InDelta(t, 0.5, got, 0.0001)
	})
}
