package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsUpToMax(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 2.0)

	var last time.Duration
	for i := 0; i < 10; i++ {
		last = b.Next()
		assert.GreaterOrEqual(t, last, 100*time.Millisecond)
	}
	// After growth, the jittered wait stays within 20% of the cap
	assert.LessOrEqual(t, last, 1200*time.Millisecond)
	assert.Equal(t, 10, b.Attempts())
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, 2.0)
	b.Next()
	b.Next()

	b.Reset()

	assert.Zero(t, b.Attempts())
	assert.LessOrEqual(t, b.Next(), 120*time.Millisecond)
}
