package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterPerKey(t *testing.T) {
	l := NewLimiter(0.001, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestLimiterDisabled(t *testing.T) {
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow("a"))

	l := NewLimiter(0, 0)
	for range 100 {
		assert.True(t, l.Allow("a"))
	}
}

func TestLimiterCleanup(t *testing.T) {
	l := NewLimiter(1, 1)
	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 0, l.Cleanup(time.Hour))
	assert.Equal(t, 2, l.Cleanup(-time.Second))
}
