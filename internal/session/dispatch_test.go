package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSetObserve(t *testing.T) {
	s := newSeenSet(500, 250)

	assert.True(t, s.observe("a"))
	assert.False(t, s.observe("a"))
	assert.True(t, s.observe("b"))
	assert.Equal(t, 2, s.size())
}

func TestSeenSetTrimsToMostRecent(t *testing.T) {
	s := newSeenSet(500, 250)

	// A burst larger than the cap must not grow the set unboundedly.
	for i := 0; i < 600; i++ {
		assert.True(t, s.observe(fmt.Sprintf("id-%d", i)))
	}
	assert.LessOrEqual(t, s.size(), 500)

	// The most recent ids survive the trim, the oldest are forgotten.
	assert.False(t, s.observe("id-599"))
	assert.True(t, s.observe("id-0"))
}

func TestSeenSetTrimKeepsDedupAfterOverflow(t *testing.T) {
	s := newSeenSet(4, 2)

	for i := 0; i < 5; i++ {
		s.observe(fmt.Sprintf("id-%d", i))
	}
	// Trim fired at the fifth insert: only id-3 and id-4 remain.
	assert.Equal(t, 2, s.size())
	assert.False(t, s.observe("id-3"))
	assert.False(t, s.observe("id-4"))
	assert.True(t, s.observe("id-1"))
}
