package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpinlock(t *testing.T) {
	halted := make(chan struct{})
	l := &spinlock{name: "proc", halted: halted}
	assert.False(t, l.holding())
	l.acquire()
	assert.True(t, l.holding())
	l.release()
	assert.False(t, l.holding())
	assert.PanicsWithValue(t, "release proc", l.release)
	l.acquire()
	assert.True(t, l.holding())
	l.release()
}
