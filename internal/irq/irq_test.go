package irq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServeWaitsForCriticalSection(t *testing.T) {
	c := New()
	done := make(chan struct{})

	c.Critical(func() {
		assert.True(t, c.Masked())
		go func() {
			c.Serve(func() {})
			close(done)
		}()

		select {
		case <-done:
			t.Fatal("interrupt ran inside critical section")
		case <-time.After(20 * time.Millisecond):
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("interrupt never ran after Enable")
	}
	assert.False(t, c.Masked())
	assert.Equal(t, uint64(1), c.Served())
}

func TestServeCountsHandlers(t *testing.T) {
	c := New()
	n := 0
	for i := 0; i < 5; i++ {
		c.Serve(func() { n++ })
	}
	assert.Equal(t, 5, n)
	assert.Equal(t, uint64(5), c.Served())
}
