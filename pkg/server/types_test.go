package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectionEnqueueDropsWhenBufferFull(t *testing.T) {
	conn := newConnection("c1", nil)

	for i := 0; i < MessageChanBufferSize; i++ {
		assert.True(t, conn.enqueue(i))
	}

	start := time.Now()
	ok := conn.enqueue("overflow")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnectionEnqueueStopsAfterClose(t *testing.T) {
	conn := newConnection("c2", nil)
	close(conn.writerDone)

	assert.False(t, conn.enqueue("hello"))
}

func TestConnectionRefCounting(t *testing.T) {
	conn := newConnection("c3", nil)
	assert.False(t, conn.isInUse())

	conn.addRef()
	assert.True(t, conn.isInUse())

	conn.addRef()
	conn.release()
	assert.True(t, conn.isInUse())

	conn.release()
	assert.False(t, conn.isInUse())
}
