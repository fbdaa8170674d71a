package kiosk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputQueueFIFO(t *testing.T) {
	q := NewInputQueue()
	keys := []byte{'1', '2', '3', '9', '0'}
	for _, k := range keys {
		q.Push(InputEvent{Key: k, Time: time.Now()})
	}
	assert.Equal(t, len(keys), q.Len())

	for _, want := range keys {
		ev, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, ev.Key)
	}
	assert.Equal(t, 0, q.Len())
}

func TestInputQueueTryPopEmpty(t *testing.T) {
	q := NewInputQueue()
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestInputQueueWaitPopWakesOnPush(t *testing.T) {
	q := NewInputQueue()
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(InputEvent{Key: '*'})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, ok := q.WaitPop(ctx)
	require.True(t, ok)
	assert.Equal(t, byte('*'), ev.Key)
}

func TestInputQueueWaitPopCancel(t *testing.T) {
	q := NewInputQueue()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok := q.WaitPop(ctx)
	assert.False(t, ok)
}

func TestInputQueueNoLossNoDup(t *testing.T) {
	// 单生产者单消费者下事件不丢失、不重复、有序
	q := NewInputQueue()
	const total = 1000

	go func() {
		for i := 0; i < total; i++ {
			q.Push(InputEvent{Key: byte('0' + i%10)})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < total; i++ {
		ev, ok := q.WaitPop(ctx)
		require.True(t, ok, "第%d个事件等待超时", i)
		assert.Equal(t, byte('0'+i%10), ev.Key)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}
