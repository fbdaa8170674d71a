package kiosk

import (
	"context"
	"sync"
	"time"
)

// InputEvent 一次按键输入
type InputEvent struct {
	Key  byte      // 按键ASCII码（'0'-'9'、'*'、'#'）
	Time time.Time // 按下时刻
}

// InputQueue 按键事件队列。生产者是串口按键监听，消费者是会话循环。
// Push永不阻塞也永不失败，事件按到达顺序被恰好消费一次。
type InputQueue struct {
	mu      sync.Mutex
	backlog []InputEvent
	notify  chan struct{}
}

// NewInputQueue 创建输入队列
func NewInputQueue() *InputQueue {
	return &InputQueue{
		notify: make(chan struct{}, 1),
	}
}

// Push 追加一个事件并唤醒等待中的消费者
func (q *InputQueue) Push(ev InputEvent) {
	q.mu.Lock()
	q.backlog = append(q.backlog, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop 非阻塞取出队首事件
func (q *InputQueue) TryPop() (InputEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		return InputEvent{}, false
	}
	ev := q.backlog[0]
	q.backlog = q.backlog[1:]
	return ev, true
}

// WaitPop 阻塞等待下一个事件，上下文取消时返回false
func (q *InputQueue) WaitPop(ctx context.Context) (InputEvent, bool) {
	for {
		if ev, ok := q.TryPop(); ok {
			return ev, true
		}
		select {
		case <-ctx.Done():
			return InputEvent{}, false
		case <-q.notify:
			// 被唤醒后回到循环头部重新尝试取出
		}
	}
}

// Len 当前积压的事件数
func (q *InputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}
