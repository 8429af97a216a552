package sse

import (
	"sync"
)

// 每個訂閱者的事件緩衝
// 廣播採非阻塞送出，讀得太慢的訂閱者會錯過事件，
// 錯過的狀態由前端重新拉取拍賣快照補齊
const subscriberBuffer = 16

// Channel 管理單一拍賣頻道的訂閱者集合
type Channel[T any] struct {
	mu   sync.RWMutex
	subs []chan T
}

func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{}
}

// Subscribe 建立並登記一個新的訂閱通道
func (c *Channel[T]) Subscribe() <-chan T {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan T, subscriberBuffer)
	c.subs = append(c.subs, ch)
	return ch
}

// Unsubscribe 移除並關閉指定的訂閱通道
func (c *Channel[T]) Unsubscribe(ch <-chan T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subs {
		if (<-chan T)(sub) == ch {
			close(sub)
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll 關閉所有訂閱通道並清空清單
func (c *Channel[T]) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		close(sub)
	}
	c.subs = nil
}

// Broadcast 將事件送給所有訂閱者，緩衝已滿的訂閱者會被略過
func (c *Channel[T]) Broadcast(message T) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sub := range c.subs {
		select {
		case sub <- message:
		default:
		}
	}
}

// IsIdle 回報是否已無訂閱者
func (c *Channel[T]) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs) == 0
}
