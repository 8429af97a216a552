package sse

import (
	"context"
	"log/slog"
	"sync"
)

type managerOptions[T any] struct {
	logger *slog.Logger
	source ISource[T]
}

type ManagerOption[T any] func(*managerOptions[T])

// WithManagerLogger 設置日誌記錄器
func WithManagerLogger[T any](logger *slog.Logger) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.logger = logger
	}
}

// WithManagerSource 設置跨節點訊息來源
// 設置後其他節點發布到 stream 的事件也會被廣播給本地訂閱者
func WithManagerSource[T any](source ISource[T]) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.source = source
	}
}

// connectionManager 管理多個 SSE 頻道的訂閱與發布。
// 本地發布走 loopback 通道；若設置了 source，
// 則同時消費 Redis Stream 上的事件，讓多個服務實例能夠協同運作。
type connectionManager[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex   // 保護 active 和 channels 的讀寫
	wg     sync.WaitGroup // 用於等待所有 goroutine 完成
	active bool           // 標記 manager 是否正在運作中

	source   ISource[T]             // 跨節點事件來源，可為 nil
	loopback chan PublishRequest[T] // 本地發布通道
	channels map[string]*Channel[T] // 儲存所有活躍的頻道
}

// NewConnectionManager 建立一個新的連線管理器。
func NewConnectionManager[T any](opts ...ManagerOption[T]) IConnectionManager[T] {
	options := managerOptions[T]{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &connectionManager[T]{
		ctx:      ctx,
		cancel:   cancel,
		logger:   options.logger.With(slog.String("caller", "ConnectionManager")),
		source:   options.source,
		loopback: make(chan PublishRequest[T], 100),
		channels: make(map[string]*Channel[T]),
		active:   true,
	}
}

// Start 啟動連線管理器，開始處理訊息的接收與廣播。
// 應在呼叫其他方法前先呼叫此方法。
func (cm *connectionManager[T]) Start() {
	var remote <-chan PublishRequest[T]
	if cm.source != nil {
		cm.source.Start()
		remote = cm.source.Subscribe()
	}

	// 啟動訊息處理的 goroutine
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for {
			select {
			case <-cm.ctx.Done():
				return
			case msg := <-cm.loopback:
				cm.dispatch(msg)
			case msg, ok := <-remote:
				if !ok {
					remote = nil
					continue
				}
				cm.dispatch(msg)
			}
		}
	}()
}

func (cm *connectionManager[T]) dispatch(msg PublishRequest[T]) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if channel, ok := cm.channels[msg.Channel]; ok {
		channel.Broadcast(msg.Message)
	}
}

// Done 停止連線管理器的運作。
func (cm *connectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	cm.mu.Unlock()

	cm.cancel()
	if cm.source != nil {
		cm.source.Close()
	}
	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道。
// channelName: 要訂閱的頻道名稱
// 返回: 用於接收訊息的唯讀通道，以及可能的錯誤
func (cm *connectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T]()
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Publish 發布訊息到指定的頻道。
// channelName: 目標頻道名稱
// data: 要發布的訊息內容
func (cm *connectionManager[T]) Publish(channelName string, data T) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.active {
		return context.Canceled
	}

	select {
	case cm.loopback <- PublishRequest[T]{Channel: channelName, Message: data}:
		return nil
	case <-cm.ctx.Done():
		return context.Canceled
	}
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *connectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}
