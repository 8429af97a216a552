package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/chanx"
)

type writerOptions[T any] struct {
	logger    *slog.Logger
	queueSize int
	encode    func(T) (map[string]any, error)
}

type StreamWriterOption[T any] func(*writerOptions[T])

// WithWriterLogger 設置日誌記錄器
func WithWriterLogger[T any](logger *slog.Logger) StreamWriterOption[T] {
	return func(o *writerOptions[T]) {
		o.logger = logger
	}
}

// WithWriterQueueSize 設置待寫入佇列的初始容量
func WithWriterQueueSize[T any](size int) StreamWriterOption[T] {
	return func(o *writerOptions[T]) {
		o.queueSize = size
	}
}

// WithWriterEncodeFunc 設置事件編碼函數
func WithWriterEncodeFunc[T any](fn func(T) (map[string]any, error)) StreamWriterOption[T] {
	return func(o *writerOptions[T]) {
		o.encode = fn
	}
}

// StreamWriter 將結算事件附加到 Redis Stream。
// Publish 在呼叫端完成編碼後把欄位放入無界佇列，
// 實際的XADD由背景goroutine執行，結算路徑不會被Redis的延遲阻塞
type StreamWriter[T any] struct {
	client *redis.Client
	stream string
	queue  *chanx.UnboundedChan[map[string]any]
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
	opts   writerOptions[T]
}

func NewStreamWriter[T any](client *redis.Client, stream string, opts ...StreamWriterOption[T]) (*StreamWriter[T], error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}

	// 默認選項
	options := writerOptions[T]{
		logger:    slog.Default(),
		queueSize: 100,
		encode:    EncodeMessage[T],
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &StreamWriter[T]{
		client: client,
		stream: stream,
		closed: true,
		logger: options.logger.With(slog.String("caller", "StreamWriter"), slog.String("stream", stream)),
		opts:   options,
	}, nil
}

func (w *StreamWriter[T]) Start() {
	if !w.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.queue = chanx.NewUnboundedChan[map[string]any](ctx, w.opts.queueSize)
	w.stop = cancel
	w.closed = false
	w.logger.Info("starting stream writer")

	w.wg.Add(1)
	go w.drain(ctx)
}

// drain 依序將佇列中的事件附加到stream
// 事件發布為盡力而為，寫入失敗只記錄日誌
func (w *StreamWriter[T]) drain(ctx context.Context) {
	defer w.wg.Done()
	defer w.logger.Info("stream writer drain loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case fields := <-w.queue.Out:
			id, err := w.client.XAdd(ctx, &redis.XAddArgs{
				Stream: w.stream,
				Values: fields,
			}).Result()
			switch {
			case errors.Is(err, context.Canceled):
				return
			case err != nil:
				w.logger.Error("append to stream error", slog.Any("error", err))
			default:
				w.logger.Debug("event appended", slog.String("messageId", id))
			}
		}
	}
}

// Publish 編碼並排入一筆事件
// 寫入端尚未啟動或已關閉時返回ErrClosed
func (w *StreamWriter[T]) Publish(event T) error {
	if w.closed {
		return ErrClosed
	}
	fields, err := w.opts.encode(event)
	if err != nil {
		return fmt.Errorf("encode event error: %w", err)
	}
	w.queue.In <- fields
	return nil
}

func (w *StreamWriter[T]) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.stop()
	w.wg.Wait()
	w.logger.Info("stream writer closed")
}
