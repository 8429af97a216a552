package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type readerOptions[T any] struct {
	logger       *slog.Logger
	bufferSize   int
	batchSize    int64
	blockTimeout time.Duration
	decode       func(map[string]any) (T, error)
}

type StreamReaderOption[T any] func(*readerOptions[T])

// WithReaderLogger 設置日誌記錄器
func WithReaderLogger[T any](logger *slog.Logger) StreamReaderOption[T] {
	return func(o *readerOptions[T]) {
		o.logger = logger
	}
}

// WithReaderBufferSize 設置下游channel的緩衝大小
func WithReaderBufferSize[T any](size int) StreamReaderOption[T] {
	return func(o *readerOptions[T]) {
		o.bufferSize = size
	}
}

// WithReaderBatchSize 設置單次XREAD最多取回的訊息數
func WithReaderBatchSize[T any](size int64) StreamReaderOption[T] {
	return func(o *readerOptions[T]) {
		o.batchSize = size
	}
}

// WithReaderBlockTimeout 設置阻塞讀取超時時間
func WithReaderBlockTimeout[T any](d time.Duration) StreamReaderOption[T] {
	return func(o *readerOptions[T]) {
		o.blockTimeout = d
	}
}

// WithReaderDecodeFunc 設置事件解碼函數
func WithReaderDecodeFunc[T any](fn func(map[string]any) (T, error)) StreamReaderOption[T] {
	return func(o *readerOptions[T]) {
		o.decode = fn
	}
}

// StreamReader 追蹤 Redis Stream 上的新事件並送往下游。
// 只讀取啟動之後附加的訊息，歷史狀態由資料庫提供，不經過stream
type StreamReader[T any] struct {
	client *redis.Client
	stream string
	cursor string
	out    chan T
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
	opts   readerOptions[T]
}

func NewStreamReader[T any](client *redis.Client, stream string, opts ...StreamReaderOption[T]) (IStreamReader[T], error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}

	// 默認選項
	options := readerOptions[T]{
		logger:       slog.Default(),
		bufferSize:   100,
		batchSize:    16,
		blockTimeout: time.Second,
		decode:       DecodeMessage[T],
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &StreamReader[T]{
		client: client,
		stream: stream,
		cursor: "$",
		closed: true,
		logger: options.logger.With(slog.String("caller", "StreamReader"), slog.String("stream", stream)),
		opts:   options,
	}, nil
}

func (r *StreamReader[T]) Start() {
	if !r.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.out = make(chan T, r.opts.bufferSize)
	r.stop = cancel
	r.closed = false
	r.logger.Info("starting stream reader")

	r.wg.Add(1)
	go r.run(ctx)
}

func (r *StreamReader[T]) run(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.out)
	defer r.logger.Info("stream reader loop stopped")

	for ctx.Err() == nil {
		batch, err := r.poll(ctx)
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			r.logger.Error("read stream error", slog.Any("error", err))
			continue
		}
		for _, message := range batch {
			r.cursor = message.ID
			event, err := r.opts.decode(message.Values)
			if err != nil {
				// 解碼失敗的訊息直接丟棄，不阻塞後續事件
				r.logger.Error("drop undecodable message",
					slog.String("messageId", message.ID),
					slog.Any("error", err))
				continue
			}
			select {
			case <-ctx.Done():
				return
			case r.out <- event:
				r.logger.Debug("event sent to downstream", slog.String("messageId", message.ID))
			}
		}
	}
}

func (r *StreamReader[T]) poll(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := r.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{r.stream, r.cursor},
		Count:   r.opts.batchSize,
		Block:   r.opts.blockTimeout,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, redis.Nil
	}
	return streams[0].Messages, nil
}

// Subscribe 訂閱事件流
func (r *StreamReader[T]) Subscribe() <-chan T {
	return r.out
}

// Close 關閉讀取端
func (r *StreamReader[T]) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.stop()
	r.wg.Wait()
	r.logger.Info("stream reader closed")
}
