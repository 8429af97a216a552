package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// AuctionLockKey 回傳指定拍賣的分散式鎖鍵值
func AuctionLockKey(auctionID uint64) string {
	return fmt.Sprintf("vickroy:auction:%d:lock", auctionID)
}

type lockOptions struct {
	expiry        time.Duration
	renewInterval time.Duration
	retryDelay    time.Duration
	retryOnError  bool
}

type AuctionLockOption func(*lockOptions)

// WithLockExpiry 設置單次鎖定的過期時間
func WithLockExpiry(d time.Duration) AuctionLockOption {
	return func(o *lockOptions) {
		o.expiry = d
	}
}

// WithLockRenewInterval 設置自動續期間隔，默認為過期時間的三分之一
func WithLockRenewInterval(d time.Duration) AuctionLockOption {
	return func(o *lockOptions) {
		o.renewInterval = d
	}
}

// WithLockRetryDelay 設置搶鎖失敗後的重試間隔
func WithLockRetryDelay(d time.Duration) AuctionLockOption {
	return func(o *lockOptions) {
		o.retryDelay = d
	}
}

// WithLockRetryOnError 設置遇到Redis通訊錯誤時是否繼續重試
func WithLockRetryOnError(retry bool) AuctionLockOption {
	return func(o *lockOptions) {
		o.retryOnError = retry
	}
}

// AuctionLock 是單場拍賣的分散式寫入鎖。
// 結算可能跨越多次鏈上轉帳，持鎖時間難以預估，
// 因此取得鎖後由背景goroutine持續續期，直到Unlock為止
type AuctionLock struct {
	inner *redsync.Mutex
	opts  lockOptions

	mu        sync.Mutex
	renewing  bool
	stopRenew context.CancelFunc
	wg        sync.WaitGroup
}

func NewAuctionLock(client *redis.Client, auctionID uint64, opts ...AuctionLockOption) IAuctionLock {
	// 默認選項
	options := lockOptions{
		expiry:     8 * time.Second,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.renewInterval <= 0 {
		options.renewInterval = options.expiry / 3
	}

	rs := redsync.New(goredis.NewPool(client))
	return &AuctionLock{
		inner: rs.NewMutex(
			AuctionLockKey(auctionID),
			redsync.WithExpiry(options.expiry),
			redsync.WithTries(1),
			redsync.WithRetryDelay(options.retryDelay),
		),
		opts: options,
	}
}

// Lock 取得鎖並啟動自動續期
// 回傳的context會在Unlock或續期失敗時被取消
func (l *AuctionLock) Lock(ctx context.Context) (context.Context, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := l.inner.LockContext(ctx)
		if err == nil {
			lockCtx, cancel := context.WithCancel(ctx)
			l.beginRenew(lockCtx, cancel)
			return lockCtx, nil
		}
		// Redis通訊錯誤默認直接回報，搶輸鎖則延遲後重試
		var redisErr *redsync.RedisError
		if errors.As(err, &redisErr) && !l.opts.retryOnError {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.opts.retryDelay):
		}
	}
}

// Unlock 停止自動續期並釋放鎖
func (l *AuctionLock) Unlock() (bool, error) {
	l.endRenew()
	l.wg.Wait()
	return l.inner.Unlock()
}

// Valid 回報鎖目前是否仍被本實例持有
func (l *AuctionLock) Valid() bool {
	l.mu.Lock()
	renewing := l.renewing
	l.mu.Unlock()
	return renewing && time.Now().Before(l.inner.Until())
}

func (l *AuctionLock) beginRenew(ctx context.Context, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.renewing {
		return
	}
	l.renewing = true
	l.stopRenew = cancel
	l.wg.Add(1)
	go l.renewLoop(ctx)
}

func (l *AuctionLock) renewLoop(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.opts.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ok, err := l.inner.Extend(); err != nil || !ok {
				l.endRenew()
				return
			}
		}
	}
}

func (l *AuctionLock) endRenew() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.renewing {
		return
	}
	l.renewing = false
	if l.stopRenew != nil {
		l.stopRenew()
	}
}
