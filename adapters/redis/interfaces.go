package redis

import (
	"context"
)

// IStreamWriter 定義了事件寫入端的操作介面
type IStreamWriter[T any] interface {
	Start()
	Publish(event T) error
	Close()
}

// IStreamReader 定義了事件讀取端的操作介面
type IStreamReader[T any] interface {
	Start()
	Subscribe() <-chan T
	Close()
}

// IAuctionLock 是單場拍賣的跨實例寫入鎖
// 同一場拍賣的出價、解密與結算都必須先取得這把鎖
type IAuctionLock interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}
