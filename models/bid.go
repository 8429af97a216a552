package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid 代表單一投標者對某場拍賣的密封出價
// 密文與揭示條件原樣保存，核心不做任何解讀
// 同時作為押金帳本：記錄投標時託管的押金金額
type Bid struct {
	*gorm.Model

	ID            uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	AuctionID     uint64    `gorm:"not null;uniqueIndex:idx_bids_auction_id_bidder_address;<-:create"`
	BidderAddress string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_bids_auction_id_bidder_address;<-:create"`
	BidIndex      uint32    `gorm:"not null;<-:create"`
	Ciphertext    []byte    `gorm:"not null;<-:create"`
	Condition     []byte    `gorm:"not null;<-:create"`
	Deposit       uint64    `gorm:"not null;<-:create"`

	// 解碼結果由受信任的揭示呼叫寫入一次
	Decoded       bool   `gorm:"not null;default:false"`
	DecodedAmount uint64 `gorm:"not null;default:0"`

	// 未解碼押金於結算後領回的標記
	Reclaimed bool `gorm:"not null;default:false"`

	// 外鍵關聯
	Auction Auction
}
