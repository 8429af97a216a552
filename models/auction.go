package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Auction 代表一場密封出價拍賣
// 包含拍品資訊、底價、押金比例、結束高度與結算結果等資訊
// 拍賣建立後即為永久紀錄，不會被刪除
type Auction struct {
	gorm.Model

	ID            uint64 `gorm:"primaryKey;autoIncrement;<-:false"`
	SellerAddress string `gorm:"type:varchar(128);not null;<-:create"`
	Title         string `gorm:"type:varchar(255);not null;<-:create"`
	Description   string `gorm:"type:text;not null;<-:create"`
	AssetContract string `gorm:"type:varchar(128);not null;<-:create"`
	AssetTokenID  string `gorm:"type:varchar(128);not null;<-:create"`
	ReservePrice  uint64 `gorm:"not null;<-:create"`
	EndHeight     uint64 `gorm:"not null;<-:create"`
	DepositBps    uint32 `gorm:"not null;<-:create"`
	BidderCount   uint32 `gorm:"not null;default:0"`

	// 結算結果，僅在 Finalize 成功時寫入一次
	Settled       bool   `gorm:"not null;default:false"`
	WinnerAddress string `gorm:"type:varchar(128);not null;default:''"`
	WinningAmount uint64 `gorm:"not null;default:0"`
	TaxCollected  uint64 `gorm:"not null;default:0"`

	// 外鍵關聯
	Bids        []Bid
	WinnerToken *WinnerToken
}

// WinnerToken 代表拍賣結算後鑄造給得標者的證明代幣
// 與拍賣為一對一關係，且永遠不可轉讓
type WinnerToken struct {
	gorm.Model

	ID           uuid.UUID `gorm:"type:uuid;primaryKey;<-:create"`
	AuctionID    uint64    `gorm:"uniqueIndex;not null;<-:create"`
	OwnerAddress string    `gorm:"type:varchar(128);not null;<-:create"`
	Locked       bool      `gorm:"not null;default:true;<-:create"`
}
