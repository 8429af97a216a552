package engine

import (
	"strconv"
	"time"
)

// EventType 標示事件種類
type EventType string

const (
	EventAuctionCreated     EventType = "auction-created"
	EventBidCommitted       EventType = "bid-committed"
	EventBidRevealed        EventType = "bid-revealed"
	EventAuctionFinalized   EventType = "auction-finalized"
	EventTaxCollected       EventType = "tax-collected"
	EventDepositReclaimed   EventType = "deposit-reclaimed"
	EventAdminWalletUpdated EventType = "admin-wallet-updated"
)

// PlatformChannel 是非特定拍賣事件（如管理錢包更新）的頻道名稱
const PlatformChannel = "platform"

// Event 是對外發布的狀態變更事件，供 UI 與索引器消費
// 欄位依事件種類選擇性填寫
type Event struct {
	Type      EventType `json:"type" msgpack:"type"`
	AuctionID uint64    `json:"auctionId,omitempty" msgpack:"auctionId,omitempty"`
	Seller    string    `json:"seller,omitempty" msgpack:"seller,omitempty"`
	Bidder    string    `json:"bidder,omitempty" msgpack:"bidder,omitempty"`
	BidIndex  uint32    `json:"bidIndex,omitempty" msgpack:"bidIndex,omitempty"`
	// Ciphertext 與 Condition 僅在 bid-committed 事件填寫，
	// 時間鎖預言機靠這兩個欄位觀察待解碼的出價
	Ciphertext []byte `json:"ciphertext,omitempty" msgpack:"ciphertext,omitempty"`
	Condition  []byte `json:"condition,omitempty" msgpack:"condition,omitempty"`
	Amount    uint64    `json:"amount,omitempty" msgpack:"amount,omitempty"`
	Deposit   uint64    `json:"deposit,omitempty" msgpack:"deposit,omitempty"`
	Winner    string    `json:"winner,omitempty" msgpack:"winner,omitempty"`
	EndHeight uint64    `json:"endHeight,omitempty" msgpack:"endHeight,omitempty"`
	Wallet    string    `json:"wallet,omitempty" msgpack:"wallet,omitempty"`
	Time      time.Time `json:"time" msgpack:"time"`
}

// Channel 回傳事件所屬的發布頻道
func (e Event) Channel() string {
	if e.AuctionID == 0 {
		return PlatformChannel
	}
	return strconv.FormatUint(e.AuctionID, 10)
}

// IPublisher 定義了事件發布的操作介面
// 發布為盡力而為：失敗只記錄日誌，不影響已提交的狀態變更
type IPublisher interface {
	Publish(event Event) error
}
