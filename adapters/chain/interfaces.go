package chain

import (
	"context"

	"github.com/google/uuid"
)

// AssetRef 指向一個鏈上的非同質化資產
type AssetRef struct {
	Contract string
	TokenID  string
}

// IAssetCustody 定義了資產託管的操作介面
// 實作必須保證每次呼叫不是完整成功就是毫無副作用
type IAssetCustody interface {
	// PullAsset 將資產從擁有者轉入託管
	PullAsset(ctx context.Context, owner string, ref AssetRef) error
	// ReleaseAsset 將託管中的資產轉出給指定地址
	ReleaseAsset(ctx context.Context, ref AssetRef, to string) error
}

// IVault 定義了原生貨幣金庫的操作介面
// 實作必須保證每次呼叫不是完整成功就是毫無副作用
type IVault interface {
	// Escrow 自指定地址收取金額進入金庫
	Escrow(ctx context.Context, from string, amount uint64) error
	// Payout 自金庫支付金額給指定地址
	Payout(ctx context.Context, to string, amount uint64) error
}

// IProofMinter 定義了得標證明代幣的鑄造介面
// 每場拍賣至多鑄造一枚，鑄出的代幣不可轉讓
type IProofMinter interface {
	Mint(ctx context.Context, to string, auctionID uint64) (uuid.UUID, error)
}

// IHeightSource 定義了鏈高度的讀取介面
// 核心唯一的時間來源，投標與結算的高度門檻皆以此為準
type IHeightSource interface {
	Height(ctx context.Context) (uint64, error)
}
