package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotAssetOwner 表示資產不屬於指定的擁有者（例如缺少授權或已被轉走）
	ErrNotAssetOwner = errors.New("asset is not owned by the given address")
	// ErrAssetNotInCustody 表示資產不在託管中
	ErrAssetNotInCustody = errors.New("asset is not in custody")
	// ErrInsufficientFunds 表示帳戶餘額不足以支付託管金額
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientVault 表示金庫餘額不足以支付
	ErrInsufficientVault = errors.New("insufficient vault balance")
	// ErrAlreadyMinted 表示該拍賣已鑄造過證明代幣
	ErrAlreadyMinted = errors.New("proof token already minted for auction")
)

const custodian = "__custody__"

// Devnet 是鏈上協作者的記憶體實作，供本地模式與測試使用
// 所有操作先驗證再變更，因此每次呼叫都是全有或全無
type Devnet struct {
	mu       sync.Mutex
	height   uint64
	balances map[string]uint64
	vault    uint64
	assets   map[AssetRef]string
	minted   map[uint64]uuid.UUID
}

// NewDevnet 建立一個初始高度為 height 的記憶體鏈
func NewDevnet(height uint64) *Devnet {
	return &Devnet{
		height:   height,
		balances: make(map[string]uint64),
		assets:   make(map[AssetRef]string),
		minted:   make(map[uint64]uuid.UUID),
	}
}

// Fund 為地址存入原生貨幣餘額
func (d *Devnet) Fund(addr string, amount uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.balances[addr] += amount
}

// RegisterAsset 登記一個資產的擁有者
func (d *Devnet) RegisterAsset(ref AssetRef, owner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[ref] = owner
}

// Advance 將鏈高度前進 n
func (d *Devnet) Advance(n uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.height += n
	return d.height
}

// Height 回傳目前鏈高度
func (d *Devnet) Height(ctx context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.height, nil
}

// PullAsset 將資產自擁有者轉入託管
func (d *Devnet) PullAsset(ctx context.Context, owner string, ref AssetRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.assets[ref] != owner {
		return fmt.Errorf("%w: %s/%s", ErrNotAssetOwner, ref.Contract, ref.TokenID)
	}
	d.assets[ref] = custodian
	return nil
}

// ReleaseAsset 將託管中的資產轉出給指定地址
func (d *Devnet) ReleaseAsset(ctx context.Context, ref AssetRef, to string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.assets[ref] != custodian {
		return fmt.Errorf("%w: %s/%s", ErrAssetNotInCustody, ref.Contract, ref.TokenID)
	}
	d.assets[ref] = to
	return nil
}

// AssetOwner 回傳資產目前的擁有者
func (d *Devnet) AssetOwner(ref AssetRef) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assets[ref]
}

// Escrow 自地址收取金額進入金庫
func (d *Devnet) Escrow(ctx context.Context, from string, amount uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.balances[from] < amount {
		return fmt.Errorf("%w: %s needs %d has %d", ErrInsufficientFunds, from, amount, d.balances[from])
	}
	d.balances[from] -= amount
	d.vault += amount
	return nil
}

// Payout 自金庫支付金額給地址
func (d *Devnet) Payout(ctx context.Context, to string, amount uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vault < amount {
		return fmt.Errorf("%w: needs %d has %d", ErrInsufficientVault, amount, d.vault)
	}
	d.vault -= amount
	d.balances[to] += amount
	return nil
}

// Balance 回傳地址的原生貨幣餘額
func (d *Devnet) Balance(addr string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.balances[addr]
}

// VaultBalance 回傳金庫目前的餘額
func (d *Devnet) VaultBalance() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vault
}

// Mint 為拍賣鑄造得標證明代幣，同一拍賣重複鑄造會失敗
func (d *Devnet) Mint(ctx context.Context, to string, auctionID uint64) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.minted[auctionID]; ok {
		return uuid.Nil, fmt.Errorf("%w: auction %d", ErrAlreadyMinted, auctionID)
	}
	tokenID := uuid.New()
	d.minted[auctionID] = tokenID
	return tokenID, nil
}

// MintedToken 回傳拍賣對應的證明代幣 ID，若尚未鑄造則回傳 uuid.Nil
func (d *Devnet) MintedToken(auctionID uint64) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.minted[auctionID]
}
