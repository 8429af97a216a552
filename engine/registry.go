package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"vickroy/adapters/chain"
	"vickroy/models"
)

// AuctionInput 是建立拍賣所需的全部欄位
type AuctionInput struct {
	Seller        string
	Title         string
	Description   string
	AssetContract string
	AssetTokenID  string
	Reserve       uint64
	EndHeight     uint64
	DepositBps    uint32
}

// CreateAuction 建立一場拍賣並將拍品原子性地轉入託管
// 資產轉移失敗時整筆操作回滾，拍賣不會被建立
func (e *Engine) CreateAuction(ctx context.Context, in AuctionInput) (uint64, error) {
	const op = "CreateAuction"
	// 檢查呼叫者是否持有賣家能力
	if !e.gate.HasRole(ctx, in.Seller, RoleSeller) {
		return 0, fmt.Errorf("[%s] %w: %s", op, ErrNotAuthorized, in.Seller)
	}
	// 檢查拍賣參數
	if in.Reserve == 0 {
		return 0, fmt.Errorf("[%s] %w", op, ErrInvalidReserve)
	}
	if in.DepositBps < MinDepositBps || in.DepositBps > MaxDepositBps {
		return 0, fmt.Errorf("[%s] %w: %d", op, ErrInvalidDepositBps, in.DepositBps)
	}
	height, err := e.currentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("[%s] %w", op, err)
	}
	if in.EndHeight <= height {
		return 0, fmt.Errorf("[%s] %w: endHeight=%d height=%d", op, ErrInvalidEndHeight, in.EndHeight, height)
	}

	auction := models.Auction{
		SellerAddress: in.Seller,
		Title:         in.Title,
		Description:   in.Description,
		AssetContract: in.AssetContract,
		AssetTokenID:  in.AssetTokenID,
		ReservePrice:  in.Reserve,
		EndHeight:     in.EndHeight,
		DepositBps:    in.DepositBps,
	}
	err = e.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&auction); result.Error != nil {
			return fmt.Errorf("fail to create auction, err=%w", result.Error)
		}
		// 將拍品轉入託管，失敗（例如缺少授權）時回滾整筆建立
		ref := chain.AssetRef{Contract: in.AssetContract, TokenID: in.AssetTokenID}
		if err := e.custody.PullAsset(ctx, in.Seller, ref); err != nil {
			return fmt.Errorf("%w, err=%v", ErrAssetTransfer, err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("[%s] %w", op, err)
	}

	e.logger.Info("Auction created",
		slog.Uint64("auctionId", auction.ID),
		slog.String("seller", in.Seller),
		slog.Uint64("endHeight", in.EndHeight))
	e.publish(Event{
		Type:      EventAuctionCreated,
		AuctionID: auction.ID,
		Seller:    in.Seller,
		Amount:    in.Reserve,
		EndHeight: in.EndHeight,
		Time:      time.Now(),
	})
	return auction.ID, nil
}

// GetAuction 回傳拍賣的目前快照
func (e *Engine) GetAuction(ctx context.Context, auctionID uint64) (models.Auction, error) {
	const op = "GetAuction"
	auction := models.Auction{ID: auctionID}
	if result := e.db.WithContext(ctx).First(&auction); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return auction, fmt.Errorf("[%s] %w: %d", op, ErrAuctionNotFound, auctionID)
		}
		return auction, fmt.Errorf("[%s] Fail to find auction, err=%w", op, result.Error)
	}
	return auction, nil
}
