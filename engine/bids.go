package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vickroy/models"
)

// CommitBid 記錄一筆密封出價並託管押金，兩者在同一交易內完成
// 密文與揭示條件原樣保存，時間鎖預言機透過 bid-committed 事件自行觀察，
// 核心不發出任何對外請求
func (e *Engine) CommitBid(ctx context.Context, auctionID uint64, bidder string, ciphertext, condition []byte, deposit uint64) (uint32, error) {
	const op = "CommitBid"

	var bid models.Bid
	err := e.db.Transaction(func(tx *gorm.DB) error {
		// 檢查拍賣是否存在且仍可投標
		auction := models.Auction{ID: auctionID}
		if result := tx.First(&auction); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
			}
			return fmt.Errorf("fail to find auction, err=%w", result.Error)
		}
		if auction.Settled {
			return fmt.Errorf("%w: %d", ErrAuctionAlreadySettled, auctionID)
		}
		height, err := e.currentHeight(ctx)
		if err != nil {
			return err
		}
		if height >= auction.EndHeight {
			return fmt.Errorf("%w: height=%d endHeight=%d", ErrBiddingClosed, height, auction.EndHeight)
		}
		// 同一地址至多投標一次
		var existing int64
		if result := tx.Model(&models.Bid{}).
			Where("auction_id = ? AND bidder_address = ?", auctionID, bidder).
			Count(&existing); result.Error != nil {
			return fmt.Errorf("fail to check existing bid, err=%w", result.Error)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrAlreadyBid, bidder)
		}
		// 押金必須達到底價換算的最低額
		if minDeposit := minDepositOf(auction.ReservePrice, auction.DepositBps); deposit < minDeposit {
			return fmt.Errorf("%w: deposit=%d min=%d", ErrDepositTooLow, deposit, minDeposit)
		}

		bid = models.Bid{
			ID:            uuid.New(),
			AuctionID:     auctionID,
			BidderAddress: bidder,
			BidIndex:      auction.BidderCount,
			Ciphertext:    ciphertext,
			Condition:     condition,
			Deposit:       deposit,
		}
		if result := tx.Create(&bid); result.Error != nil {
			// 唯一索引是一人一標的最後防線
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrAlreadyBid, bidder)
			}
			return fmt.Errorf("fail to create bid, err=%w", result.Error)
		}
		auction.BidderCount++
		if result := tx.Save(&auction); result.Error != nil {
			return fmt.Errorf("fail to update bidder count, err=%w", result.Error)
		}
		// 收取押金進入金庫，失敗時回滾整筆投標
		if err := e.vault.Escrow(ctx, bidder, deposit); err != nil {
			return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("[%s] %w", op, err)
	}

	e.logger.Info("Bid committed",
		slog.Uint64("auctionId", auctionID),
		slog.String("bidder", bidder),
		slog.Uint64("deposit", deposit))
	e.publish(Event{
		Type:       EventBidCommitted,
		AuctionID:  auctionID,
		Bidder:     bidder,
		BidIndex:   bid.BidIndex,
		Ciphertext: ciphertext,
		Condition:  condition,
		Deposit:    deposit,
		Time:       time.Now(),
	})
	return bid.BidIndex, nil
}

// DecodeBid 由受信任的轉發者寫入解碼後的出價金額，每筆投標僅能寫入一次
// 核心不驗證金額是否對應原密文，這是設計上的信任邊界
func (e *Engine) DecodeBid(ctx context.Context, caller string, auctionID uint64, bidder string, amount uint64) error {
	const op = "DecodeBid"
	// 解碼是特權操作
	if !e.gate.HasRole(ctx, caller, RoleAdmin) {
		return fmt.Errorf("[%s] %w: %s", op, ErrNotAuthorized, caller)
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		var bid models.Bid
		if result := tx.Where("auction_id = ? AND bidder_address = ?", auctionID, bidder).First(&bid); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: auction=%d bidder=%s", ErrBidNotFound, auctionID, bidder)
			}
			return fmt.Errorf("fail to find bid, err=%w", result.Error)
		}
		if bid.Decoded {
			return fmt.Errorf("%w: auction=%d bidder=%s", ErrAlreadyDecoded, auctionID, bidder)
		}
		if result := tx.Model(&bid).Updates(map[string]any{
			"decoded":        true,
			"decoded_amount": amount,
		}); result.Error != nil {
			return fmt.Errorf("fail to store decoded amount, err=%w", result.Error)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}

	e.logger.Info("Bid revealed",
		slog.Uint64("auctionId", auctionID),
		slog.String("bidder", bidder),
		slog.Uint64("amount", amount))
	e.publish(Event{
		Type:      EventBidRevealed,
		AuctionID: auctionID,
		Bidder:    bidder,
		Amount:    amount,
		Time:      time.Now(),
	})
	return nil
}

// ListBids 依投標順序回傳拍賣的所有投標
func (e *Engine) ListBids(ctx context.Context, auctionID uint64) ([]models.Bid, error) {
	const op = "ListBids"
	auction := models.Auction{ID: auctionID}
	if result := e.db.WithContext(ctx).First(&auction); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("[%s] %w: %d", op, ErrAuctionNotFound, auctionID)
		}
		return nil, fmt.Errorf("[%s] Fail to find auction, err=%w", op, result.Error)
	}
	var bids []models.Bid
	if result := e.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "bid_index"}}).
		Find(&bids); result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list bids, err=%w", op, result.Error)
	}
	return bids, nil
}
