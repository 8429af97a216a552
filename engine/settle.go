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

	"vickroy/adapters/chain"
	"vickroy/models"
)

// Refund 記錄一筆落標退款
type Refund struct {
	Bidder string
	Amount uint64
	Tax    uint64
}

// SettlementResult 是一次成功結算的完整內容
type SettlementResult struct {
	AuctionID     uint64
	Winner        string
	WinningAmount uint64
	TokenID       uuid.UUID
	Refunds       []Refund
	TaxCollected  uint64
}

// Finalize 對已結束的拍賣執行一次性結算：
//  1. 依投標順序掃描所有投標
//  2. 在已解碼的投標中選出金額嚴格最高者，同額時先投標者勝出
//  3. 沒有已解碼出價達到底價時整筆失敗，拍品留在託管中，可於補解碼後重試
//  4. 拍品轉移給得標者、鑄造得標證明、得標金額匯入管理錢包，
//     押金與得標金額的差額向得標者補收或退還
//  5. 其他已解碼投標者退還押金扣除稅金，稅金匯入管理錢包
//
// 未解碼的投標不參與結算，其押金留在金庫中，由 ReclaimDeposit 提供領回路徑。
// 任一子步驟失敗時整筆結算回滾，不會出現部分結算的狀態
func (e *Engine) Finalize(ctx context.Context, auctionID uint64) (*SettlementResult, error) {
	const op = "Finalize"

	var (
		settlement SettlementResult
		events     []Event
	)
	err := e.db.Transaction(func(tx *gorm.DB) error {
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
		if height < auction.EndHeight {
			return fmt.Errorf("%w: height=%d endHeight=%d", ErrTooEarly, height, auction.EndHeight)
		}
		config, err := platformConfig(tx)
		if err != nil {
			return err
		}

		// 依投標順序掃描，確保同額出價由先投標者勝出
		var bids []models.Bid
		if result := tx.Where("auction_id = ?", auctionID).
			Order(clause.OrderByColumn{Column: clause.Column{Name: "bid_index"}}).
			Find(&bids); result.Error != nil {
			return fmt.Errorf("fail to list bids, err=%w", result.Error)
		}
		var winner *models.Bid
		for i := range bids {
			if !bids[i].Decoded {
				continue
			}
			if winner == nil || bids[i].DecodedAmount > winner.DecodedAmount {
				winner = &bids[i]
			}
		}
		if winner == nil || winner.DecodedAmount < auction.ReservePrice {
			return fmt.Errorf("%w: auction=%d", ErrNoValidBids, auctionID)
		}

		// 拍品轉移給得標者
		ref := chain.AssetRef{Contract: auction.AssetContract, TokenID: auction.AssetTokenID}
		if err := e.custody.ReleaseAsset(ctx, ref, winner.BidderAddress); err != nil {
			return fmt.Errorf("%w, err=%v", ErrAssetTransfer, err)
		}
		// 鑄造得標證明代幣，與拍賣一對一
		tokenID, err := e.minter.Mint(ctx, winner.BidderAddress, auctionID)
		if err != nil {
			return fmt.Errorf("%w, err=%v", ErrAssetTransfer, err)
		}
		token := models.WinnerToken{
			ID:           tokenID,
			AuctionID:    auctionID,
			OwnerAddress: winner.BidderAddress,
			Locked:       true,
		}
		if result := tx.Create(&token); result.Error != nil {
			return fmt.Errorf("fail to record winner token, err=%w", result.Error)
		}

		// 得標者的押金併入得標金額：不足的尾款於此補收，
		// 押金多於得標金額時差額退還，不得滯留在金庫
		if winner.DecodedAmount > winner.Deposit {
			if err := e.vault.Escrow(ctx, winner.BidderAddress, winner.DecodedAmount-winner.Deposit); err != nil {
				return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
			}
		} else if winner.Deposit > winner.DecodedAmount {
			if err := e.vault.Payout(ctx, winner.BidderAddress, winner.Deposit-winner.DecodedAmount); err != nil {
				return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
			}
		}
		// 得標金額全數匯入管理錢包
		if err := e.vault.Payout(ctx, config.AdminWallet, winner.DecodedAmount); err != nil {
			return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
		}

		// 其他已解碼投標者退還押金扣稅；未解碼者不在此處理
		var taxTotal uint64
		for i := range bids {
			bid := &bids[i]
			if !bid.Decoded || bid.BidderAddress == winner.BidderAddress {
				continue
			}
			tax := taxOf(bid.Deposit, config.TaxBps)
			refund := bid.Deposit - tax
			if err := e.vault.Payout(ctx, bid.BidderAddress, refund); err != nil {
				return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
			}
			taxTotal += tax
			settlement.Refunds = append(settlement.Refunds, Refund{
				Bidder: bid.BidderAddress,
				Amount: refund,
				Tax:    tax,
			})
			events = append(events, Event{
				Type:      EventTaxCollected,
				AuctionID: auctionID,
				Bidder:    bid.BidderAddress,
				Amount:    tax,
				Time:      time.Now(),
			})
		}
		if taxTotal > 0 {
			if err := e.vault.Payout(ctx, config.AdminWallet, taxTotal); err != nil {
				return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
			}
		}

		// 寫回結算結果，settled 旗標只在此處轉為 true
		if result := tx.Model(&auction).Updates(map[string]any{
			"settled":        true,
			"winner_address": winner.BidderAddress,
			"winning_amount": winner.DecodedAmount,
			"tax_collected":  taxTotal,
		}); result.Error != nil {
			return fmt.Errorf("fail to store settlement result, err=%w", result.Error)
		}

		settlement.AuctionID = auctionID
		settlement.Winner = winner.BidderAddress
		settlement.WinningAmount = winner.DecodedAmount
		settlement.TokenID = tokenID
		settlement.TaxCollected = taxTotal
		events = append(events, Event{
			Type:      EventAuctionFinalized,
			AuctionID: auctionID,
			Winner:    winner.BidderAddress,
			Amount:    winner.DecodedAmount,
			Time:      time.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}

	e.logger.Info("Auction finalized",
		slog.Uint64("auctionId", auctionID),
		slog.String("winner", settlement.Winner),
		slog.Uint64("amount", settlement.WinningAmount),
		slog.Uint64("tax", settlement.TaxCollected))
	e.publish(events...)
	return &settlement, nil
}

// ReclaimDeposit 讓結算時仍未解碼的投標者領回押金
// 僅在拍賣結算後可用，退款同樣扣除落標稅，每筆押金只能領回一次
func (e *Engine) ReclaimDeposit(ctx context.Context, auctionID uint64, bidder string) (uint64, error) {
	const op = "ReclaimDeposit"

	var (
		refund uint64
		tax    uint64
	)
	err := e.db.Transaction(func(tx *gorm.DB) error {
		auction := models.Auction{ID: auctionID}
		if result := tx.First(&auction); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ErrAuctionNotFound, auctionID)
			}
			return fmt.Errorf("fail to find auction, err=%w", result.Error)
		}
		if !auction.Settled {
			return fmt.Errorf("%w: %d", ErrNotSettled, auctionID)
		}
		var bid models.Bid
		if result := tx.Where("auction_id = ? AND bidder_address = ?", auctionID, bidder).First(&bid); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: auction=%d bidder=%s", ErrBidNotFound, auctionID, bidder)
			}
			return fmt.Errorf("fail to find bid, err=%w", result.Error)
		}
		// 已解碼的投標在結算時就處理過了
		if bid.Decoded {
			return fmt.Errorf("%w: auction=%d bidder=%s", ErrNotReclaimable, auctionID, bidder)
		}
		if bid.Reclaimed {
			return fmt.Errorf("%w: auction=%d bidder=%s", ErrAlreadyReclaimed, auctionID, bidder)
		}
		config, err := platformConfig(tx)
		if err != nil {
			return err
		}

		tax = taxOf(bid.Deposit, config.TaxBps)
		refund = bid.Deposit - tax
		if err := e.vault.Payout(ctx, bidder, refund); err != nil {
			return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
		}
		if tax > 0 {
			if err := e.vault.Payout(ctx, config.AdminWallet, tax); err != nil {
				return fmt.Errorf("%w, err=%v", ErrCurrencyTransfer, err)
			}
		}
		if result := tx.Model(&bid).Update("reclaimed", true); result.Error != nil {
			return fmt.Errorf("fail to mark bid reclaimed, err=%w", result.Error)
		}
		if result := tx.Model(&auction).Update("tax_collected", auction.TaxCollected+tax); result.Error != nil {
			return fmt.Errorf("fail to accumulate tax, err=%w", result.Error)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("[%s] %w", op, err)
	}

	e.logger.Info("Deposit reclaimed",
		slog.Uint64("auctionId", auctionID),
		slog.String("bidder", bidder),
		slog.Uint64("refund", refund))
	e.publish(
		Event{Type: EventTaxCollected, AuctionID: auctionID, Bidder: bidder, Amount: tax, Time: time.Now()},
		Event{Type: EventDepositReclaimed, AuctionID: auctionID, Bidder: bidder, Amount: refund, Time: time.Now()},
	)
	return refund, nil
}
