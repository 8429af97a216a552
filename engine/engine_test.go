package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vickroy/adapters/chain"
	"vickroy/engine"
)

func TestCreateAuction(t *testing.T) {
	ctx := context.Background()

	t.Run("建立成功後拍品進入託管", func(t *testing.T) {
		f := newFixture(t)
		id, ref := f.createAuction(t, 100, 200, 1000)
		assert.Equal(t, uint64(1), id)
		assert.Equal(t, "__custody__", f.dev.AssetOwner(ref))

		auction, err := f.engine.GetAuction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, sellerAddr, auction.SellerAddress)
		assert.Equal(t, uint64(100), auction.ReservePrice)
		assert.Equal(t, uint64(200), auction.EndHeight)
		assert.False(t, auction.Settled)
		assert.Zero(t, auction.BidderCount)
		assert.Contains(t, f.pub.typesOf(), engine.EventAuctionCreated)
	})

	t.Run("拍賣ID依序遞增", func(t *testing.T) {
		f := newFixture(t)
		first, _ := f.createAuction(t, 100, 200, 1000)
		second, _ := f.createAuction(t, 100, 200, 1000)
		assert.Equal(t, first+1, second)
	})

	t.Run("非賣家不可建立拍賣", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.CreateAuction(ctx, engine.AuctionInput{
			Seller:    "0xstranger",
			Reserve:   100,
			EndHeight: 200,
		})
		assert.ErrorIs(t, err, engine.ErrNotAuthorized)
	})

	t.Run("參數驗證", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name      string
			reserve   uint64
			endHeight uint64
			bps       uint32
			want      error
		}{
			{"底價為零", 0, 200, 1000, engine.ErrInvalidReserve},
			{"結束高度等於目前高度", 100, 100, 1000, engine.ErrInvalidEndHeight},
			{"結束高度在過去", 100, 50, 1000, engine.ErrInvalidEndHeight},
			{"押金比例過低", 100, 200, 500, engine.ErrInvalidDepositBps},
			{"押金比例過高", 100, 200, 6000, engine.ErrInvalidDepositBps},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.engine.CreateAuction(ctx, engine.AuctionInput{
					Seller:    sellerAddr,
					Reserve:   tt.reserve,
					EndHeight: tt.endHeight,
					DepositBps: tt.bps,
				})
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("拍品轉移失敗時整筆回滾", func(t *testing.T) {
		f := newFixture(t)
		// 資產未登記給賣家，託管拉取會失敗
		_, err := f.engine.CreateAuction(ctx, engine.AuctionInput{
			Seller:        sellerAddr,
			AssetContract: "0xnft",
			AssetTokenID:  "999",
			Reserve:       100,
			EndHeight:     200,
			DepositBps:    1000,
		})
		assert.ErrorIs(t, err, engine.ErrAssetTransfer)

		_, err = f.engine.GetAuction(ctx, 1)
		assert.ErrorIs(t, err, engine.ErrAuctionNotFound)
	})

	t.Run("查詢不存在的拍賣", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.GetAuction(ctx, 42)
		assert.ErrorIs(t, err, engine.ErrAuctionNotFound)
	})
}

func TestCommitBid(t *testing.T) {
	ctx := context.Background()

	t.Run("投標成功後押金入庫且序號遞增", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)

		index1 := f.commit(t, id, "0xbidder1", 100)
		index2 := f.commit(t, id, "0xbidder2", 120)
		assert.Equal(t, uint32(0), index1)
		assert.Equal(t, uint32(1), index2)
		assert.Equal(t, uint64(220), f.dev.VaultBalance())

		auction, err := f.engine.GetAuction(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), auction.BidderCount)

		bids, err := f.engine.ListBids(ctx, id)
		require.NoError(t, err)
		require.Len(t, bids, 2)
		assert.Equal(t, "0xbidder1", bids[0].BidderAddress)
		assert.Equal(t, []byte("ciphertext-0xbidder1"), bids[0].Ciphertext)
		assert.False(t, bids[0].Decoded)
	})

	t.Run("投標事件攜帶密文與揭示條件", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)
		index := f.commit(t, id, "0xbidder1", 100)

		// 時間鎖預言機只靠事件得知待解碼的出價，欄位缺一不可
		event, ok := f.pub.lastOf(engine.EventBidCommitted)
		require.True(t, ok)
		assert.Equal(t, id, event.AuctionID)
		assert.Equal(t, index, event.BidIndex)
		assert.Equal(t, "0xbidder1", event.Bidder)
		assert.Equal(t, []byte("ciphertext-0xbidder1"), event.Ciphertext)
		assert.Equal(t, []byte("cond-endheight"), event.Condition)
		assert.Equal(t, uint64(100), event.Deposit)
	})

	t.Run("同一地址重複投標", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)
		f.commit(t, id, "0xbidder1", 100)

		f.dev.Fund("0xbidder1", 100)
		_, err := f.engine.CommitBid(ctx, id, "0xbidder1", []byte("c2"), []byte("r2"), 100)
		assert.ErrorIs(t, err, engine.ErrAlreadyBid)
	})

	t.Run("押金低於最低額", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name    string
			reserve uint64
			bps     uint32
			deposit uint64
			wantErr bool
		}{
			{"剛好達到最低額", 1000, 1000, 100, false},
			{"低於最低額一單位", 1000, 1000, 99, true},
			{"半數押金比例", 1000, 5000, 499, true},
			{"超過最低額", 1000, 2000, 500, false},
			{"巨額底價低於最低額", 1 << 60, 5000, 1 << 58, true},
			{"巨額底價剛好達到最低額", 1 << 60, 5000, 1 << 59, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				id, _ := f.createAuction(t, tt.reserve, 200, tt.bps)
				bidder := "0xbidder-" + tt.name
				f.dev.Fund(bidder, tt.deposit)
				_, err := f.engine.CommitBid(ctx, id, bidder, []byte("c"), []byte("r"), tt.deposit)
				if tt.wantErr {
					assert.ErrorIs(t, err, engine.ErrDepositTooLow)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("投標視窗關閉後不可投標", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)
		f.dev.Advance(100) // height == endHeight

		f.dev.Fund("0xbidder1", 100)
		_, err := f.engine.CommitBid(ctx, id, "0xbidder1", []byte("c"), []byte("r"), 100)
		assert.ErrorIs(t, err, engine.ErrBiddingClosed)
	})

	t.Run("不存在的拍賣", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.CommitBid(ctx, 42, "0xbidder1", []byte("c"), []byte("r"), 100)
		assert.ErrorIs(t, err, engine.ErrAuctionNotFound)
	})

	t.Run("餘額不足時投標回滾", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)

		// 沒有資金，金庫託管失敗，投標與人數都不應留下痕跡
		_, err := f.engine.CommitBid(ctx, id, "0xbroke", []byte("c"), []byte("r"), 100)
		assert.ErrorIs(t, err, engine.ErrCurrencyTransfer)

		auction, err := f.engine.GetAuction(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, auction.BidderCount)
		bids, err := f.engine.ListBids(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, bids)
	})
}

func TestDecodeBid(t *testing.T) {
	ctx := context.Background()

	t.Run("解碼寫入一次並可讀回", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)
		f.commit(t, id, "0xbidder1", 100)

		require.NoError(t, f.engine.DecodeBid(ctx, adminAddr, id, "0xbidder1", 150))

		bids, err := f.engine.ListBids(ctx, id)
		require.NoError(t, err)
		require.Len(t, bids, 1)
		assert.True(t, bids[0].Decoded)
		assert.Equal(t, uint64(150), bids[0].DecodedAmount)
		assert.Contains(t, f.pub.typesOf(), engine.EventBidRevealed)

		// 同一投標不可重複解碼
		err = f.engine.DecodeBid(ctx, adminAddr, id, "0xbidder1", 175)
		assert.ErrorIs(t, err, engine.ErrAlreadyDecoded)
		bids, err = f.engine.ListBids(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), bids[0].DecodedAmount)
	})

	t.Run("非管理者不可解碼", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)
		f.commit(t, id, "0xbidder1", 100)

		err := f.engine.DecodeBid(ctx, "0xbidder1", id, "0xbidder1", 150)
		assert.ErrorIs(t, err, engine.ErrNotAuthorized)
	})

	t.Run("不存在的投標", func(t *testing.T) {
		f := newFixture(t)
		id, _ := f.createAuction(t, 100, 200, 1000)
		err := f.engine.DecodeBid(ctx, adminAddr, id, "0xghost", 150)
		assert.ErrorIs(t, err, engine.ErrBidNotFound)
	})
}

func TestStaticGate(t *testing.T) {
	gate := engine.NewStaticGate([]string{"0xa"}, []string{"0xa", "0xb"})
	ctx := context.Background()

	assert.True(t, gate.HasRole(ctx, "0xa", engine.RoleSeller))
	assert.True(t, gate.HasRole(ctx, "0xa", engine.RoleAdmin))
	assert.False(t, gate.HasRole(ctx, "0xb", engine.RoleSeller))
	assert.True(t, gate.HasRole(ctx, "0xb", engine.RoleAdmin))
	assert.False(t, gate.HasRole(ctx, "0xc", engine.RoleAdmin))
}

func TestDevnetSatisfiesCapabilities(t *testing.T) {
	var (
		_ chain.IAssetCustody = (*chain.Devnet)(nil)
		_ chain.IVault        = (*chain.Devnet)(nil)
		_ chain.IProofMinter  = (*chain.Devnet)(nil)
		_ chain.IHeightSource = (*chain.Devnet)(nil)
	)
}
