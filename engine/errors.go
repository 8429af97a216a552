package engine

import "errors"

// 錯誤分類依照檢查順序排列：授權錯誤與狀態錯誤在任何狀態變更前被拒絕，
// 驗證錯誤次之，整合錯誤（鏈上轉移失敗）則會使整筆操作回滾
var (
	// ErrNotAuthorized 表示呼叫者缺少所需的角色能力
	ErrNotAuthorized = errors.New("caller lacks required capability")

	// ErrAuctionNotFound 表示拍賣不存在
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrAuctionAlreadySettled 表示拍賣已結算，不可重複操作
	ErrAuctionAlreadySettled = errors.New("auction already settled")
	// ErrBiddingClosed 表示已達結束高度，投標視窗關閉
	ErrBiddingClosed = errors.New("bidding window is closed")
	// ErrTooEarly 表示尚未達結束高度，無法結算
	ErrTooEarly = errors.New("auction has not reached its end height")

	// ErrInvalidReserve 表示底價必須為正數
	ErrInvalidReserve = errors.New("reserve price must be positive")
	// ErrInvalidEndHeight 表示結束高度必須在未來
	ErrInvalidEndHeight = errors.New("end height must be in the future")
	// ErrInvalidDepositBps 表示押金比例超出允許範圍
	ErrInvalidDepositBps = errors.New("deposit percentage out of allowed range")
	// ErrAlreadyBid 表示同一地址在同一拍賣至多投標一次
	ErrAlreadyBid = errors.New("bidder has already committed a bid")
	// ErrDepositTooLow 表示押金低於底價換算的最低額
	ErrDepositTooLow = errors.New("deposit below required minimum")
	// ErrBidNotFound 表示指定的投標不存在
	ErrBidNotFound = errors.New("bid not found")
	// ErrAlreadyDecoded 表示該投標已被解碼，解碼結果只能寫入一次
	ErrAlreadyDecoded = errors.New("bid already decoded")
	// ErrNoValidBids 表示沒有任何已解碼出價達到底價
	ErrNoValidBids = errors.New("no decoded bid meets the reserve price")
	// ErrNotSettled 表示拍賣尚未結算，押金還不能領回
	ErrNotSettled = errors.New("auction is not settled yet")
	// ErrNotReclaimable 表示該押金不符合領回條件（已在結算時退還）
	ErrNotReclaimable = errors.New("deposit is not reclaimable")
	// ErrAlreadyReclaimed 表示該押金已領回
	ErrAlreadyReclaimed = errors.New("deposit already reclaimed")
	// ErrInvalidWallet 表示管理錢包地址不可為空
	ErrInvalidWallet = errors.New("wallet address cannot be empty")

	// ErrAssetTransfer 表示鏈上資產轉移失敗，整筆操作已回滾
	ErrAssetTransfer = errors.New("asset transfer failed")
	// ErrCurrencyTransfer 表示原生貨幣收付失敗，整筆操作已回滾
	ErrCurrencyTransfer = errors.New("currency transfer failed")
)
