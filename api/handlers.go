package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"vickroy/adapters/chain"
	redisAdapter "vickroy/adapters/redis"
	"vickroy/engine"
	"vickroy/models"
)

// caller 從cookie或Authorization標頭取得並驗證能力憑證
func (impl *ServerImpl) caller(c *gin.Context) (*JWT, bool) {
	tokenString, err := c.Cookie("access_token")
	if err != nil || tokenString == "" {
		header := c.GetHeader("Authorization")
		tokenString = strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			tokenString = ""
		}
	}
	if tokenString == "" {
		return nil, false
	}
	token, err := ParseAndValidateJWT(tokenString, impl.config.Auth.PrivateKey)
	if err != nil {
		slog.Error("Fail to parse and validate JWT", slog.Any("error", err))
		return nil, false
	}
	return token, true
}

// statusOf 將引擎的sentinel錯誤對應到HTTP狀態碼
func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrAuctionNotFound), errors.Is(err, engine.ErrBidNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotAuthorized), errors.Is(err, engine.ErrBiddingClosed):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAlreadyBid),
		errors.Is(err, engine.ErrAlreadyDecoded),
		errors.Is(err, engine.ErrAuctionAlreadySettled),
		errors.Is(err, engine.ErrAlreadyReclaimed),
		errors.Is(err, engine.ErrNotSettled),
		errors.Is(err, engine.ErrNotReclaimable):
		return http.StatusConflict
	case errors.Is(err, engine.ErrTooEarly):
		return http.StatusTooEarly
	case errors.Is(err, engine.ErrNoValidBids):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidReserve),
		errors.Is(err, engine.ErrInvalidEndHeight),
		errors.Is(err, engine.ErrInvalidDepositBps),
		errors.Is(err, engine.ErrDepositTooLow),
		errors.Is(err, engine.ErrInvalidWallet):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrAssetTransfer), errors.Is(err, engine.ErrCurrencyTransfer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (impl *ServerImpl) abortWithError(c *gin.Context, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("Unexpected error", slog.String("op", op), slog.Any("error", err))
		c.JSON(status, gin.H{"message": "internal error"})
		return
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

func auctionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "auction not found"})
		return 0, false
	}
	return id, true
}

// withAuctionLock 在執行寫入操作前取得該拍賣的分散式鎖，
// 確保同一場拍賣的出價、解碼與結算跨實例序列化
func (impl *ServerImpl) withAuctionLock(c *gin.Context, op string, id uint64, fn func(ctx *gin.Context)) {
	lock := redisAdapter.NewAuctionLock(impl.redisClient, id)
	_, err := lock.Lock(c.Request.Context())
	if err != nil {
		impl.abortWithError(c, op, fmt.Errorf("[%s] Fail to acquire auction lock, err=%w", op, err))
		return
	}
	defer func() {
		if _, err := lock.Unlock(); err != nil {
			slog.Warn("Fail to release auction lock", slog.String("op", op), slog.Any("error", err))
		}
	}()
	fn(c)
}

// Health check
// (GET /healthz)
func (impl *ServerImpl) GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createAuctionRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	AssetContract string `json:"assetContract" binding:"required"`
	AssetTokenID  string `json:"assetTokenId" binding:"required"`
	ReservePrice  uint64 `json:"reservePrice"`
	EndHeight     uint64 `json:"endHeight"`
	DepositBps    uint32 `json:"depositBps"`
}

// Create a sealed-bid auction
// (POST /auction)
func (impl *ServerImpl) PostAuction(c *gin.Context) {
	const op = "PostAuction"
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	var request createAuctionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	// 清洗賣家提供的展示內容
	id, err := impl.engine.CreateAuction(c.Request.Context(), engine.AuctionInput{
		Seller:        token.Address,
		Title:         impl.htmlChecker.Sanitize(request.Title),
		Description:   impl.htmlChecker.Sanitize(request.Description),
		AssetContract: request.AssetContract,
		AssetTokenID:  request.AssetTokenID,
		Reserve:       request.ReservePrice,
		EndHeight:     request.EndHeight,
		DepositBps:    request.DepositBps,
	})
	if err != nil {
		impl.abortWithError(c, op, err)
		return
	}
	c.Header("Location", strconv.FormatUint(id, 10))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type auctionResponse struct {
	ID            uint64  `json:"id"`
	Seller        string  `json:"seller"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	AssetContract string  `json:"assetContract"`
	AssetTokenID  string  `json:"assetTokenId"`
	ReservePrice  uint64  `json:"reservePrice"`
	EndHeight     uint64  `json:"endHeight"`
	DepositBps    uint32  `json:"depositBps"`
	BidderCount   uint32  `json:"bidderCount"`
	Settled       bool    `json:"settled"`
	Winner        *string `json:"winner,omitempty"`
	WinningAmount *uint64 `json:"winningAmount,omitempty"`
	TaxCollected  uint64  `json:"taxCollected"`
}

func toAuctionResponse(auction models.Auction) auctionResponse {
	response := auctionResponse{
		ID:            auction.ID,
		Seller:        auction.SellerAddress,
		Title:         auction.Title,
		Description:   auction.Description,
		AssetContract: auction.AssetContract,
		AssetTokenID:  auction.AssetTokenID,
		ReservePrice:  auction.ReservePrice,
		EndHeight:     auction.EndHeight,
		DepositBps:    auction.DepositBps,
		BidderCount:   auction.BidderCount,
		Settled:       auction.Settled,
		TaxCollected:  auction.TaxCollected,
	}
	if auction.Settled {
		response.Winner = lo.ToPtr(auction.WinnerAddress)
		response.WinningAmount = lo.ToPtr(auction.WinningAmount)
	}
	return response
}

// Get auction details
// (GET /auction/:id)
func (impl *ServerImpl) GetAuction(c *gin.Context) {
	const op = "GetAuction"
	id, ok := auctionID(c)
	if !ok {
		return
	}
	auction, err := impl.engine.GetAuction(c.Request.Context(), id)
	if err != nil {
		impl.abortWithError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

type bidResponse struct {
	Bidder        string  `json:"bidder"`
	BidIndex      uint32  `json:"bidIndex"`
	Ciphertext    []byte  `json:"ciphertext"`
	Condition     []byte  `json:"condition"`
	Deposit       uint64  `json:"deposit"`
	Decoded       bool    `json:"decoded"`
	DecodedAmount *uint64 `json:"decodedAmount,omitempty"`
	Reclaimed     bool    `json:"reclaimed"`
}

// List bids in commitment order
// (GET /auction/:id/bids)
func (impl *ServerImpl) GetAuctionBids(c *gin.Context) {
	const op = "GetAuctionBids"
	id, ok := auctionID(c)
	if !ok {
		return
	}
	bids, err := impl.engine.ListBids(c.Request.Context(), id)
	if err != nil {
		impl.abortWithError(c, op, err)
		return
	}
	output := lo.Map(bids, func(bid models.Bid, _ int) bidResponse {
		response := bidResponse{
			Bidder:     bid.BidderAddress,
			BidIndex:   bid.BidIndex,
			Ciphertext: bid.Ciphertext,
			Condition:  bid.Condition,
			Deposit:    bid.Deposit,
			Decoded:    bid.Decoded,
			Reclaimed:  bid.Reclaimed,
		}
		// 出價金額在解碼前不對外可見
		if bid.Decoded {
			response.DecodedAmount = lo.ToPtr(bid.DecodedAmount)
		}
		return response
	})
	c.JSON(http.StatusOK, gin.H{"count": len(output), "bids": output})
}

type commitBidRequest struct {
	Ciphertext []byte `json:"ciphertext" binding:"required"`
	Condition  []byte `json:"condition" binding:"required"`
	Deposit    uint64 `json:"deposit"`
}

// Commit a sealed bid with deposit
// (POST /auction/:id/bids)
func (impl *ServerImpl) PostAuctionBids(c *gin.Context) {
	const op = "PostAuctionBids"
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	id, ok := auctionID(c)
	if !ok {
		return
	}
	var request commitBidRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	impl.withAuctionLock(c, op, id, func(c *gin.Context) {
		bidIndex, err := impl.engine.CommitBid(c.Request.Context(), id, token.Address, request.Ciphertext, request.Condition, request.Deposit)
		if err != nil {
			impl.abortWithError(c, op, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"bidIndex": bidIndex})
	})
}

type decodeBidRequest struct {
	Amount uint64 `json:"amount"`
}

// Record the decoded plaintext amount for a bid
// (POST /auction/:id/bids/:bidder/decode)
func (impl *ServerImpl) PostAuctionBidDecode(c *gin.Context) {
	const op = "PostAuctionBidDecode"
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	id, ok := auctionID(c)
	if !ok {
		return
	}
	bidder := c.Param("bidder")
	var request decodeBidRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	impl.withAuctionLock(c, op, id, func(c *gin.Context) {
		if err := impl.engine.DecodeBid(c.Request.Context(), token.Address, id, bidder, request.Amount); err != nil {
			impl.abortWithError(c, op, err)
			return
		}
		c.Status(http.StatusOK)
	})
}

// Settle an ended auction
// (POST /auction/:id/finalize)
func (impl *ServerImpl) PostAuctionFinalize(c *gin.Context) {
	const op = "PostAuctionFinalize"
	id, ok := auctionID(c)
	if !ok {
		return
	}
	impl.withAuctionLock(c, op, id, func(c *gin.Context) {
		result, err := impl.engine.Finalize(c.Request.Context(), id)
		if err != nil {
			impl.abortWithError(c, op, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"winner":       result.Winner,
			"amount":       result.WinningAmount,
			"tokenId":      result.TokenID,
			"taxCollected": result.TaxCollected,
		})
	})
}

// Reclaim the deposit of an undecoded bid after settlement
// (POST /auction/:id/reclaim)
func (impl *ServerImpl) PostAuctionReclaim(c *gin.Context) {
	const op = "PostAuctionReclaim"
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	id, ok := auctionID(c)
	if !ok {
		return
	}
	impl.withAuctionLock(c, op, id, func(c *gin.Context) {
		refund, err := impl.engine.ReclaimDeposit(c.Request.Context(), id, token.Address)
		if err != nil {
			impl.abortWithError(c, op, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"refund": refund})
	})
}

type updateWalletRequest struct {
	Wallet string `json:"wallet" binding:"required"`
}

// Update the platform payout wallet
// (PATCH /admin/wallet)
func (impl *ServerImpl) PatchAdminWallet(c *gin.Context) {
	const op = "PatchAdminWallet"
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	var request updateWalletRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := impl.engine.UpdateAdminWallet(c.Request.Context(), token.Address, request.Wallet); err != nil {
		impl.abortWithError(c, op, err)
		return
	}
	c.Status(http.StatusOK)
}

// Track auction settlement events
// (GET /auction/:id/events)
func (impl *ServerImpl) GetAuctionEvents(c *gin.Context) {
	const op = "GetAuctionEvents"
	id, ok := auctionID(c)
	if !ok {
		return
	}
	// 檢查拍賣是否存在
	if _, err := impl.engine.GetAuction(c.Request.Context(), id); err != nil {
		impl.abortWithError(c, op, err)
		return
	}
	// SSE請求合法，開始初始化串流
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	channelName := strconv.FormatUint(id, 10)
	ch, err := impl.sseManager.Subscribe(channelName)
	if err != nil {
		impl.abortWithError(c, op, fmt.Errorf("[%s] Fail to subscribe to auction events, err=%w", op, err))
		return
	}
	defer impl.sseManager.Unsubscribe(channelName, ch)
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, open := <-ch:
			if !open {
				return
			}
			c.SSEvent(string(event.Type), event)
			w.Flush()
		// 30秒沒有事件就發送一個空行，確保瀏覽器和Cloudflare不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}

type devnetAdvanceRequest struct {
	Blocks uint64 `json:"blocks" binding:"required"`
}

// Advance the devnet chain height
// (POST /devnet/advance)
func (impl *ServerImpl) PostDevnetAdvance(c *gin.Context) {
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	if !lo.Contains(impl.config.Chain.Admins, token.Address) {
		c.Status(http.StatusForbidden)
		return
	}
	var request devnetAdvanceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	height := impl.devnet.Advance(request.Blocks)
	c.JSON(http.StatusOK, gin.H{"height": height})
}

type devnetFundRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

// Fund a devnet address with native currency
// (POST /devnet/fund)
func (impl *ServerImpl) PostDevnetFund(c *gin.Context) {
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	if !lo.Contains(impl.config.Chain.Admins, token.Address) {
		c.Status(http.StatusForbidden)
		return
	}
	var request devnetFundRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	impl.devnet.Fund(request.Address, request.Amount)
	c.JSON(http.StatusOK, gin.H{"balance": impl.devnet.Balance(request.Address)})
}

type devnetAssetRequest struct {
	Contract string `json:"contract" binding:"required"`
	TokenID  string `json:"tokenId" binding:"required"`
	Owner    string `json:"owner" binding:"required"`
}

// Register a devnet asset under an owner
// (POST /devnet/asset)
func (impl *ServerImpl) PostDevnetAsset(c *gin.Context) {
	token, ok := impl.caller(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	if !lo.Contains(impl.config.Chain.Admins, token.Address) {
		c.Status(http.StatusForbidden)
		return
	}
	var request devnetAssetRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	impl.devnet.RegisterAsset(chain.AssetRef{Contract: request.Contract, TokenID: request.TokenID}, request.Owner)
	c.Status(http.StatusCreated)
}
