package engine_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vickroy/adapters/chain"
	"vickroy/engine"
	"vickroy/models"
)

const (
	sellerAddr = "0xseller"
	adminAddr  = "0xadmin"
	platform   = "0xplatform"
)

// capturePublisher 收集引擎發布的事件供測試檢查
type capturePublisher struct {
	mu     sync.Mutex
	events []engine.Event
}

func (p *capturePublisher) Publish(event engine.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// lastOf 回傳最後一筆指定類型的事件
func (p *capturePublisher) lastOf(eventType engine.EventType) (engine.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType {
			return p.events[i], true
		}
	}
	return engine.Event{}, false
}

func (p *capturePublisher) typesOf() []engine.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]engine.EventType, len(p.events))
	for i, event := range p.events {
		types[i] = event.Type
	}
	return types
}

type fixture struct {
	engine *engine.Engine
	dev    *chain.Devnet
	pub    *capturePublisher
	db     *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// 記憶體資料庫只能有一條連線，否則每條連線各自是一個空資料庫
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	dev := chain.NewDevnet(100)
	pub := &capturePublisher{}
	eng, err := engine.New(engine.Config{
		DB:      db,
		Custody: dev,
		Vault:   dev,
		Minter:  dev,
		Heights: dev,
		Gate:    engine.NewStaticGate([]string{sellerAddr}, []string{adminAddr}),
	}, engine.WithPublisher(pub))
	require.NoError(t, err)
	require.NoError(t, eng.Bootstrap(platform, 2000))

	return &fixture{engine: eng, dev: dev, pub: pub, db: db}
}

// createAuction 登記一個拍品並建立拍賣，回傳拍賣 ID 與資產參照
func (f *fixture) createAuction(t *testing.T, reserve, endHeight uint64, depositBps uint32) (uint64, chain.AssetRef) {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Auction{}).Count(&count).Error)
	ref := chain.AssetRef{Contract: "0xnft", TokenID: fmt.Sprintf("%d", count+1)}
	f.dev.RegisterAsset(ref, sellerAddr)
	id, err := f.engine.CreateAuction(context.Background(), engine.AuctionInput{
		Seller:        sellerAddr,
		Title:         "genesis piece",
		Description:   "sealed bid test auction",
		AssetContract: ref.Contract,
		AssetTokenID:  ref.TokenID,
		Reserve:       reserve,
		EndHeight:     endHeight,
		DepositBps:    depositBps,
	})
	require.NoError(t, err)
	return id, ref
}

// commit 出資並投標，密文內容對核心不透明，測試用固定位元組即可
func (f *fixture) commit(t *testing.T, auctionID uint64, bidder string, deposit uint64) uint32 {
	t.Helper()
	f.dev.Fund(bidder, deposit)
	index, err := f.engine.CommitBid(context.Background(), auctionID, bidder,
		[]byte("ciphertext-"+bidder), []byte("cond-endheight"), deposit)
	require.NoError(t, err)
	return index
}
