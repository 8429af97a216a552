package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"vickroy/adapters/chain"
	"vickroy/models"
)

const (
	// MinDepositBps 與 MaxDepositBps 限制押金比例（基點）的允許範圍，即 10%–50%
	MinDepositBps uint32 = 1000
	MaxDepositBps uint32 = 5000
	// DefaultTaxBps 是未設定時的落標稅率（基點），即 20%
	DefaultTaxBps uint32 = 2000

	bpsDenominator uint64 = 10000
)

// Config 集中引擎的必要相依
type Config struct {
	DB      *gorm.DB
	Custody chain.IAssetCustody
	Vault   chain.IVault
	Minter  chain.IProofMinter
	Heights chain.IHeightSource
	Gate    IGate
}

type engineOptions struct {
	logger    *slog.Logger
	publisher IPublisher
}

type Option func(*engineOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithPublisher 設置事件發布器
func WithPublisher(publisher IPublisher) Option {
	return func(o *engineOptions) {
		o.publisher = publisher
	}
}

// Engine 是密封出價拍賣的結算狀態機
// 所有狀態變更操作都是全有或全無；跨實例的逐拍賣序列化由呼叫端
// （api 層的分散式鎖）提供
type Engine struct {
	db        *gorm.DB
	custody   chain.IAssetCustody
	vault     chain.IVault
	minter    chain.IProofMinter
	heights   chain.IHeightSource
	gate      IGate
	publisher IPublisher
	logger    *slog.Logger
}

func New(config Config, opts ...Option) (*Engine, error) {
	if config.DB == nil {
		return nil, errors.New("db cannot be nil")
	}
	if config.Custody == nil || config.Vault == nil || config.Minter == nil {
		return nil, errors.New("chain capabilities cannot be nil")
	}
	if config.Heights == nil {
		return nil, errors.New("height source cannot be nil")
	}
	if config.Gate == nil {
		return nil, errors.New("gate cannot be nil")
	}

	// 默認選項
	options := engineOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Engine{
		db:        config.DB,
		custody:   config.Custody,
		vault:     config.Vault,
		minter:    config.Minter,
		heights:   config.Heights,
		gate:      config.Gate,
		publisher: options.publisher,
		logger:    options.logger.With(slog.String("caller", "Engine")),
	}, nil
}

// Bootstrap 建立資料表並確保平台設定列存在
// taxBps 為 0 時使用預設稅率
func (e *Engine) Bootstrap(adminWallet string, taxBps uint32) error {
	const op = "Bootstrap"
	if adminWallet == "" {
		return fmt.Errorf("[%s] %w", op, ErrInvalidWallet)
	}
	if taxBps == 0 {
		taxBps = DefaultTaxBps
	}
	if err := e.db.AutoMigrate(
		&models.Auction{},
		&models.Bid{},
		&models.WinnerToken{},
		&models.PlatformConfig{},
	); err != nil {
		return fmt.Errorf("[%s] Fail to migrate models, err=%w", op, err)
	}
	config := models.PlatformConfig{ID: 1, AdminWallet: adminWallet, TaxBps: taxBps}
	if result := e.db.FirstOrCreate(&config, models.PlatformConfig{ID: 1}); result.Error != nil {
		return fmt.Errorf("[%s] Fail to ensure platform config, err=%w", op, result.Error)
	}
	return nil
}

// platformConfig 讀取唯一的平台設定列
func platformConfig(tx *gorm.DB) (models.PlatformConfig, error) {
	config := models.PlatformConfig{ID: 1}
	if result := tx.First(&config); result.Error != nil {
		return config, fmt.Errorf("fail to load platform config, err=%w", result.Error)
	}
	return config, nil
}

// currentHeight 讀取鏈高度，這是核心唯一的時間來源
func (e *Engine) currentHeight(ctx context.Context) (uint64, error) {
	height, err := e.heights.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("fail to read chain height, err=%w", err)
	}
	return height, nil
}

// publish 在交易提交後發布事件，失敗僅記錄日誌
func (e *Engine) publish(events ...Event) {
	if e.publisher == nil {
		return
	}
	for _, event := range events {
		if err := e.publisher.Publish(event); err != nil {
			e.logger.Error("Fail to publish event",
				slog.String("type", string(event.Type)),
				slog.Uint64("auctionId", event.AuctionID),
				slog.Any("error", err))
		}
	}
}

// bpsShare 以基點計算比例金額，向下取整。
// 先除後乘再補上餘數部分，巨額金額直接相乘會讓 uint64 溢位
func bpsShare(amount uint64, bps uint32) uint64 {
	quotient, remainder := amount/bpsDenominator, amount%bpsDenominator
	return quotient*uint64(bps) + remainder*uint64(bps)/bpsDenominator
}

// taxOf 以基點計算落標稅
func taxOf(deposit uint64, taxBps uint32) uint64 {
	return bpsShare(deposit, taxBps)
}

// minDepositOf 計算投標所需的最低押金
func minDepositOf(reserve uint64, depositBps uint32) uint64 {
	return bpsShare(reserve, depositBps)
}
