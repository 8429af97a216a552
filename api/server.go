package api

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"vickroy/adapters/chain"
	redisAdapter "vickroy/adapters/redis"
	"vickroy/adapters/sse"
	"vickroy/engine"
)

// streamPublisher 把引擎事件包上頻道名稱後送進 Redis Stream
type streamPublisher struct {
	writer redisAdapter.IStreamWriter[sse.PublishRequest[engine.Event]]
}

func (p *streamPublisher) Publish(event engine.Event) error {
	return p.writer.Publish(sse.PublishRequest[engine.Event]{
		Channel: event.Channel(),
		Message: event,
	})
}

type ServerImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
	engine      *engine.Engine
	devnet      *chain.Devnet
	events      redisAdapter.IStreamWriter[sse.PublishRequest[engine.Event]]
	sseManager  sse.IConnectionManager[engine.Event]
	htmlChecker *bluemonday.Policy

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化事件寫入端
	events, err := redisAdapter.NewStreamWriter[sse.PublishRequest[engine.Event]](redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create stream writer, err=%w", op, err)
	}

	// 初始化鏈上能力（開發網內建實現）與結算引擎
	devnet := chain.NewDevnet(config.Chain.StartHeight)
	eng, err := engine.New(engine.Config{
		DB:      db,
		Custody: devnet,
		Vault:   devnet,
		Minter:  devnet,
		Heights: devnet,
		Gate:    engine.NewStaticGate(config.Chain.Sellers, config.Chain.Admins),
	}, engine.WithPublisher(&streamPublisher{writer: events}))
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create engine, err=%w", op, err)
	}
	if err := eng.Bootstrap(config.Chain.AdminWallet, config.Chain.TaxBps); err != nil {
		return nil, fmt.Errorf("[%s] Fail to bootstrap engine, err=%w", op, err)
	}

	// 初始化SSE管理器，追蹤 stream 上的事件後廣播給本地訂閱者
	reader, err := redisAdapter.NewStreamReader[sse.PublishRequest[engine.Event]](redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create stream reader, err=%w", op, err)
	}
	sseManager := sse.NewConnectionManager[engine.Event](
		sse.WithManagerLogger[engine.Event](slog.Default()),
		sse.WithManagerSource[engine.Event](reader),
	)

	return &ServerImpl{
		db:          db,
		redisClient: redisClient,
		engine:      eng,
		devnet:      devnet,
		events:      events,
		sseManager:  sseManager,
		htmlChecker: bluemonday.UGCPolicy(),
		config:      config,
	}, nil
}

func (impl *ServerImpl) Start() {
	// 啟動事件寫入端
	impl.events.Start()
	// 啟動sse connection manager（由它啟動並接管stream reader）
	impl.sseManager.Start()
}

func (impl *ServerImpl) Close() {
	// 關閉sse connection manager
	impl.sseManager.Done()
	// 關閉事件寫入端
	impl.events.Close()
	// 關閉Redis連線
	impl.redisClient.Close()
}

// RegisterRoutes 掛載全部HTTP路由
func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", impl.GetHealthz)

	router.POST("/auction", impl.PostAuction)
	router.GET("/auction/:id", impl.GetAuction)
	router.GET("/auction/:id/bids", impl.GetAuctionBids)
	router.POST("/auction/:id/bids", impl.PostAuctionBids)
	router.POST("/auction/:id/bids/:bidder/decode", impl.PostAuctionBidDecode)
	router.POST("/auction/:id/finalize", impl.PostAuctionFinalize)
	router.POST("/auction/:id/reclaim", impl.PostAuctionReclaim)
	router.GET("/auction/:id/events", impl.GetAuctionEvents)

	router.PATCH("/admin/wallet", impl.PatchAdminWallet)

	// 開發網輔助操作，僅供本地模式推進鏈狀態
	router.POST("/devnet/advance", impl.PostDevnetAdvance)
	router.POST("/devnet/fund", impl.PostDevnetFund)
	router.POST("/devnet/asset", impl.PostDevnetAsset)
}
