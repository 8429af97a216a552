package api

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"vickroy/adapters/chain"
	redisAdapter "vickroy/adapters/redis"
	"vickroy/adapters/sse"
	"vickroy/engine"
)

const (
	sellerAddr     = "0xseller"
	adminAddr      = "0xadmin"
	platformWallet = "0xplatform"

	testStreamKey = "vickroy-test-events"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	impl   *ServerImpl
	router *gin.Engine
	dev    *chain.Devnet
	client *redis.Client
	key    ed25519.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	// in-memory sqlite：限制為單一連線，避免每個pool連線各自擁有一個空資料庫
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	dev := chain.NewDevnet(100)

	writer, err := redisAdapter.NewStreamWriter[sse.PublishRequest[engine.Event]](client, testStreamKey)
	require.NoError(t, err)

	eng, err := engine.New(engine.Config{
		DB:      db,
		Custody: dev,
		Vault:   dev,
		Minter:  dev,
		Heights: dev,
		Gate:    engine.NewStaticGate([]string{sellerAddr}, []string{adminAddr}),
	}, engine.WithPublisher(&streamPublisher{writer: writer}))
	require.NoError(t, err)
	require.NoError(t, eng.Bootstrap(platformWallet, 2000))

	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	impl := &ServerImpl{
		db:          db,
		redisClient: client,
		engine:      eng,
		devnet:      dev,
		events:      writer,
		sseManager:  sse.NewConnectionManager[engine.Event](),
		htmlChecker: bluemonday.UGCPolicy(),
		config: ServerConfig{
			Auth: AuthConfig{
				PrivateKey:     key,
				Issuer:         "vickroy",
				Audience:       "vickroy",
				ExpireDuration: time.Hour,
			},
			Redis: RedisConfig{
				Addr:       mr.Addr(),
				StreamKeys: RedisStreamKeys{Events: testStreamKey},
			},
			Chain: ChainConfig{
				AdminWallet: platformWallet,
				TaxBps:      2000,
				Sellers:     []string{sellerAddr},
				Admins:      []string{adminAddr},
				StartHeight: 100,
			},
		},
	}
	impl.Start()
	t.Cleanup(impl.Close)

	router := gin.New()
	impl.RegisterRoutes(router)

	return &testServer{
		impl:   impl,
		router: router,
		dev:    dev,
		client: client,
		key:    key,
	}
}

// token 簽發指定地址的能力憑證
func (ts *testServer) token(t *testing.T, address string) string {
	t.Helper()
	token := jwt.NewWithClaims(&jwt.SigningMethodEd25519{}, JWT{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "vickroy",
			Subject:   address,
			ID:        uuid.NewString(),
			Audience:  []string{"vickroy"},
		},
	})
	signed, err := token.SignedString(ts.key)
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	request := httptest.NewRequest(method, path, reader)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	ts.router.ServeHTTP(recorder, request)
	return recorder
}

// createAuction 註冊一件拍品並以賣家身份建立拍賣，回傳拍賣ID
func (ts *testServer) createAuction(t *testing.T, reserve, endHeight uint64) uint64 {
	t.Helper()
	tokenID := strconv.Itoa(int(time.Now().UnixNano()))
	ts.dev.RegisterAsset(chain.AssetRef{Contract: "0xnft", TokenID: tokenID}, sellerAddr)
	recorder := ts.do(t, "POST", "/auction", ts.token(t, sellerAddr), gin.H{
		"title":         "Genesis plot",
		"description":   "corner parcel",
		"assetContract": "0xnft",
		"assetTokenId":  tokenID,
		"reservePrice":  reserve,
		"endHeight":     endHeight,
		"depositBps":    1000,
	})
	require.Equal(t, 201, recorder.Code)
	var response struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response.ID
}

// commitBid 出資並提交一筆密封出價
func (ts *testServer) commitBid(t *testing.T, auctionID uint64, bidder string, deposit uint64) {
	t.Helper()
	ts.dev.Fund(bidder, deposit*10)
	recorder := ts.do(t, "POST", "/auction/"+strconv.FormatUint(auctionID, 10)+"/bids", ts.token(t, bidder), gin.H{
		"ciphertext": []byte("ciphertext-" + bidder),
		"condition":  []byte("after-end-height"),
		"deposit":    deposit,
	})
	require.Equal(t, 201, recorder.Code)
}
