package api

import (
	"crypto/ed25519"
	"time"
)

type ServerConfig struct {
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
	Chain ChainConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	StreamKeys RedisStreamKeys
}

type RedisStreamKeys struct {
	Events string
}

type AuthConfig struct {
	PrivateKey     ed25519.PrivateKey
	Issuer         string
	Audience       string
	ExpireDuration time.Duration
}

// ChainConfig 描述結算平台的初始狀態與授權名單
// Sellers/Admins 是允許建立拍賣與執行管理操作的地址清單
type ChainConfig struct {
	AdminWallet string
	TaxBps      uint32
	Sellers     []string
	Admins      []string
	StartHeight uint64
}
