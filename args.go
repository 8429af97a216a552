package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vickroy/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")

	// auth config
	pflag.String("auth-private-key", "", "base64 encoded ed25519 seed")
	pflag.String("auth-issuer", "vickroy", "")
	pflag.String("auth-audience", "vickroy", "")
	pflag.Duration("auth-expire-duration", 3*time.Hour, "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")

	// redis stream keys
	pflag.String("redis-stream-key-for-events", "vickroy-settlement-events", "")

	// chain config
	pflag.String("chain-admin-wallet", "", "")
	pflag.Uint32("chain-tax-bps", 0, "0 means platform default")
	pflag.StringSlice("chain-sellers", nil, "addresses allowed to create auctions")
	pflag.StringSlice("chain-admins", nil, "addresses allowed to decode bids and manage the platform")
	pflag.Uint64("chain-start-height", 1, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("VICKROY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// 私鑰以base64編碼的ed25519種子提供
	var privateKey ed25519.PrivateKey
	if seed, err := base64.StdEncoding.DecodeString(viper.GetString("auth-private-key")); err == nil && len(seed) == ed25519.SeedSize {
		privateKey = ed25519.NewKeyFromSeed(seed)
	}

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			Auth: api.AuthConfig{
				PrivateKey:     privateKey,
				Issuer:         viper.GetString("auth-issuer"),
				Audience:       viper.GetString("auth-audience"),
				ExpireDuration: viper.GetDuration("auth-expire-duration"),
			},
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:     viper.GetString("redis-addr"),
				Password: viper.GetString("redis-password"),
				DB:       viper.GetInt("redis-db"),
				StreamKeys: api.RedisStreamKeys{
					Events: viper.GetString("redis-stream-key-for-events"),
				},
			},
			Chain: api.ChainConfig{
				AdminWallet: viper.GetString("chain-admin-wallet"),
				TaxBps:      viper.GetUint32("chain-tax-bps"),
				Sellers:     viper.GetStringSlice("chain-sellers"),
				Admins:      viper.GetStringSlice("chain-admins"),
				StartHeight: viper.GetUint64("chain-start-height"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	return args.ServerURL != "" &&
		args.ServerConfig.Auth.PrivateKey != nil &&
		args.ServerConfig.Chain.AdminWallet != "" &&
		args.ServerConfig.Redis.StreamKeys.Events != ""
}
