package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TokenConfig is one registry entry as written in the config file.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	RPCRateLimit int
	Owner        string
	PrivateKey   string

	PositionFinder  string
	PositionManager string
	LiquidityHelper string
	StateView       string
	Permit2         string
	Hook            string

	Tokens []TokenConfig
	Pair   []string

	PageSize         uint64
	BatchSize        int
	BatchConcurrency int
	MinStaking       string
	MinHoldings      string
	PollInterval     time.Duration
	RefreshDelay     time.Duration
	Deadline         time.Duration
	Slippage         float64
	MaxRetries       int
	RetryBackoff     time.Duration

	FromBlock         uint64
	BlockBatchSize    uint64
	Checkpoint        string
	CheckpointEnabled bool
	TransferLog       string

	Out      string
	PGDSN    string
	Interval time.Duration
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSITIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc-rate-limit", 0)
	v.SetDefault("permit2", "0x000000000022D473030F116dDEE9F6B43aC78BA3")
	v.SetDefault("pair", "B0x,0xBTC")
	v.SetDefault("page-size", uint64(1000))
	v.SetDefault("batch-size", 500)
	v.SetDefault("batch-concurrency", 1)
	v.SetDefault("min-staking", "0")
	v.SetDefault("min-holdings", "0")
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("refresh-delay", 2*time.Second)
	v.SetDefault("deadline", 160*time.Second)
	v.SetDefault("slippage", 1.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("block-batch-size", uint64(2000))
	v.SetDefault("checkpoint", "./data/owners.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("interval", time.Minute)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var tokens []TokenConfig
	if v.IsSet("tokens") {
		if err := v.UnmarshalKey("tokens", &tokens); err != nil {
			return Config{}, fmt.Errorf("parse tokens: %w", err)
		}
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		RPCRateLimit: v.GetInt("rpc-rate-limit"),
		Owner:        v.GetString("owner"),
		PrivateKey:   v.GetString("private-key"),

		PositionFinder:  v.GetString("position-finder"),
		PositionManager: v.GetString("position-manager"),
		LiquidityHelper: v.GetString("liquidity-helper"),
		StateView:       v.GetString("state-view"),
		Permit2:         v.GetString("permit2"),
		Hook:            v.GetString("hook"),

		Tokens: tokens,
		Pair:   getStringSlice(v, "pair"),

		PageSize:         v.GetUint64("page-size"),
		BatchSize:        v.GetInt("batch-size"),
		BatchConcurrency: v.GetInt("batch-concurrency"),
		MinStaking:       v.GetString("min-staking"),
		MinHoldings:      v.GetString("min-holdings"),
		PollInterval:     v.GetDuration("poll-interval"),
		RefreshDelay:     v.GetDuration("refresh-delay"),
		Deadline:         v.GetDuration("deadline"),
		Slippage:         v.GetFloat64("slippage"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),

		FromBlock:         v.GetUint64("from-block"),
		BlockBatchSize:    v.GetUint64("block-batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		TransferLog:       v.GetString("transfer-log"),

		Out:      v.GetString("out"),
		PGDSN:    v.GetString("pg-dsn"),
		Interval: v.GetDuration("interval"),
		LogLevel: v.GetString("log-level"),
	}

	if len(cfg.Pair) != 2 {
		return Config{}, fmt.Errorf("pair needs exactly two symbols, got %v", cfg.Pair)
	}
	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return splitAndClean(strings.Join(typed, ","))
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
