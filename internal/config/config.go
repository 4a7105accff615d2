package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/olyamironova/deferswap/internal/domain"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr  string        `mapstructure:"http_addr"`
	GRPCAddr  string        `mapstructure:"grpc_addr"`
	RateLimit time.Duration `mapstructure:"rate_limit"`

	Log    LogConfig     `mapstructure:"log"`
	Store  StoreConfig   `mapstructure:"store"`
	Redis  RedisConfig   `mapstructure:"redis"`
	Notify NotifyConfig  `mapstructure:"notify"`
	Ledger LedgerConfig  `mapstructure:"ledger"`
	Bank   BankConfig    `mapstructure:"bank"`
	Tokens []TokenConfig `mapstructure:"tokens"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // memory | postgres | pebble
	PostgresDSN string `mapstructure:"postgres_dsn"`
	PebblePath  string `mapstructure:"pebble_path"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Channel  string        `mapstructure:"channel"`
}

type NotifyConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type LedgerConfig struct {
	Admin       string `mapstructure:"admin"`
	Address     string `mapstructure:"address"`
	FeeRateBps  int64  `mapstructure:"fee_rate_bps"`
	FeeSink     string `mapstructure:"fee_sink"`
	HookEnabled bool   `mapstructure:"hook_enabled"`
}

type BankConfig struct {
	Faucet bool `mapstructure:"faucet"`
}

type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
	Contract string `mapstructure:"contract"` // empty for the native unit
}

func (t TokenConfig) Token() domain.Token {
	tok := domain.Token{Symbol: t.Symbol, Decimals: t.Decimals}
	if t.Contract != "" {
		tok.Contract = common.HexToAddress(t.Contract)
	}
	return tok
}

func (l LedgerConfig) AdminAddress() common.Address   { return common.HexToAddress(l.Admin) }
func (l LedgerConfig) LedgerAddress() common.Address  { return common.HexToAddress(l.Address) }
func (l LedgerConfig) FeeSinkAddress() common.Address { return common.HexToAddress(l.FeeSink) }

// setDefaults names every key; AutomaticEnv only overrides keys viper knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")
	v.SetDefault("rate_limit", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.pebble_path", "data/orders")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("redis.channel", "deferswap")
	v.SetDefault("notify.queue_size", 1024)
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("ledger.admin", "0x0000000000000000000000000000000000000001")
	v.SetDefault("ledger.address", "0x0000000000000000000000000000000000000002")
	v.SetDefault("ledger.fee_rate_bps", 0)
	v.SetDefault("ledger.fee_sink", "")
	v.SetDefault("ledger.hook_enabled", true)
	v.SetDefault("bank.faucet", false)
	v.SetDefault("tokens", []map[string]any{
		{"symbol": "ETH", "decimals": 18},
	})
}

// Load reads .env (if present), then config.yaml from dir, then
// DEFERSWAP_* environment variables, in increasing precedence.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("DEFERSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "pebble":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("config: store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	for name, addr := range map[string]string{
		"ledger.admin":   c.Ledger.Admin,
		"ledger.address": c.Ledger.Address,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: %s is not an address: %q", name, addr)
		}
	}
	if c.Ledger.FeeSink != "" && !common.IsHexAddress(c.Ledger.FeeSink) {
		return fmt.Errorf("config: ledger.fee_sink is not an address: %q", c.Ledger.FeeSink)
	}
	if c.Ledger.FeeRateBps < 0 || c.Ledger.FeeRateBps > domain.FeeDenominator {
		return fmt.Errorf("config: ledger.fee_rate_bps out of range: %d", c.Ledger.FeeRateBps)
	}
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return errors.New("config: token without symbol")
		}
		if t.Contract != "" && !common.IsHexAddress(t.Contract) {
			return fmt.Errorf("config: token %s contract is not an address", t.Symbol)
		}
	}
	return nil
}
