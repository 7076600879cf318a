package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ExchangeConfig struct {
	URL            string        `yaml:"url"`
	Team           string        `yaml:"team"`
	Secret         string        `yaml:"secret"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	SendQueue      int           `yaml:"send_queue"`
	InboxSize      int           `yaml:"inbox_size"`
}

// StrategyConfig holds the trading constants. They are read once at startup
// and stay fixed for the life of the trader.
type StrategyConfig struct {
	LotSize       int64   `yaml:"lot_size"`
	QuoteVolume   int64   `yaml:"quote_volume"`
	PositionLimit int64   `yaml:"position_limit"`
	TickSize      int64   `yaml:"tick_size"`
	MinBidPrice   int64   `yaml:"min_bid_price"`
	MaxAskPrice   int64   `yaml:"max_ask_price"`
	HistoryMax    int     `yaml:"history_max"`
	HistoryKeep   int     `yaml:"history_keep"`
	HedgeRatio    float64 `yaml:"hedge_ratio"`
	ZScoreUpper   float64 `yaml:"zscore_upper"`
	ZScoreLower   float64 `yaml:"zscore_lower"`
}

type StateConfig struct {
	SQLitePath       string        `yaml:"sqlite_path"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueueSize       int           `yaml:"queue_size"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// Exchange-wide price bounds; hedges are priced at the nearest tick inside them.
const (
	DefaultMinBidPrice int64 = 1
	DefaultMaxAskPrice int64 = 2147483647
)

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

// Default returns a config populated only with defaults. Offline tools use it
// when no config file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 10
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 3
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = 28
		}
	}
	if cfg.Exchange.URL == "" {
		cfg.Exchange.URL = "ws://127.0.0.1:12345/exec"
	}
	if cfg.Exchange.ReconnectDelay == 0 {
		cfg.Exchange.ReconnectDelay = 3 * time.Second
	}
	if cfg.Exchange.PingInterval == 0 {
		cfg.Exchange.PingInterval = 15 * time.Second
	}
	if cfg.Exchange.SendQueue == 0 {
		cfg.Exchange.SendQueue = 256
	}
	if cfg.Exchange.InboxSize == 0 {
		cfg.Exchange.InboxSize = 1024
	}
	applyStrategyDefaults(&cfg.Strategy)
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/pairs-bot.db"
	}
	if cfg.State.SnapshotInterval == 0 {
		cfg.State.SnapshotInterval = 10 * time.Second
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func applyStrategyDefaults(s *StrategyConfig) {
	if s.LotSize == 0 {
		s.LotSize = 10
	}
	if s.QuoteVolume == 0 {
		s.QuoteVolume = 15
	}
	if s.PositionLimit == 0 {
		s.PositionLimit = 100
	}
	if s.TickSize == 0 {
		s.TickSize = 100
	}
	if s.MinBidPrice == 0 {
		s.MinBidPrice = DefaultMinBidPrice
	}
	if s.MaxAskPrice == 0 {
		s.MaxAskPrice = DefaultMaxAskPrice
	}
	if s.HistoryMax == 0 {
		s.HistoryMax = 1000
	}
	if s.HistoryKeep == 0 {
		s.HistoryKeep = 500
	}
	if s.HedgeRatio == 0 {
		s.HedgeRatio = 1
	}
	if s.ZScoreUpper == 0 {
		s.ZScoreUpper = 0.5
	}
	if s.ZScoreLower == 0 {
		s.ZScoreLower = -0.5
	}
}

func applyEnvOverrides(cfg *Config) {
	if secret := strings.TrimSpace(os.Getenv("PAIRS_EXCHANGE_SECRET")); secret != "" {
		cfg.Exchange.Secret = secret
	}
	if token := strings.TrimSpace(os.Getenv("PAIRS_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("PAIRS_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
	if dsn := strings.TrimSpace(os.Getenv("PAIRS_TIMESCALE_DSN")); dsn != "" {
		cfg.Timescale.DSN = dsn
	}
}

func validate(cfg *Config) error {
	if cfg.Exchange.Team == "" {
		return errors.New("exchange.team is required")
	}
	if !strings.HasPrefix(cfg.Exchange.URL, "ws://") && !strings.HasPrefix(cfg.Exchange.URL, "wss://") {
		return fmt.Errorf("exchange.url must be a ws:// or wss:// url, got %q", cfg.Exchange.URL)
	}
	if cfg.Exchange.ReconnectDelay < 0 || cfg.Exchange.PingInterval < 0 {
		return errors.New("exchange.reconnect_delay and exchange.ping_interval must be >= 0")
	}
	if cfg.Exchange.SendQueue < 0 || cfg.Exchange.InboxSize < 0 {
		return errors.New("exchange.send_queue and exchange.inbox_size must be >= 0")
	}
	if err := ValidateStrategy(cfg.Strategy); err != nil {
		return err
	}
	if cfg.State.SnapshotInterval < 0 {
		return errors.New("state.snapshot_interval must be >= 0")
	}
	if cfg.Metrics.EnabledValue() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

// ValidateStrategy checks the trading constants on their own so offline tools
// can reuse it without an exchange section.
func ValidateStrategy(s StrategyConfig) error {
	if s.LotSize <= 0 {
		return errors.New("strategy.lot_size must be > 0")
	}
	if s.QuoteVolume <= 0 {
		return errors.New("strategy.quote_volume must be > 0")
	}
	if s.PositionLimit <= 0 {
		return errors.New("strategy.position_limit must be > 0")
	}
	if s.TickSize <= 0 {
		return errors.New("strategy.tick_size must be > 0")
	}
	if s.MinBidPrice <= 0 || s.MaxAskPrice <= s.MinBidPrice {
		return errors.New("strategy.min_bid_price must be > 0 and below strategy.max_ask_price")
	}
	if s.HistoryKeep <= 0 || s.HistoryMax <= s.HistoryKeep {
		return errors.New("strategy.history_keep must be > 0 and below strategy.history_max")
	}
	if s.HedgeRatio <= 0 {
		return errors.New("strategy.hedge_ratio must be > 0")
	}
	if s.ZScoreUpper <= s.ZScoreLower {
		return errors.New("strategy.zscore_upper must be above strategy.zscore_lower")
	}
	return nil
}
