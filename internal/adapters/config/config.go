package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"aegis/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Lending       LendingConfig
	Protocol      ProtocolConfig
	Monitor       MonitorConfig
	Emergency     EmergencyConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"aegis"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

type PostgresConfig struct {
	Enabled  bool   `envconfig:"POSTGRES_ENABLED" default:"false"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"aegis"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"aegis"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"aegis"`
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
}

type TelegramConfig struct {
	Enabled  bool    `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatIDs  []int64 `envconfig:"TELEGRAM_CHAT_IDS"`
}

// LendingConfig describes the lending-protocol gateway the monitor polls
type LendingConfig struct {
	Endpoint          string        `envconfig:"LENDING_ENDPOINT" required:"true"`
	Address           string        `envconfig:"POSITION_ADDRESS" required:"true"`
	RequestTimeout    time.Duration `envconfig:"LENDING_REQUEST_TIMEOUT" default:"10s"`
	RequestsPerMinute int           `envconfig:"LENDING_REQUESTS_PER_MINUTE" default:"60"`
}

// ProtocolConfig carries the protocol risk parameters and the position baseline
type ProtocolConfig struct {
	LTV                  float64 `envconfig:"PROTOCOL_LTV" default:"0.80"`
	LiquidationThreshold float64 `envconfig:"PROTOCOL_LIQUIDATION_THRESHOLD" default:"0.825"`
	SupplyAPY            float64 `envconfig:"PROTOCOL_SUPPLY_APY" default:"0.02"`
	BorrowAPY            float64 `envconfig:"PROTOCOL_BORROW_APY" default:"0.05"`
	YieldAPY             float64 `envconfig:"PROTOCOL_YIELD_APY" default:"0.08"`
	EntryPrice           float64 `envconfig:"POSITION_ENTRY_PRICE" required:"true"`
}

type MonitorConfig struct {
	Interval           time.Duration `envconfig:"MONITOR_INTERVAL" default:"15m"`
	SnapshotHistoryCap int           `envconfig:"MONITOR_SNAPSHOT_HISTORY_CAP" default:"100"`
	AlertHistoryCap    int           `envconfig:"MONITOR_ALERT_HISTORY_CAP" default:"50"`
	PriceMoveThreshold float64       `envconfig:"MONITOR_PRICE_MOVE_THRESHOLD" default:"0.10"`
	LTVWarningLevel    float64       `envconfig:"MONITOR_LTV_WARNING_LEVEL" default:"0.70"`
	PriceCacheTTL      time.Duration `envconfig:"MONITOR_PRICE_CACHE_TTL" default:"1h"`
}

// EmergencyConfig controls the emergency deleverage procedure.
// AutoExecute defaults to false: the repay is computed and reported but
// never submitted unless explicitly opted in.
type EmergencyConfig struct {
	AutoExecute   bool    `envconfig:"EMERGENCY_AUTO_EXECUTE" default:"false"`
	RepayFraction float64 `envconfig:"EMERGENCY_REPAY_FRACTION" default:"0.25"`
	GasReserve    float64 `envconfig:"EMERGENCY_GAS_RESERVE" default:"1.0"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Protocol.LTV <= 0 || c.Protocol.LTV >= 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "PROTOCOL_LTV must be in (0,1), got %v", c.Protocol.LTV)
	}
	if c.Protocol.LiquidationThreshold <= 0 || c.Protocol.LiquidationThreshold > 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "PROTOCOL_LIQUIDATION_THRESHOLD must be in (0,1], got %v", c.Protocol.LiquidationThreshold)
	}
	if c.Protocol.LiquidationThreshold < c.Protocol.LTV {
		return errors.Wrapf(errors.ErrInvalidInput, "liquidation threshold %v below protocol LTV %v", c.Protocol.LiquidationThreshold, c.Protocol.LTV)
	}
	if c.Emergency.RepayFraction <= 0 || c.Emergency.RepayFraction > 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "EMERGENCY_REPAY_FRACTION must be in (0,1], got %v", c.Emergency.RepayFraction)
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.Wrap(errors.ErrInvalidInput, "TELEGRAM_ENABLED requires TELEGRAM_BOT_TOKEN")
	}
	return nil
}
