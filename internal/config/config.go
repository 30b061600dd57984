package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug | release
	Node int64  `mapstructure:"node"` // snowflake 节点号
}

func (c ServerConfig) Debug() bool {
	return c.Mode == "debug"
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	OrderEvents  string `mapstructure:"order_events"`
	LedgerEvents string `mapstructure:"ledger_events"`
}

type BusinessConfig struct {
	PlatformFeeRate       string `mapstructure:"platform_fee_rate"`
	Currency              string `mapstructure:"currency"`
	PaymentTimeoutMinutes int    `mapstructure:"payment_timeout_minutes"`
	MaxRetryCount         int    `mapstructure:"max_retry_count"`
	DefaultPageSize       int    `mapstructure:"default_page_size"`
	MaxPageSize           int    `mapstructure:"max_page_size"`
}

func (b BusinessConfig) FeeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(b.PlatformFeeRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("business.platform_fee_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("business.platform_fee_rate must be in [0, 1), got %s", rate)
	}
	return rate, nil
}

func (b BusinessConfig) PaymentTimeout() time.Duration {
	return time.Duration(b.PaymentTimeoutMinutes) * time.Minute
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.node", 1)

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "agrimarket")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.order_events", "order-events")
	v.SetDefault("kafka.topic.ledger_events", "ledger-events")

	v.SetDefault("business.platform_fee_rate", "0.05")
	v.SetDefault("business.currency", "NGN")
	v.SetDefault("business.payment_timeout_minutes", 30)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.default_page_size", 20)
	v.SetDefault("business.max_page_size", 100)
}

// LoadConfig 加载配置文件，AGRI_ 前缀的环境变量优先（如 AGRI_DATABASE_PASSWORD）。
// configPath 为空时只使用默认值和环境变量。
// 环境变量只覆盖 setDefaults 里登记过的键。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	if _, err := c.Business.FeeRate(); err != nil {
		return err
	}
	if c.Business.PaymentTimeoutMinutes <= 0 {
		return fmt.Errorf("business.payment_timeout_minutes must be positive")
	}
	if c.Business.DefaultPageSize <= 0 || c.Business.MaxPageSize < c.Business.DefaultPageSize {
		return fmt.Errorf("business: invalid page size settings")
	}
	return nil
}
