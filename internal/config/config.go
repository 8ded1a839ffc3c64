package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	// LockWaitSeconds 行锁最长等待秒数（innodb_lock_wait_timeout），
	// 超时的操作会失败并进入重试策略
	LockWaitSeconds int `mapstructure:"lock_wait_seconds"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

// BusinessConfig 业务参数：重试、熔断、开户锁
type BusinessConfig struct {
	// 锁冲突重试
	RetryMaxAttempts   int `mapstructure:"retry_max_attempts"`
	RetryBackoffBaseMs int `mapstructure:"retry_backoff_base_ms"`
	// 熔断器
	BreakerMinRequests   uint32  `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio  float64 `mapstructure:"breaker_failure_ratio"`
	BreakerOpenSeconds   int     `mapstructure:"breaker_open_seconds"`
	BreakerWindowSeconds int     `mapstructure:"breaker_window_seconds"`
	// 开户分布式锁
	ProvisionLockTTLSeconds int `mapstructure:"provision_lock_ttl_seconds"`
	// 发件箱投递
	OutboxMaxRetryCount int `mapstructure:"outbox_max_retry_count"`
}

func (b BusinessConfig) RetryBackoffBase() time.Duration {
	return time.Duration(b.RetryBackoffBaseMs) * time.Millisecond
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
