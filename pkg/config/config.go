package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"TradeDash/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Feeds struct {
		BaseURL        string        `yaml:"base_url"`
		RawPath        string        `yaml:"raw_path"`
		ExecutionsPath string        `yaml:"executions_path"`
		AccountsPath   string        `yaml:"accounts_path"`
		Timeout        time.Duration `yaml:"timeout"`
		BotID          string        `yaml:"bot_id"`
		OwnerScope     string        `yaml:"owner_scope"`
		AdminView      bool          `yaml:"admin_view"`
	} `yaml:"feeds"`
	Coordinator struct {
		Cooldown      time.Duration `yaml:"cooldown"`
		SafetyTimeout time.Duration `yaml:"safety_timeout"`
	} `yaml:"coordinator"`
	Cache struct {
		MaxKeys int `yaml:"max_keys"`
		Redis   struct {
			Enabled     bool          `yaml:"enabled"`
			Host        string        `yaml:"host"`
			Port        int           `yaml:"port"`
			Password    string        `yaml:"password"`
			DB          int           `yaml:"db"`
			Prefix      string        `yaml:"prefix"`
			SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled  bool     `yaml:"enabled"`
		Brokers  []string `yaml:"brokers"`
		Topic    string   `yaml:"topic"`
		Consumer struct {
			GroupID     string        `yaml:"group_id"`
			OffsetReset string        `yaml:"offset_reset"`
			Workers     int           `yaml:"workers"`
			BufferSize  int           `yaml:"buffer_size"`
			RetryMax    int           `yaml:"retry_max"`
			BackoffMin  time.Duration `yaml:"backoff_min"`
			BackoffMax  time.Duration `yaml:"backoff_max"`
			DLQTopic    string        `yaml:"dlq_topic"`
			MinBytes    int           `yaml:"min_bytes"`
			MaxBytes    int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
		Ingest struct {
			MaxRPS     int `yaml:"max_rps"`
			BufferSize int `yaml:"buffer_size"`
		} `yaml:"ingest"`
		CommitTopic   string `yaml:"commit_topic"`
		ErrorLogTopic string `yaml:"error_log_topic"`
		Producer      struct {
			RequiredAcks int           `yaml:"required_acks"`
			Compression  string        `yaml:"compression"`
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			BatchBytes   int           `yaml:"batch_bytes"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FEEDS_BASE_URL"); v != "" {
		c.Feeds.BaseURL = v
	}
	if v := os.Getenv("BOT_ID"); v != "" {
		c.Feeds.BotID = v
	}
	if v := os.Getenv("OWNER_SCOPE"); v != "" {
		c.Feeds.OwnerScope = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)
	c.Cache.Redis.Port = util.ParseIntDefault(os.Getenv("REDIS_PORT"), c.Cache.Redis.Port)

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Coordinator.Cooldown == 0 {
		c.Coordinator.Cooldown = 2500 * time.Millisecond
	}
	if c.Coordinator.SafetyTimeout == 0 {
		c.Coordinator.SafetyTimeout = 8 * time.Second
	}
	if c.Feeds.Timeout == 0 {
		c.Feeds.Timeout = 10 * time.Second
	}
	if c.Feeds.RawPath == "" {
		c.Feeds.RawPath = "/signals/raw"
	}
	if c.Feeds.ExecutionsPath == "" {
		c.Feeds.ExecutionsPath = "/signals/executions"
	}
	if c.Feeds.AccountsPath == "" {
		c.Feeds.AccountsPath = "/accounts/linkages"
	}
	if c.Cache.Redis.SnapshotTTL == 0 {
		c.Cache.Redis.SnapshotTTL = 24 * time.Hour
	}
	if c.Kafka.Consumer.OffsetReset == "" {
		c.Kafka.Consumer.OffsetReset = "latest"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Feeds.BaseURL == "" {
		return fmt.Errorf("feeds.base_url is required")
	}
	if c.Feeds.BotID == "" {
		return fmt.Errorf("feeds.bot_id is required")
	}
	if c.Coordinator.Cooldown < 0 || c.Coordinator.SafetyTimeout < 0 {
		return fmt.Errorf("coordinator timings must not be negative")
	}
	if c.Coordinator.SafetyTimeout <= c.Coordinator.Cooldown {
		return fmt.Errorf("coordinator.safety_timeout must exceed coordinator.cooldown")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if r := c.Kafka.Consumer.OffsetReset; r != "" && r != "earliest" && r != "latest" {
		return fmt.Errorf("kafka.consumer.offset_reset must be earliest or latest")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
