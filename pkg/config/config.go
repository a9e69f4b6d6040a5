package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Store struct {
		Backend    string `yaml:"backend" default:"clickhouse" validate:"oneof=clickhouse memory"`
		BatchSize  int    `yaml:"batch_size" default:"500" validate:"gt=0"`
		ClickHouse struct {
			Host             string        `yaml:"host" default:"localhost"`
			Port             int           `yaml:"port" default:"9000"`
			Database         string        `yaml:"database" default:"marketpull"`
			Table            string        `yaml:"table" default:"observations"`
			User             string        `yaml:"user" default:"default"`
			Password         string        `yaml:"password"`
			DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
			ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
			WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		} `yaml:"clickhouse"`
	} `yaml:"store"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"market.observations"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		Linger       time.Duration `yaml:"linger" default:"1s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Cache struct {
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		TTL     time.Duration `yaml:"ttl" default:"6h"`
		Redis   struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Pipeline struct {
		PollingInterval time.Duration `yaml:"polling_interval" default:"4h" validate:"gt=0"`
		RunOnStart      bool          `yaml:"run_on_start" default:"true"`
		Retry           struct {
			MaxAttempts int           `yaml:"max_attempts" default:"3" validate:"gt=0"`
			BaseDelay   time.Duration `yaml:"base_delay" default:"1s"`
			Multiplier  float64       `yaml:"multiplier" default:"2"`
		} `yaml:"retry"`
		RequestTimeout time.Duration `yaml:"request_timeout" default:"10s"`
		ClockSkew      time.Duration `yaml:"clock_skew" default:"2m"`
		Lookback       time.Duration `yaml:"lookback" default:"24h"`
		JumpThresholds struct {
			Equity float64 `yaml:"equity" default:"0.20" validate:"gt=0"`
			Crypto float64 `yaml:"crypto" default:"0.50" validate:"gt=0"`
			Forex  float64 `yaml:"forex" default:"0.20" validate:"gt=0"`
		} `yaml:"jump_thresholds"`
	} `yaml:"pipeline"`
	Sources struct {
		Equity struct {
			BaseURL     string        `yaml:"base_url" default:"https://www.alphavantage.co/query"`
			APIKey      string        `yaml:"api_key"`
			Symbols     []string      `yaml:"symbols"`
			DailyBudget int           `yaml:"daily_budget" default:"25" validate:"gt=0"`
			Pace        time.Duration `yaml:"pace" default:"12s"`
		} `yaml:"equity"`
		Crypto struct {
			BaseURL   string   `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
			IDs       []string `yaml:"ids"`
			PerMinute int      `yaml:"per_minute" default:"10" validate:"gt=0"`
		} `yaml:"crypto"`
		Forex struct {
			BaseURL   string   `yaml:"base_url" default:"https://api.exchangerate-api.com/v4/latest"`
			APIKey    string   `yaml:"api_key"`
			Pairs     []string `yaml:"pairs"`
			PerMinute int      `yaml:"per_minute" default:"10" validate:"gt=0"`
		} `yaml:"forex"`
	} `yaml:"sources"`
}

var validate = validator.New()

// Load reads a YAML configuration file, applies struct defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Credentials are expected from the environment in deployments.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.Sources.Equity.APIKey = v
	}
	if v := os.Getenv("EXCHANGERATE_API_KEY"); v != "" {
		c.Sources.Forex.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.Store.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}

	return c, nil
}

// Validate checks tag constraints plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.Sources.Equity.Symbols)+len(c.Sources.Crypto.IDs)+len(c.Sources.Forex.Pairs) == 0 {
		return fmt.Errorf("instrument universe is empty: configure at least one symbol, coin id, or pair")
	}
	for _, p := range c.Sources.Forex.Pairs {
		if !strings.Contains(p, "/") {
			return fmt.Errorf("forex pair %q must have BASE/TARGET form", p)
		}
	}
	return nil
}

// KafkaEnabled reports whether the optional publisher should be wired.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }
