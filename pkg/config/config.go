package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SimulationConfig shapes the virtual-economy runs backing scenario
// analysis, training augmentation, and the untrained forecast fallback.
type SimulationConfig struct {
	NumTraders int     `yaml:"num_traders"`
	Steps      int     `yaml:"steps"`
	Volatility float64 `yaml:"volatility"`
	Drift      float64 `yaml:"drift"`
}

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
	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
	CryptoCompare struct {
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"` // requests per second
		Symbols   []string      `yaml:"symbols"`
		Currency  string        `yaml:"currency"`
	} `yaml:"cryptocompare"`
	Model struct {
		LookbackWindow  int     `yaml:"lookback_window"`
		ForecastHorizon int     `yaml:"forecast_horizon"`
		Timesteps       int     `yaml:"timesteps"`
		HiddenDim       int     `yaml:"hidden_dim"`
		NumLayers       int     `yaml:"num_layers"`
		DropoutRate     float64 `yaml:"dropout_rate"`
		CheckpointDir   string  `yaml:"checkpoint_dir"`
	} `yaml:"model"`
	Training struct {
		Enabled         bool          `yaml:"enabled"`
		Interval        time.Duration `yaml:"interval"`
		Epochs          int           `yaml:"epochs"`
		BatchSize       int           `yaml:"batch_size"`
		LearningRate    float64       `yaml:"learning_rate"`
		HistoryBars     int           `yaml:"history_bars"`
		Augment         bool          `yaml:"augment"`
		SimulationPaths int           `yaml:"simulation_paths"`
	} `yaml:"training"`
	Simulation SimulationConfig `yaml:"simulation"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
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
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("CRYPTOCOMPARE_API_KEY"); v != "" {
		c.CryptoCompare.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.CryptoCompare.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CHECKPOINT_DIR"); v != "" {
		c.Model.CheckpointDir = v
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.CryptoCompare.BaseURL == "" {
		c.CryptoCompare.BaseURL = "https://min-api.cryptocompare.com"
	}
	if c.CryptoCompare.Timeout == 0 {
		c.CryptoCompare.Timeout = 10 * time.Second
	}
	if c.CryptoCompare.RateLimit == 0 {
		c.CryptoCompare.RateLimit = 10
	}
	if c.CryptoCompare.Currency == "" {
		c.CryptoCompare.Currency = "USD"
	}
	if c.Model.LookbackWindow == 0 {
		c.Model.LookbackWindow = 60
	}
	if c.Model.ForecastHorizon == 0 {
		c.Model.ForecastHorizon = 10
	}
	if c.Model.Timesteps == 0 {
		c.Model.Timesteps = 1000
	}
	if c.Model.HiddenDim == 0 {
		c.Model.HiddenDim = 128
	}
	if c.Model.NumLayers == 0 {
		c.Model.NumLayers = 4
	}
	if c.Model.DropoutRate == 0 {
		c.Model.DropoutRate = 0.1
	}
	if c.Model.CheckpointDir == "" {
		c.Model.CheckpointDir = "models"
	}
	if c.Training.Interval == 0 {
		c.Training.Interval = 24 * time.Hour
	}
	if c.Training.Epochs == 0 {
		c.Training.Epochs = 50
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 32
	}
	if c.Training.LearningRate == 0 {
		c.Training.LearningRate = 1e-3
	}
	if c.Training.HistoryBars == 0 {
		c.Training.HistoryBars = 500
	}
	if c.Training.SimulationPaths == 0 {
		c.Training.SimulationPaths = 10
	}
	if c.Simulation.NumTraders == 0 {
		c.Simulation.NumTraders = 100
	}
	if c.Simulation.Steps == 0 {
		c.Simulation.Steps = 500
	}
	if c.Simulation.Volatility == 0 {
		c.Simulation.Volatility = 0.02
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.CryptoCompare.Symbols) == 0 {
		return fmt.Errorf("cryptocompare.symbols cannot be empty")
	}
	if c.Model.LookbackWindow <= 0 || c.Model.ForecastHorizon <= 0 {
		return fmt.Errorf("model windows must be positive, got %d/%d",
			c.Model.LookbackWindow, c.Model.ForecastHorizon)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
