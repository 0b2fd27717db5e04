// Package config provides configuration management for the analysis engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/logging"
)

// Config holds all application configuration. It is built once and passed
// explicitly to constructors.
type Config struct {
	Market      MarketConfig      `mapstructure:"market"`
	AI          AIConfig          `mapstructure:"ai"`
	Indicators  IndicatorConfig   `mapstructure:"indicators"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Server      ServerConfig      `mapstructure:"server"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Log         logging.LogConfig `mapstructure:"log"`
	Credentials Credentials       `mapstructure:"-"` // environment only
}

// MarketConfig configures the market data gateway.
type MarketConfig struct {
	Source      string        `mapstructure:"source" default:"binance"`
	BaseURL     string        `mapstructure:"base_url" default:"https://api.binance.com" validate:"url"`
	Interval    string        `mapstructure:"interval" default:"1d" validate:"oneof=1h 4h 1d 1w"`
	CandleLimit int           `mapstructure:"candle_limit" default:"100" validate:"min=2,max=1000"`
	Timeout     time.Duration `mapstructure:"timeout" default:"10s"`
	RateLimit   float64       `mapstructure:"rate_limit" default:"10" validate:"gt=0"` // requests per second
	Burst       int           `mapstructure:"burst" default:"5" validate:"min=1"`
	MaxRetries  int           `mapstructure:"max_retries" default:"2" validate:"min=0,max=5"`
}

// ProviderEntry is one step of the provider chain.
type ProviderEntry struct {
	Provider string `mapstructure:"provider" validate:"oneof=openai gemini anthropic deepseek"`
	Model    string `mapstructure:"model" validate:"required"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
}

// AIConfig configures the provider chain.
type AIConfig struct {
	Chain              []ProviderEntry `mapstructure:"chain" validate:"dive"`
	AttemptTimeout     time.Duration   `mapstructure:"attempt_timeout" default:"45s"`
	MaxRetries         int             `mapstructure:"max_retries" default:"1" validate:"min=0,max=5"`
	RetryBackoff       time.Duration   `mapstructure:"retry_backoff" default:"2s"`
	MaxTokens          int             `mapstructure:"max_tokens" default:"2000" validate:"min=1"`
	Temperature        float64         `mapstructure:"temperature" default:"0.3" validate:"min=0,max=2"`
	AdvanceOnMalformed bool            `mapstructure:"advance_on_malformed"`
	BreakerThreshold   int             `mapstructure:"breaker_threshold" default:"5" validate:"min=1"`
	BreakerCooldown    time.Duration   `mapstructure:"breaker_cooldown" default:"5m"`
}

// IndicatorConfig holds indicator periods and classification thresholds.
type IndicatorConfig struct {
	RSIPeriod        int        `mapstructure:"rsi_period" default:"14" validate:"min=2"`
	RSIOverbought    float64    `mapstructure:"rsi_overbought" default:"70"`
	RSIOversold      float64    `mapstructure:"rsi_oversold" default:"30"`
	RSINeutralBand   float64    `mapstructure:"rsi_neutral_band" default:"5" validate:"min=0"`
	MACDFast         int        `mapstructure:"macd_fast" default:"12" validate:"min=1"`
	MACDSlow         int        `mapstructure:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
	MACDSignal       int        `mapstructure:"macd_signal" default:"9" validate:"min=1"`
	MAPeriods        []int      `mapstructure:"ma_periods" default:"[7,25,99]" validate:"min=1,dive,min=1"`
	BollingerPeriod  int        `mapstructure:"bollinger_period" default:"20" validate:"min=2"`
	BollingerK       float64    `mapstructure:"bollinger_k" default:"2" validate:"gt=0"`
	SqueezeThreshold float64    `mapstructure:"squeeze_threshold" default:"0.04" validate:"gt=0"`
	WilliamsPeriod   int        `mapstructure:"williams_period" default:"14" validate:"min=2"`
	WilliamsBand     float64    `mapstructure:"williams_band" default:"5" validate:"min=0"`
	VolumeShort      int        `mapstructure:"volume_short" default:"5" validate:"min=1"`
	VolumeLong       int        `mapstructure:"volume_long" default:"20" validate:"gtfield=VolumeShort"`
	VolumeTolerance  float64    `mapstructure:"volume_tolerance" default:"0.1" validate:"min=0,max=1"`
	PriceEpsilon     float64    `mapstructure:"price_epsilon" default:"0.0001" validate:"min=0"`
	Weights          VoteConfig `mapstructure:"weights"`
}

// VoteConfig holds the fixed weights used when no AI trend is available.
type VoteConfig struct {
	RSI           float64 `mapstructure:"rsi" default:"0.20"`
	MACD          float64 `mapstructure:"macd" default:"0.25"`
	MovingAverage float64 `mapstructure:"moving_average" default:"0.20"`
	Bollinger     float64 `mapstructure:"bollinger" default:"0.10"`
	WilliamsR     float64 `mapstructure:"williams_r" default:"0.10"`
	Volume        float64 `mapstructure:"volume" default:"0.15"`
	Threshold     float64 `mapstructure:"threshold" default:"0.15" validate:"min=0,max=1"`
}

// CacheConfig configures the analysis store.
type CacheConfig struct {
	Backend      string        `mapstructure:"backend" default:"sqlite" validate:"oneof=sqlite redis memory"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	RedisAddr    string        `mapstructure:"redis_addr" default:"localhost:6379"`
	RedisDB      int           `mapstructure:"redis_db"`
	RedisPrefix  string        `mapstructure:"redis_prefix" default:"analysis"`
	TTL          time.Duration `mapstructure:"ttl" default:"48h"`
	Timezone     string        `mapstructure:"timezone" default:"UTC"`
	AnalysisType string        `mapstructure:"analysis_type" default:"technical"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" default:":8080"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"10s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"180s"`
}

// ScheduleConfig configures the daily pre-warm job.
type ScheduleConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Cron        string   `mapstructure:"cron" default:"0 5 0 * * *"`
	Symbols     []string `mapstructure:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\"]"`
	Concurrency int      `mapstructure:"concurrency" default:"4" validate:"min=1,max=32"`
}

// Credentials holds provider API keys. They are only read from the
// environment (or a .env file), never from config.toml.
type Credentials struct {
	OpenAIKey    string
	GeminiKey    string
	AnthropicKey string
	DeepSeekKey  string
	RedisPass    string
}

// KeyFor returns the API key for a provider name.
func (c Credentials) KeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIKey
	case "gemini":
		return c.GeminiKey
	case "anthropic":
		return c.AnthropicKey
	case "deepseek":
		return c.DeepSeekKey
	}
	return ""
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/crypto-analyst"
	}
	return filepath.Join(home, ".config", "crypto-analyst")
}

// Default returns a configuration with every default applied and no file
// or environment input.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.AI.Chain = DefaultChain()
	cfg.Cache.SQLitePath = filepath.Join(DefaultConfigDir(), "analysis.db")
	return cfg
}

// DefaultChain is the provider chain used when config.toml lists none.
func DefaultChain() []ProviderEntry {
	return []ProviderEntry{
		{Provider: "openai", Model: "gpt-4o-mini"},
		{Provider: "openai", Model: "gpt-4o"},
		{Provider: "gemini", Model: "gemini-2.5-flash"},
		{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A missing .env is normal.
	_ = godotenv.Load(filepath.Join(configDir, ".env"), ".env")

	cfg := Default()
	cfg.Cache.SQLitePath = filepath.Join(configDir, "analysis.db")
	// A chain in config.toml replaces the default one rather than merging
	// into it element by element.
	cfg.AI.Chain = nil

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	if len(cfg.AI.Chain) == 0 {
		cfg.AI.Chain = DefaultChain()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Defaults stay in effect; leave a template behind for editing.
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Credentials.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Credentials.GeminiKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	cfg.Credentials.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.Credentials.DeepSeekKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.Credentials.RedisPass = os.Getenv("REDIS_PASSWORD")

	if v := os.Getenv("ANALYST_MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("ANALYST_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("ANALYST_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("ANALYST_TIMEZONE"); v != "" {
		cfg.Cache.Timezone = v
	}
	if v := os.Getenv("ANALYST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

var validate = validator.New()

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	if _, err := time.LoadLocation(c.Cache.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Cache.Timezone, err)
	}
	if c.Cache.Backend == "sqlite" && c.Cache.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required for the sqlite backend")
	}
	w := c.Indicators.Weights
	if w.RSI+w.MACD+w.MovingAverage+w.Bollinger+w.WilliamsR+w.Volume <= 0 {
		return fmt.Errorf("indicator vote weights must sum to a positive value")
	}
	if c.Indicators.RSIOversold >= c.Indicators.RSIOverbought {
		return fmt.Errorf("rsi_oversold must be below rsi_overbought")
	}
	return nil
}

// ChainWithKeys returns the chain entries whose provider has credentials.
func (c *Config) ChainWithKeys() []ProviderEntry {
	entries := make([]ProviderEntry, 0, len(c.AI.Chain))
	for _, e := range c.AI.Chain {
		if c.Credentials.KeyFor(e.Provider) != "" {
			entries = append(entries, e)
		}
	}
	return entries
}
