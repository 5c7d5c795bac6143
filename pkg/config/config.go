// Package config loads the engine configuration from a YAML or JSON file,
// an optional .env file and MM_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/betbot/deltamm/internal/domain"
)

// Config 应用配置。Load 之后只读。
type Config struct {
	Exchange    ExchangeConfig                `yaml:"exchange" json:"exchange"`
	Underlying  UnderlyingConfig              `yaml:"underlying" json:"underlying"`
	Model       ModelConfig                   `yaml:"model" json:"model"`
	Hedge       HedgeConfig                   `yaml:"hedge" json:"hedge"`
	Defaults    QuoteConfig                   `yaml:"defaults" json:"defaults"`
	Instruments map[string]InstrumentOverride `yaml:"instruments" json:"instruments"`
	Timing      TimingConfig                  `yaml:"timing" json:"timing"`
	Risk        RiskConfig                    `yaml:"risk" json:"risk"`
	Journal     JournalConfig                 `yaml:"journal" json:"journal"`
	Control     ListenConfig                  `yaml:"control" json:"control"`
	Metrics     ListenConfig                  `yaml:"metrics" json:"metrics"`
	Log         LogConfig                     `yaml:"log" json:"log"`
}

// ExchangeConfig 交易所连接
type ExchangeConfig struct {
	URL               string   `yaml:"url" json:"url"`
	Timeout           Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond int      `yaml:"requests_per_second" json:"requests_per_second"`
}

// UnderlyingConfig names the primary underlying and the listings quoted around it.
type UnderlyingConfig struct {
	Primary      string   `yaml:"primary" json:"primary"`
	Proxy        string   `yaml:"proxy" json:"proxy"`
	Secondaries  []string `yaml:"secondaries" json:"secondaries"`
	MaxSpread    float64  `yaml:"max_spread" json:"max_spread"`
	QuotePrimary bool     `yaml:"quote_primary" json:"quote_primary"`
}

type ModelConfig struct {
	Rate       float64 `yaml:"rate" json:"rate"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// HedgeConfig 对冲参数。position_limit / tick_size 为 0 时沿用 defaults。
type HedgeConfig struct {
	Cost          float64 `yaml:"cost" json:"cost"`
	PositionLimit int     `yaml:"position_limit" json:"position_limit"`
	TickSize      float64 `yaml:"tick_size" json:"tick_size"`
}

// QuoteConfig 默认报价参数
type QuoteConfig struct {
	Volume           int     `yaml:"volume" json:"volume"`
	Pillow           float64 `yaml:"pillow" json:"pillow"`
	PositionLimit    int     `yaml:"position_limit" json:"position_limit"`
	TickSize         float64 `yaml:"tick_size" json:"tick_size"`
	Direction        string  `yaml:"direction" json:"direction"`
	OffloadThreshold int     `yaml:"offload_threshold" json:"offload_threshold"`
}

// InstrumentOverride only overrides the fields that are set.
type InstrumentOverride struct {
	Volume           *int     `yaml:"volume" json:"volume"`
	Pillow           *float64 `yaml:"pillow" json:"pillow"`
	PositionLimit    *int     `yaml:"position_limit" json:"position_limit"`
	TickSize         *float64 `yaml:"tick_size" json:"tick_size"`
	Direction        *string  `yaml:"direction" json:"direction"`
	OffloadThreshold *int     `yaml:"offload_threshold" json:"offload_threshold"`
	// Sensitivity is the hedge weight of a proxy listing; unset means 1.
	Sensitivity *float64 `yaml:"sensitivity" json:"sensitivity"`
}

type TimingConfig struct {
	LiquidityRetry      Duration `yaml:"liquidity_retry" json:"liquidity_retry"`
	LevelRetry          Duration `yaml:"level_retry" json:"level_retry"`
	MaxLiquidityRetries int      `yaml:"max_liquidity_retries" json:"max_liquidity_retries"` // 0 = 不限
	OptionPacing        Duration `yaml:"option_pacing" json:"option_pacing"`
	CycleInterval       Duration `yaml:"cycle_interval" json:"cycle_interval"`
}

type RiskConfig struct {
	MaxConsecutiveErrors int64 `yaml:"max_consecutive_errors" json:"max_consecutive_errors"`
}

type JournalConfig struct {
	Path string `yaml:"path" json:"path"` // 空 = 不记录
}

type ListenConfig struct {
	Listen string `yaml:"listen" json:"listen"` // 空 = 关闭
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Load reads filePath, then .env (if present), then MM_* overrides, then validates.
func Load(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := &Config{}
	if filePath != "" {
		var err error
		cfg, err = loadConfigFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "加载配置文件失败 %s", filePath)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &cfg, nil
}

// applyEnv 环境变量覆盖（优先级高于配置文件）
func (c *Config) applyEnv() {
	c.Exchange.URL = getEnv("MM_EXCHANGE_URL", c.Exchange.URL)
	c.Log.Level = getEnv("MM_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("MM_LOG_FILE", c.Log.File)
	c.Control.Listen = getEnv("MM_CONTROL_LISTEN", c.Control.Listen)
	c.Metrics.Listen = getEnv("MM_METRICS_LISTEN", c.Metrics.Listen)
	c.Journal.Path = getEnv("MM_JOURNAL_PATH", c.Journal.Path)
	c.Risk.MaxConsecutiveErrors = int64(parseIntEnv("MM_MAX_CONSECUTIVE_ERRORS", int(c.Risk.MaxConsecutiveErrors)))
}

// Validate fills defaults and rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Exchange.Timeout <= 0 {
		c.Exchange.Timeout = Duration(5 * time.Second)
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		c.Exchange.RequestsPerSecond = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if strings.TrimSpace(c.Underlying.Primary) == "" {
		return fmt.Errorf("underlying.primary is required")
	}
	if c.Underlying.MaxSpread <= 0 {
		return fmt.Errorf("underlying.max_spread must be > 0")
	}
	if c.Model.Volatility < 0 {
		return fmt.Errorf("model.volatility must be >= 0")
	}

	if c.Defaults.Direction == "" {
		c.Defaults.Direction = string(domain.DirectionBoth)
	}
	if _, err := c.defaultQuoteParams().validated(); err != nil {
		return errors.Wrap(err, "defaults")
	}
	for id := range c.Instruments {
		if _, err := c.quoteParams(id).validated(); err != nil {
			return errors.Wrapf(err, "instruments.%s", id)
		}
	}

	if c.Hedge.Cost < 0 {
		return fmt.Errorf("hedge.cost must be >= 0")
	}
	if c.Hedge.PositionLimit <= 0 {
		c.Hedge.PositionLimit = c.Defaults.PositionLimit
	}
	if c.Hedge.TickSize <= 0 {
		c.Hedge.TickSize = c.Defaults.TickSize
	}

	if c.Timing.LiquidityRetry <= 0 {
		c.Timing.LiquidityRetry = Duration(200 * time.Millisecond)
	}
	if c.Timing.LevelRetry <= 0 {
		c.Timing.LevelRetry = Duration(100 * time.Millisecond)
	}
	if c.Timing.MaxLiquidityRetries < 0 {
		return fmt.Errorf("timing.max_liquidity_retries must be >= 0")
	}
	if c.Timing.OptionPacing < 0 || c.Timing.CycleInterval < 0 {
		return fmt.Errorf("timing intervals must be >= 0")
	}
	if c.Timing.CycleInterval == 0 {
		c.Timing.CycleInterval = Duration(2 * time.Second)
	}
	if c.Risk.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("risk.max_consecutive_errors must be >= 0")
	}
	return nil
}

// QuoteParams returns the defaults merged with the instrument's override.
func (c *Config) QuoteParams(instrumentID string) domain.QuoteParameters {
	p, _ := c.quoteParams(instrumentID).validated()
	return p
}

// OverriddenIDs lists instruments with an override entry.
func (c *Config) OverriddenIDs() []string {
	ids := make([]string, 0, len(c.Instruments))
	for id := range c.Instruments {
		ids = append(ids, id)
	}
	return ids
}

// ProxySensitivities returns the configured fixed hedge weights.
func (c *Config) ProxySensitivities() map[string]float64 {
	out := make(map[string]float64)
	for id, o := range c.Instruments {
		if o.Sensitivity != nil {
			out[id] = *o.Sensitivity
		}
	}
	return out
}

type rawQuote QuoteConfig

func (c *Config) defaultQuoteParams() rawQuote { return rawQuote(c.Defaults) }

func (c *Config) quoteParams(instrumentID string) rawQuote {
	q := c.defaultQuoteParams()
	o, ok := c.Instruments[instrumentID]
	if !ok {
		return q
	}
	if o.Volume != nil {
		q.Volume = *o.Volume
	}
	if o.Pillow != nil {
		q.Pillow = *o.Pillow
	}
	if o.PositionLimit != nil {
		q.PositionLimit = *o.PositionLimit
	}
	if o.TickSize != nil {
		q.TickSize = *o.TickSize
	}
	if o.Direction != nil {
		q.Direction = *o.Direction
	}
	if o.OffloadThreshold != nil {
		q.OffloadThreshold = *o.OffloadThreshold
	}
	return q
}

func (q rawQuote) validated() (domain.QuoteParameters, error) {
	dir, err := domain.ParseDirection(q.Direction)
	if err != nil {
		return domain.QuoteParameters{}, err
	}
	p := domain.QuoteParameters{
		Volume:           q.Volume,
		Pillow:           q.Pillow,
		PositionLimit:    q.PositionLimit,
		TickSize:         q.TickSize,
		Direction:        dir,
		OffloadThreshold: q.OffloadThreshold,
	}
	return p, p.Validate()
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
