// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DispatcherConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`
	BatchSize      int           `yaml:"batch_size"`
	BatchTimeout   time.Duration `yaml:"batch_timeout"`
	ResultMaxAge   time.Duration `yaml:"result_max_age"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

type GatewayConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`
}

type BudgetConfig struct {
	WarnUSD         float64 `yaml:"warn"`
	CritUSD         float64 `yaml:"crit"`
	EmergencyUSD    float64 `yaml:"emergency"`
	PrimaryProvider string  `yaml:"primary_provider"`
}

type PricingRow struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	InputPer1K  float64 `yaml:"input_per_1k"`  // USD per 1k input tokens
	OutputPer1K float64 `yaml:"output_per_1k"` // USD per 1k output tokens
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	FallbackModel   string `yaml:"fallback_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
}

type UsageLogConfig struct {
	Path string `yaml:"path"`
}

type AnalysisCacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Dispatcher    DispatcherConfig    `yaml:"dispatcher"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Budget        BudgetConfig        `yaml:"budget"`
	Pricing       []PricingRow        `yaml:"pricing"`
	AI            AIConfig            `yaml:"ai"`
	Admin         AdminConfig         `yaml:"admin"`
	UsageLog      UsageLogConfig      `yaml:"usage_log"`
	AnalysisCache AnalysisCacheConfig `yaml:"analysis_cache"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Budget.WarnUSD > cfg.Budget.CritUSD || cfg.Budget.CritUSD > cfg.Budget.EmergencyUSD {
		return nil, errors.New("budget thresholds must satisfy warn <= crit <= emergency")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Dispatcher.Workers <= 0 {
		cfg.Dispatcher.Workers = 4
	}
	if cfg.Dispatcher.QueueSize <= 0 {
		cfg.Dispatcher.QueueSize = 256
	}
	if cfg.Dispatcher.EnqueueTimeout <= 0 {
		cfg.Dispatcher.EnqueueTimeout = 2 * time.Second
	}
	if cfg.Dispatcher.BatchSize <= 0 {
		cfg.Dispatcher.BatchSize = 10
	}
	if cfg.Dispatcher.BatchTimeout <= 0 {
		cfg.Dispatcher.BatchTimeout = 2 * time.Second
	}
	if cfg.Dispatcher.ResultMaxAge <= 0 {
		cfg.Dispatcher.ResultMaxAge = 10 * time.Minute
	}
	if cfg.Dispatcher.SweepInterval <= 0 {
		cfg.Dispatcher.SweepInterval = time.Minute
	}

	if cfg.Gateway.Workers <= 0 {
		cfg.Gateway.Workers = 4
	}
	if cfg.Gateway.QueueSize <= 0 {
		cfg.Gateway.QueueSize = 256
	}
	if cfg.Gateway.CacheTTL <= 0 {
		cfg.Gateway.CacheTTL = time.Hour
	}
	if cfg.Gateway.CacheMaxEntries <= 0 {
		cfg.Gateway.CacheMaxEntries = 1000
	}

	if cfg.Budget.WarnUSD <= 0 {
		cfg.Budget.WarnUSD = 5.0
	}
	if cfg.Budget.CritUSD <= 0 {
		cfg.Budget.CritUSD = 10.0
	}
	if cfg.Budget.EmergencyUSD <= 0 {
		cfg.Budget.EmergencyUSD = 20.0
	}
	if cfg.Budget.PrimaryProvider == "" {
		cfg.Budget.PrimaryProvider = "openai"
	}

	if len(cfg.Pricing) == 0 {
		cfg.Pricing = DefaultPricing()
	}

	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o"
	}
	if cfg.AI.FallbackModel == "" {
		cfg.AI.FallbackModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 2048
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8090
	}

	if cfg.UsageLog.Path == "" {
		cfg.UsageLog.Path = "usage_log.jsonl"
	}
	if cfg.AnalysisCache.TTL <= 0 {
		cfg.AnalysisCache.TTL = 7 * 24 * time.Hour
	}
}

// DefaultPricing covers the models wired out of the box. Rates are USD per 1k
// tokens and deliberately conservative; override via config for accuracy.
func DefaultPricing() []PricingRow {
	return []PricingRow{
		{Provider: "openai", Model: "gpt-4o", InputPer1K: 0.0025, OutputPer1K: 0.01},
		{Provider: "openai", Model: "gpt-4o-mini", InputPer1K: 0.00015, OutputPer1K: 0.0006},
		{Provider: "gemini", Model: "gemini-1.5-pro", InputPer1K: 0.00125, OutputPer1K: 0.005},
		{Provider: "gemini", Model: "gemini-2.0-flash", InputPer1K: 0.0001, OutputPer1K: 0.0004},
	}
}
