// Package config provides configuration management for the event engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Detector thresholds are
// explicit named fields with defaults; overriding any of them is a plain
// struct-field override in the config file, not a map merge.
type Config struct {
	Store       StoreConfig     `mapstructure:"store"`
	Provider    ProviderConfig  `mapstructure:"provider"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
	Detect      DetectConfig    `mapstructure:"detect"`
	Rules       RulesConfig     `mapstructure:"rules"`
	LLM         LLMConfig       `mapstructure:"-"` // loaded from credentials file
	LogLevel    string          `mapstructure:"log_level"`
	LogFilePath string          `mapstructure:"log_file"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ProviderConfig holds data-provider configuration.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	NewsLimit      int           `mapstructure:"news_limit"`
	LookbackDays   int           `mapstructure:"lookback_days"`
}

// SchedulerConfig holds cron/interval task configuration.
type SchedulerConfig struct {
	SweepInterval    time.Duration   `mapstructure:"sweep_interval"`
	ReminderInterval time.Duration   `mapstructure:"reminder_interval"`
	RuleRefreshCron  string          `mapstructure:"rule_refresh_cron"`
	Universe         []string        `mapstructure:"universe"`
	MaxConcurrent    int             `mapstructure:"max_concurrent"`
	TaskSwitch       map[string]bool `mapstructure:"task_switch"`
}

// DetectConfig groups the per-category detector settings.
type DetectConfig struct {
	Trading   TradingConfig   `mapstructure:"trading"`
	Company   CompanyConfig   `mapstructure:"company"`
	Industry  IndustryConfig  `mapstructure:"industry"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Macro     MacroConfig     `mapstructure:"macro"`
}

// TradingConfig holds the trading detector's baseline and trigger settings.
type TradingConfig struct {
	PriceLookback        int     `mapstructure:"price_lookback"`        // observations for the price-jump quantile
	VolumeLookback       int     `mapstructure:"volume_lookback"`       // observations for the volume benchmark
	VolatilityLookback   int     `mapstructure:"volatility_lookback"`   // observations for the volatility quantile
	VolatilityPercentile float64 `mapstructure:"volatility_percentile"` // 0-100
	MAPeriods            []int   `mapstructure:"ma_periods"`
	LimitMoveThreshold   float64 `mapstructure:"limit_move_threshold"` // fixed, not baseline-derived
	VolumeMultiplier     float64 `mapstructure:"volume_multiplier"`
	DefaultVolatility    float64 `mapstructure:"default_volatility"` // fractional, e.g. 0.02
}

// CompanyConfig holds the company detector's baseline settings.
type CompanyConfig struct {
	ProfitChangePercentile float64 `mapstructure:"profit_change_percentile"`
	ProfitLookbackMonths   int     `mapstructure:"profit_lookback_months"`
	UnlockRatioPercentile  float64 `mapstructure:"unlock_ratio_percentile"`
	UnlockLookbackMonths   int     `mapstructure:"unlock_lookback_months"`
	DefaultProfitThreshold float64 `mapstructure:"default_profit_threshold"`
	DefaultUnlockThreshold float64 `mapstructure:"default_unlock_threshold"`
}

// IndustryConfig holds the industry-board detector's fixed thresholds.
// These are market-wide heuristics by design, unlike the per-symbol
// percentile baselines used by the trading and company detectors.
type IndustryConfig struct {
	PriceRiseThreshold        float64 `mapstructure:"price_rise_threshold"`        // board %change
	PriceFallThreshold        float64 `mapstructure:"price_fall_threshold"`        // negative
	CapitalInflowThreshold    float64 `mapstructure:"capital_inflow_threshold"`    // CNY 100M
	CapitalOutflowThreshold   float64 `mapstructure:"capital_outflow_threshold"`   // negative
	RiseConsistencyThreshold  float64 `mapstructure:"rise_consistency_threshold"`  // ratio 0-1
	FallConsistencyThreshold  float64 `mapstructure:"fall_consistency_threshold"`  // ratio 0-1
	LeaderFluctuationThreshold float64 `mapstructure:"leader_fluctuation_threshold"`
}

// DefaultRankChangeThreshold is the attention-rank delta that counts as a
// "large rank change". The reference deployment ran with 1000 even though
// its inline commentary described 100-position moves; 1000 is what actually
// shipped, so it is the default here. Operators tracking a shorter hot list
// should lower it in config.
const DefaultRankChangeThreshold = 1000

// SentimentConfig holds the attention-ranking detector settings.
type SentimentConfig struct {
	RankRiseThreshold  int     `mapstructure:"rank_rise_threshold"`
	RankDropThreshold  int     `mapstructure:"rank_drop_threshold"` // negative
	Top1Threshold      int     `mapstructure:"top1_threshold"`
	Top10Threshold     int     `mapstructure:"top10_threshold"`
	Top50Threshold     int     `mapstructure:"top50_threshold"`
	Top100Threshold    int     `mapstructure:"top100_threshold"`
	PriceRiseThreshold float64 `mapstructure:"price_rise_threshold"`
	PriceFallThreshold float64 `mapstructure:"price_fall_threshold"` // negative
}

// MacroConfig holds the macro-news classifier settings.
type MacroConfig struct {
	MinMatchCount    int      `mapstructure:"min_match_count"`
	LookbackLimit    int      `mapstructure:"lookback_limit"`
	CriticalKeywords []string `mapstructure:"critical_keywords"`
}

// RulesConfig holds rule-matching and reminder settings.
type RulesConfig struct {
	MatchWindow    time.Duration `mapstructure:"match_window"`
	RenderTimeout  time.Duration `mapstructure:"render_timeout"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
}

// LLMConfig holds the text-generation collaborator's credentials.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-radar"
	}
	return filepath.Join(home, ".config", "stock-radar")
}

// Default returns a Config populated with every default value.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(home, ".config", "stock-radar", "radar.db"),
		},
		Provider: ProviderConfig{
			BaseURL:       "https://push2.eastmoney.com",
			Timeout:       15 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
			RetryAttempts: 3,
			NewsLimit:     100,
			LookbackDays:  120,
		},
		Scheduler: SchedulerConfig{
			SweepInterval:    5 * time.Minute,
			ReminderInterval: 5 * time.Minute,
			RuleRefreshCron:  "0 8 * * *",
			Universe:         []string{"000001", "000063", "600519", "601318", "002415"},
			MaxConcurrent:    4,
			TaskSwitch: map[string]bool{
				"event_sweep":  true,
				"reminder":     true,
				"rule_refresh": false,
			},
		},
		Detect: DetectConfig{
			Trading: TradingConfig{
				PriceLookback:        60,
				VolumeLookback:       30,
				VolatilityLookback:   100,
				VolatilityPercentile: 95,
				MAPeriods:            []int{5, 10, 20, 60},
				LimitMoveThreshold:   9.9,
				VolumeMultiplier:     2.0,
				DefaultVolatility:    0.02,
			},
			Company: CompanyConfig{
				ProfitChangePercentile: 90,
				ProfitLookbackMonths:   24,
				UnlockRatioPercentile:  90,
				UnlockLookbackMonths:   36,
				DefaultProfitThreshold: 20.0,
				DefaultUnlockThreshold: 5.0,
			},
			Industry: IndustryConfig{
				PriceRiseThreshold:         3.0,
				PriceFallThreshold:         -0.7,
				CapitalInflowThreshold:     30.0,
				CapitalOutflowThreshold:    -10.0,
				RiseConsistencyThreshold:   0.8,
				FallConsistencyThreshold:   0.7,
				LeaderFluctuationThreshold: 9.5,
			},
			Sentiment: SentimentConfig{
				RankRiseThreshold:  DefaultRankChangeThreshold,
				RankDropThreshold:  -DefaultRankChangeThreshold,
				Top1Threshold:      1,
				Top10Threshold:     10,
				Top50Threshold:     50,
				Top100Threshold:    100,
				PriceRiseThreshold: 9.0,
				PriceFallThreshold: -9.0,
			},
			Macro: MacroConfig{
				MinMatchCount: 1,
				LookbackLimit: 100,
				CriticalKeywords: []string{
					"美联储", "欧洲央行", "通胀目标", "大幅加息", "GDP增速",
				},
			},
		},
		Rules: RulesConfig{
			MatchWindow:   5 * time.Minute,
			RenderTimeout: 30 * time.Second,
			MaxConcurrent: 4,
		},
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from the specified directory, falling back to
// defaults for anything unset. If configDir is empty, the default config
// directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	if err := loadCredentials(configDir, &cfg.LLM); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
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
			return nil // defaults apply
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, llm *LLMConfig) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	sub := v.Sub("llm")
	if sub == nil {
		return nil
	}
	return sub.Unmarshal(llm)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RADAR_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("RADAR_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("RADAR_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("RADAR_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Detect.Trading.VolatilityPercentile <= 0 || c.Detect.Trading.VolatilityPercentile > 100 {
		return fmt.Errorf("volatility_percentile must be in (0, 100]")
	}
	if c.Detect.Industry.RiseConsistencyThreshold < 0 || c.Detect.Industry.RiseConsistencyThreshold > 1 {
		return fmt.Errorf("rise_consistency_threshold must be between 0 and 1")
	}
	if c.Detect.Industry.FallConsistencyThreshold < 0 || c.Detect.Industry.FallConsistencyThreshold > 1 {
		return fmt.Errorf("fall_consistency_threshold must be between 0 and 1")
	}
	if c.Rules.MatchWindow <= 0 {
		return fmt.Errorf("match_window must be positive")
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	return nil
}
