// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	PostgresURL       string  `mapstructure:"postgres_url"`
	FeedURL           string  `mapstructure:"feed_url"`
	MetricsAddr       string  `mapstructure:"metrics_addr"`
	ScanIntervalMs    int     `mapstructure:"scan_interval_ms"`
	MonitorIntervalMs int     `mapstructure:"monitor_interval_ms"`
	ExitQueueSize     int     `mapstructure:"exit_queue_size"`
	TotalCapital      float64 `mapstructure:"total_capital"`
	ThreatThreshold   float64 `mapstructure:"threat_threshold"`
	ConsensusTimeoutS int     `mapstructure:"consensus_timeout_s"`
	SubmitTimeoutS    int     `mapstructure:"submit_timeout_s"`
	DebugLogging      bool    `mapstructure:"debug_logging"`
	LogDir            string  `mapstructure:"log_dir"`

	Risk      RiskSection      `mapstructure:"risk"`
	Endpoints EndpointsSection `mapstructure:"endpoints"`
}

// EndpointsSection holds the external service URLs. Only the primary gateway
// is required; everything else degrades gracefully when absent.
type EndpointsSection struct {
	PrimaryGatewayURL  string `mapstructure:"primary_gateway_url"`
	FallbackGatewayURL string `mapstructure:"fallback_gateway_url"`
	CurveSnapshotURL   string `mapstructure:"curve_snapshot_url"`
	PriceURL           string `mapstructure:"price_url"`
	DexSnapshotURL     string `mapstructure:"dex_snapshot_url"`
	ConsensusURL       string `mapstructure:"consensus_url"`
	ThreatURL          string `mapstructure:"threat_url"`
	LearningCSVPath    string `mapstructure:"learning_csv_path"`
}

// RiskSection holds the initial risk governor limits.
type RiskSection struct {
	MaxPositionSize        float64 `mapstructure:"max_position_size"`
	DailyLossLimit         float64 `mapstructure:"daily_loss_limit"`
	MaxDrawdownPercent     float64 `mapstructure:"max_drawdown_percent"`
	MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions"`
	CooldownAfterLossS     int     `mapstructure:"cooldown_after_loss_s"`
	AutoPauseOnDrawdown    bool    `mapstructure:"auto_pause_on_drawdown"`
}

const (
	DefaultScanIntervalMs    = 3000
	DefaultMonitorIntervalMs = 2000
	DefaultExitQueueSize     = 256
	DefaultConsensusTimeoutS = 10
	DefaultSubmitTimeoutS    = 30
	DefaultThreatThreshold   = 0.7
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"scan_interval_ms":    DefaultScanIntervalMs,
		"monitor_interval_ms": DefaultMonitorIntervalMs,
		"exit_queue_size":     DefaultExitQueueSize,
		"consensus_timeout_s": DefaultConsensusTimeoutS,
		"submit_timeout_s":    DefaultSubmitTimeoutS,
		"threat_threshold":    DefaultThreatThreshold,
		"log_dir":             "logs",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("EDGEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.TotalCapital <= 0 {
		return errors.New("total_capital must be positive")
	}
	if cfg.ScanIntervalMs <= 0 {
		return errors.New("invalid scan_interval_ms")
	}
	if cfg.MonitorIntervalMs <= 0 {
		return errors.New("invalid monitor_interval_ms")
	}
	if cfg.ExitQueueSize <= 0 {
		return errors.New("invalid exit_queue_size")
	}
	if cfg.ThreatThreshold < 0 || cfg.ThreatThreshold > 1 {
		return errors.New("threat_threshold must be within [0,1]")
	}
	if cfg.Risk.MaxConcurrentPositions <= 0 {
		return errors.New("risk.max_concurrent_positions must be positive")
	}
	if cfg.Risk.MaxPositionSize <= 0 {
		return errors.New("risk.max_position_size must be positive")
	}
	if cfg.Endpoints.PrimaryGatewayURL == "" {
		return errors.New("endpoints.primary_gateway_url is required")
	}
	if cfg.Endpoints.PriceURL == "" {
		return errors.New("endpoints.price_url is required")
	}
	return nil
}
