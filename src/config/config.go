// Package config loads the simulator configuration from an optional
// simulator.yaml plus SIM_-prefixed environment overrides
// (e.g. SIM_TRADERS_COUNT=8 overrides traders.count).
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	Symbols     []string      `mapstructure:"symbols"`
	RunDuration time.Duration `mapstructure:"run_duration"`
	ImportFile  string        `mapstructure:"import_file"`

	Engine  EngineConfig  `mapstructure:"engine"`
	Traders TradersConfig `mapstructure:"traders"`
	Export  ExportConfig  `mapstructure:"export"`
}

type EngineConfig struct {
	TradeHistoryCapacity int `mapstructure:"trade_history_capacity"`
	BookTradeCapacity    int `mapstructure:"book_trade_capacity"`
	LatencyWindowSize    int `mapstructure:"latency_window_size"`
	QueueCapacity        int `mapstructure:"queue_capacity"`
	BatchSize            int `mapstructure:"batch_size"`
}

type TradersConfig struct {
	Count         int     `mapstructure:"count"`
	InitialCash   float64 `mapstructure:"initial_cash"` // dollars
	MinOrderSize  int64   `mapstructure:"min_order_size"`
	MaxOrderSize  int64   `mapstructure:"max_order_size"`
	Volatility    float64 `mapstructure:"volatility"`
	MinIntervalMs int     `mapstructure:"min_interval_ms"`
	MaxIntervalMs int     `mapstructure:"max_interval_ms"`
}

type ExportConfig struct {
	Dir   string `mapstructure:"dir"`
	Depth int    `mapstructure:"depth"`
}

// Load reads simulator.yaml from ./config or the working directory when
// present, applies environment overrides and returns the typed config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("simulator")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// edge case: a missing config file is fine, defaults apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)

	v.SetDefault("symbols", []string{"AAPL", "GOOGL", "MSFT"})
	v.SetDefault("run_duration", "30s")
	v.SetDefault("import_file", "")

	v.SetDefault("engine.trade_history_capacity", 10000)
	v.SetDefault("engine.book_trade_capacity", 1000)
	v.SetDefault("engine.latency_window_size", 1000)
	v.SetDefault("engine.queue_capacity", 65536)
	v.SetDefault("engine.batch_size", 100)

	v.SetDefault("traders.count", 5)
	v.SetDefault("traders.initial_cash", 100000.0)
	v.SetDefault("traders.min_order_size", 10)
	v.SetDefault("traders.max_order_size", 100)
	v.SetDefault("traders.volatility", 0.02)
	v.SetDefault("traders.min_interval_ms", 50)
	v.SetDefault("traders.max_interval_ms", 500)

	v.SetDefault("export.dir", "")
	v.SetDefault("export.depth", 10)
}
