package gateway

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"skoll/internal/engine"
)

// Config is the gateway runtime configuration, loadable from file or
// SKOLL_* environment variables.
type Config struct {
	Addr           string  `mapstructure:"addr"`
	Seed           uint64  `mapstructure:"seed"`
	HorizonSeconds float64 `mapstructure:"horizon_seconds"`
	DtNs           int64   `mapstructure:"dt_ns"`
	NoiseTraders   int     `mapstructure:"noise_traders"`

	TickSize int64 `mapstructure:"tick_size"`
	LotSize  int64 `mapstructure:"lot_size"`
	MinQty   int64 `mapstructure:"min_qty"`

	BandBps              int64 `mapstructure:"band_bps"`
	VolAuctionDurationMs int64 `mapstructure:"vol_auction_duration_ms"`

	CBDropBps       int64 `mapstructure:"cb_drop_bps"`
	CBHaltMs        int64 `mapstructure:"cb_halt_ms"`
	CBReopenMs      int64 `mapstructure:"cb_reopen_ms"`
	DisableBreakers bool  `mapstructure:"disable_breakers"`
}

// LoadConfig reads path (optional) over built-in defaults and the
// environment.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("seed", 1)
	v.SetDefault("horizon_seconds", 3600.0)
	v.SetDefault("dt_ns", 1_000_000)
	v.SetDefault("noise_traders", 3)
	v.SetDefault("tick_size", 1)
	v.SetDefault("lot_size", 1)
	v.SetDefault("min_qty", 1)
	v.SetDefault("band_bps", 1250)
	v.SetDefault("vol_auction_duration_ms", 5000)
	v.SetDefault("cb_drop_bps", 1000)
	v.SetDefault("cb_halt_ms", 10000)
	v.SetDefault("cb_reopen_ms", 5000)
	v.SetDefault("disable_breakers", false)

	v.SetEnvPrefix("skoll")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// EngineConfig translates the gateway settings into session rules.
func (c Config) EngineConfig() engine.Config {
	ec := engine.DefaultConfig()
	ec.TickSize = c.TickSize
	ec.LotSize = c.LotSize
	ec.MinQty = c.MinQty
	ec.BandBps = c.BandBps
	ec.VolAuctionDurationNs = c.VolAuctionDurationMs * 1_000_000
	ec.CBDropBps = c.CBDropBps
	ec.CBHaltDurationNs = c.CBHaltMs * 1_000_000
	ec.CBReopenAuctionDurationNs = c.CBReopenMs * 1_000_000
	if c.DisableBreakers {
		ec.EnableVolatilityInterruption = false
		ec.EnableCircuitBreaker = false
	}
	return ec
}
