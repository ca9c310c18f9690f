// Package ops loads and resolves the engine configuration. Resolution is
// fail fast: a config that parses but cannot be fully validated never
// produces a Loaded value.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/algo/arbitrage"
	"main/internal/connect/adapter/otcx"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/recorder"
)

const (
	EnvSandbox   = "sandbox"
	EnvProd      = "prod"
	EnvProdTrade = "prod_trade"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Env      string          `json:"env"`
	Trading  *bool           `json:"trading"`
	Adapters AdaptersConfig  `json:"adapters"`
	Strategy StrategyConfig  `json:"strategy"`
	PNL      PNLConfig       `json:"pnl"`
	Postgres *PostgresConfig `json:"postgres"`
}

// AdaptersConfig lists the venue adapters to start.
type AdaptersConfig struct {
	Otcx *OtcxConfig `json:"otcx"`
}

// OtcxConfig configures the OTCX gateway session. Credentials are keyed by
// environment so one config file serves sandbox and production runs.
type OtcxConfig struct {
	Host       map[string]string `json:"host"`
	APIKey     map[string]string `json:"apiKey"`
	APISecret  map[string]string `json:"apiSecret"`
	User       map[string]string `json:"user"`
	SubAccount map[string]string `json:"subAccount"`
	Markets    []string          `json:"markets"`
	Pairs      []string          `json:"pairs"`
	Sizes      []float64         `json:"sizes"`
}

// StrategyConfig holds the direct arbitrage parameters. Durations are in
// seconds.
type StrategyConfig struct {
	ArbitrageThresholdBp      float64 `json:"arbitrageThresholdBp"`
	MarketOrderThresholdBp    float64 `json:"marketOrderThresholdBp"`
	QuotingPeriodSeconds      float64 `json:"quotingPeriodSeconds"`
	MarketOrderTimeoutSeconds float64 `json:"marketOrderTimeoutSeconds"`
	Aggressiveness            float64 `json:"aggressiveness"`
	MaxOrderLifetimeSeconds   float64 `json:"maxOrderLifetimeSeconds"`
	DataDir                   string  `json:"dataDir"`
	FlushEvery                int     `json:"flushEvery"`
}

// PNLConfig maps pair names to loss thresholds in quote leg units. A pair
// with no entry is never halted by the monitor.
type PNLConfig struct {
	LossThresholds map[string]float64 `json:"lossThresholds"`
}

// PostgresConfig describes the optional snapshot sink.
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Env            string
	Trading        bool
	Otcx           *otcx.Settings
	Strategy       arbitrage.Config
	Recorder       recorder.Config
	LossThresholds map[model.CurrencyPair]float64
	Postgres       *recorder.StoreOption
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve validates a parsed config and builds the runtime settings.
func Resolve(cfg FileConfig) (Loaded, error) {
	switch cfg.Env {
	case EnvSandbox, EnvProd, EnvProdTrade:
	default:
		return Loaded{}, fmt.Errorf("unknown env: %q", cfg.Env)
	}

	trading := cfg.Env == EnvProdTrade
	if cfg.Trading != nil {
		trading = *cfg.Trading
	}
	if trading && cfg.Env != EnvProdTrade {
		return Loaded{}, fmt.Errorf("trading requires env %q, got %q", EnvProdTrade, cfg.Env)
	}

	strategy, rec, err := resolveStrategy(cfg.Strategy)
	if err != nil {
		return Loaded{}, err
	}
	rec.Sandbox = cfg.Env == EnvSandbox

	thresholds, err := resolveThresholds(cfg.PNL)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Env:            cfg.Env,
		Trading:        trading,
		Strategy:       strategy,
		Recorder:       rec,
		LossThresholds: thresholds,
	}

	if cfg.Adapters.Otcx != nil {
		settings, err := resolveOtcx(*cfg.Adapters.Otcx, cfg.Env, trading)
		if err != nil {
			return Loaded{}, err
		}
		loaded.Otcx = settings
	}
	if loaded.Otcx == nil {
		return Loaded{}, fmt.Errorf("no adapters configured")
	}

	if cfg.Postgres != nil {
		loaded.Postgres = &recorder.StoreOption{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}
	}
	return loaded, nil
}

func resolveStrategy(cfg StrategyConfig) (arbitrage.Config, recorder.Config, error) {
	if cfg.Aggressiveness < 0 || cfg.Aggressiveness > 1 {
		return arbitrage.Config{}, recorder.Config{}, fmt.Errorf("aggressiveness must be in [0, 1], got %g", cfg.Aggressiveness)
	}
	if cfg.QuotingPeriodSeconds <= 0 {
		return arbitrage.Config{}, recorder.Config{}, fmt.Errorf("quotingPeriodSeconds must be > 0")
	}
	if cfg.MarketOrderTimeoutSeconds <= 0 {
		return arbitrage.Config{}, recorder.Config{}, fmt.Errorf("marketOrderTimeoutSeconds must be > 0")
	}
	if cfg.MaxOrderLifetimeSeconds <= 0 {
		return arbitrage.Config{}, recorder.Config{}, fmt.Errorf("maxOrderLifetimeSeconds must be > 0")
	}
	if cfg.MarketOrderThresholdBp >= cfg.ArbitrageThresholdBp {
		return arbitrage.Config{}, recorder.Config{}, fmt.Errorf(
			"marketOrderThresholdBp (%g) must be below arbitrageThresholdBp (%g)",
			cfg.MarketOrderThresholdBp, cfg.ArbitrageThresholdBp)
	}
	if cfg.DataDir == "" {
		return arbitrage.Config{}, recorder.Config{}, fmt.Errorf("dataDir is empty")
	}
	strategy := arbitrage.Config{
		ThresholdBp:            cfg.ArbitrageThresholdBp,
		MarketOrderThresholdBp: cfg.MarketOrderThresholdBp,
		QuotingPeriod:          seconds(cfg.QuotingPeriodSeconds),
		MarketOrderTimeout:     seconds(cfg.MarketOrderTimeoutSeconds),
		Aggressiveness:         cfg.Aggressiveness,
		MaxOrderLifetime:       seconds(cfg.MaxOrderLifetimeSeconds),
	}
	rec := recorder.Config{
		Dir:         cfg.DataDir,
		ThresholdBp: cfg.ArbitrageThresholdBp,
		FlushEvery:  cfg.FlushEvery,
	}
	return strategy, rec, nil
}

func resolveThresholds(cfg PNLConfig) (map[model.CurrencyPair]float64, error) {
	out := make(map[model.CurrencyPair]float64, len(cfg.LossThresholds))
	for name, threshold := range cfg.LossThresholds {
		pair, err := model.PairFromString(name)
		if err != nil {
			return nil, fmt.Errorf("loss threshold pair %q: %w", name, err)
		}
		out[pair] = threshold
	}
	return out, nil
}

func resolveOtcx(cfg OtcxConfig, env string, trading bool) (*otcx.Settings, error) {
	host, err := envValue(cfg.Host, env, "otcx host")
	if err != nil {
		return nil, err
	}
	apiKey, err := envValue(cfg.APIKey, env, "otcx apiKey")
	if err != nil {
		return nil, err
	}
	apiSecret, err := envValue(cfg.APISecret, env, "otcx apiSecret")
	if err != nil {
		return nil, err
	}
	user, err := envValue(cfg.User, env, "otcx user")
	if err != nil {
		return nil, err
	}
	subAccount := cfg.SubAccount[env]
	if trading && subAccount == "" {
		return nil, fmt.Errorf("otcx subAccount not set for env %q", env)
	}

	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("otcx markets is empty")
	}
	markets := make([]enum.Market, 0, len(cfg.Markets))
	for _, name := range cfg.Markets {
		market, ok := enum.ParseMarket(name)
		if !ok {
			return nil, fmt.Errorf("unknown market: %q", name)
		}
		markets = append(markets, market)
	}

	if len(cfg.Pairs) != len(cfg.Sizes) {
		return nil, fmt.Errorf("otcx: %d pairs but %d sizes", len(cfg.Pairs), len(cfg.Sizes))
	}
	pairs := make([]model.CurrencyPair, 0, len(cfg.Pairs))
	for i, name := range cfg.Pairs {
		pair, err := model.PairFromString(name)
		if err != nil {
			return nil, fmt.Errorf("otcx pair %q: %w", name, err)
		}
		if cfg.Sizes[i] <= 0 {
			return nil, fmt.Errorf("otcx size for %s must be > 0, got %g", pair, cfg.Sizes[i])
		}
		pairs = append(pairs, pair)
	}

	return &otcx.Settings{
		Host:       host,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		User:       user,
		SubAccount: subAccount,
		Markets:    markets,
		Pairs:      pairs,
		Sizes:      cfg.Sizes,
		Trading:    trading,
	}, nil
}

func envValue(values map[string]string, env, field string) (string, error) {
	value := values[env]
	if value == "" {
		return "", fmt.Errorf("%s not set for env %q", field, env)
	}
	return value, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
