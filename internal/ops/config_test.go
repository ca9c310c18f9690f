package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func validConfig() FileConfig {
	return FileConfig{
		Env: EnvSandbox,
		Adapters: AdaptersConfig{
			Otcx: &OtcxConfig{
				Host:      map[string]string{EnvSandbox: "gw-1.sandbox.otcx.io"},
				APIKey:    map[string]string{EnvSandbox: "key"},
				APISecret: map[string]string{EnvSandbox: "secret"},
				User:      map[string]string{EnvSandbox: "trader@desk"},
				Markets:   []string{"kraken", "bitstamp"},
				Pairs:     []string{"BTC-EUR"},
				Sizes:     []float64{0.5},
			},
		},
		Strategy: StrategyConfig{
			ArbitrageThresholdBp:      -90,
			MarketOrderThresholdBp:    -500,
			QuotingPeriodSeconds:      30,
			MarketOrderTimeoutSeconds: 5,
			Aggressiveness:            0.5,
			MaxOrderLifetimeSeconds:   60,
			DataDir:                   "/tmp/arb",
		},
		PNL: PNLConfig{LossThresholds: map[string]float64{"BTC-EUR": -1000}},
	}
}

func TestResolve(t *testing.T) {
	loaded, err := Resolve(validConfig())
	require.NoError(t, err)

	assert.False(t, loaded.Trading, "sandbox defaults to no trading")
	require.NotNil(t, loaded.Otcx)
	assert.Equal(t, "gw-1.sandbox.otcx.io", loaded.Otcx.Host)
	assert.Equal(t, []enum.Market{enum.MarketKraken, enum.MarketBitstamp}, loaded.Otcx.Markets)
	assert.Equal(t, 30*time.Second, loaded.Strategy.QuotingPeriod)
	assert.Equal(t, time.Minute, loaded.Strategy.MaxOrderLifetime)
	assert.True(t, loaded.Recorder.Sandbox)
	assert.InDelta(t, -90, loaded.Recorder.ThresholdBp, 1e-9)

	pair := model.CurrencyPair{Base: enum.CurrencyBTC, Quote: enum.CurrencyEUR}
	assert.InDelta(t, -1000, loaded.LossThresholds[pair], 1e-9)
	assert.Nil(t, loaded.Postgres)
}

func TestResolveRejectsBadConfigs(t *testing.T) {
	boolPtr := func(v bool) *bool { return &v }

	cases := []struct {
		name  string
		mutate func(*FileConfig)
	}{
		{"unknown env", func(c *FileConfig) { c.Env = "staging" }},
		{"trading outside prod_trade", func(c *FileConfig) { c.Trading = boolPtr(true) }},
		{"no adapters", func(c *FileConfig) { c.Adapters.Otcx = nil }},
		{"missing api key", func(c *FileConfig) { c.Adapters.Otcx.APIKey = nil }},
		{"unknown market", func(c *FileConfig) { c.Adapters.Otcx.Markets = []string{"nasdaq"} }},
		{"pair size mismatch", func(c *FileConfig) { c.Adapters.Otcx.Sizes = []float64{0.5, 1} }},
		{"nonpositive size", func(c *FileConfig) { c.Adapters.Otcx.Sizes = []float64{0} }},
		{"bad pair", func(c *FileConfig) { c.Adapters.Otcx.Pairs = []string{"BTCEUR"} }},
		{"aggressiveness above one", func(c *FileConfig) { c.Strategy.Aggressiveness = 1.5 }},
		{"zero quoting period", func(c *FileConfig) { c.Strategy.QuotingPeriodSeconds = 0 }},
		{"inverted thresholds", func(c *FileConfig) { c.Strategy.MarketOrderThresholdBp = -10 }},
		{"no data dir", func(c *FileConfig) { c.Strategy.DataDir = "" }},
		{"bad threshold pair", func(c *FileConfig) { c.PNL.LossThresholds = map[string]float64{"btc": -1} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			_, err := Resolve(cfg)
			assert.Error(t, err)
		})
	}
}

func TestResolveTradingRequiresSubAccount(t *testing.T) {
	cfg := validConfig()
	cfg.Env = EnvProdTrade
	cfg.Adapters.Otcx.Host = map[string]string{EnvProdTrade: "gw-1.otcx.io"}
	cfg.Adapters.Otcx.APIKey = map[string]string{EnvProdTrade: "key"}
	cfg.Adapters.Otcx.APISecret = map[string]string{EnvProdTrade: "secret"}
	cfg.Adapters.Otcx.User = map[string]string{EnvProdTrade: "trader@desk"}

	_, err := Resolve(cfg)
	assert.Error(t, err, "prod_trade without sub account")

	cfg.Adapters.Otcx.SubAccount = map[string]string{EnvProdTrade: "arb"}
	loaded, err := Resolve(cfg)
	require.NoError(t, err)
	assert.True(t, loaded.Trading)
	assert.True(t, loaded.Otcx.Trading)
	assert.False(t, loaded.Recorder.Sandbox)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"env": "sandbox",
		"adapters": {"otcx": {
			"host": {"sandbox": "gw-1.sandbox.otcx.io"},
			"apiKey": {"sandbox": "key"},
			"apiSecret": {"sandbox": "secret"},
			"user": {"sandbox": "trader@desk"},
			"markets": ["kraken"],
			"pairs": ["ETH-USD"],
			"sizes": [2]
		}},
		"strategy": {
			"arbitrageThresholdBp": -90,
			"marketOrderThresholdBp": -500,
			"quotingPeriodSeconds": 30,
			"marketOrderTimeoutSeconds": 5,
			"aggressiveness": 0.5,
			"maxOrderLifetimeSeconds": 60,
			"dataDir": "/tmp/arb"
		},
		"postgres": {"host": "db", "database": "arb"}
	}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.Postgres)
	assert.Equal(t, "db", loaded.Postgres.Host)
	require.Len(t, loaded.Otcx.Pairs, 1)
	assert.Equal(t, "ETH-USD", loaded.Otcx.Pairs[0].String())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
