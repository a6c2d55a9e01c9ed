package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradesim/pkg/conn"
	"tradesim/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Bus.HistorySize)
	assert.Equal(t, 4096, cfg.Bus.QueueCapacity)
	assertDec(t, "5000", cfg.Risk.MaxOrderValue)
	assertDec(t, "10000", cfg.Risk.MaxPositionSize)
	assertDec(t, "0.05", cfg.Risk.MaxDrawdown)
	assertDec(t, "100", cfg.Risk.DefaultPrice)
	assertDec(t, "100000", cfg.InitialCash)
	assertDec(t, "0.02", cfg.StopLossPct)
	assertDec(t, "0.0001", cfg.Order.Slippage)
	assertDec(t, "100", cfg.Order.DefaultPrice)
	assert.Equal(t, 10*time.Millisecond, cfg.Order.FillDelay)
	assert.Nil(t, cfg.Database)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
bus:
  history_size: 50
risk:
  max_order_value: "2500.50"
  max_drawdown: 0.1
portfolio:
  initial_cash: 25000
order:
  fill_delay: 1s
database:
  driver: sqlite
  path: /tmp/tradesim.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Bus.HistorySize)
	assertDec(t, "2500.5", cfg.Risk.MaxOrderValue)
	assertDec(t, "0.1", cfg.Risk.MaxDrawdown)
	assertDec(t, "10000", cfg.Risk.MaxPositionSize)
	assertDec(t, "25000", cfg.InitialCash)
	assert.Equal(t, time.Second, cfg.Order.FillDelay)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, conn.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "/tmp/tradesim.db", cfg.Database.Path)
}

func TestLoadJSONFile(t *testing.T) {
	path := writeConfig(t, "config.json", `{"stop_loss": {"pct": "0.03"}, "order": {"slippage": "0.0005"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assertDec(t, "0.03", cfg.StopLossPct)
	assertDec(t, "0.0005", cfg.Order.Slippage)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "risk:\n  max_order_value: \"1000\"\n")
	t.Setenv("TRADESIM_RISK_MAX_ORDER_VALUE", "7500")
	t.Setenv("TRADESIM_ORDER_FILL_DELAY", "25ms")
	t.Setenv("TRADESIM_DATABASE_DRIVER", "postgres")
	t.Setenv("TRADESIM_DATABASE_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)
	assertDec(t, "7500", cfg.Risk.MaxOrderValue)
	assert.Equal(t, 25*time.Millisecond, cfg.Order.FillDelay)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, conn.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestResolveRejectsInvalidValues(t *testing.T) {
	base := func() FileConfig {
		return FileConfig{
			Bus:       BusConfig{HistorySize: 10, QueueCapacity: 10},
			Risk:      RiskConfig{MaxOrderValue: "1", MaxPositionSize: "1", MaxDrawdown: "0.1", DefaultPrice: "1"},
			Portfolio: PortfolioConfig{InitialCash: "1"},
			StopLoss:  StopLossConfig{Pct: "0.02"},
			Order:     OrderConfig{Slippage: "0"},
		}
	}

	_, err := Resolve(base())
	require.NoError(t, err)

	cases := map[string]func(*FileConfig){
		"not a decimal":    func(c *FileConfig) { c.Risk.MaxOrderValue = "abc" },
		"zero limit":       func(c *FileConfig) { c.Risk.MaxPositionSize = "0" },
		"drawdown too big": func(c *FileConfig) { c.Risk.MaxDrawdown = "1" },
		"negative pct":     func(c *FileConfig) { c.StopLoss.Pct = "-0.1" },
		"negative cash":    func(c *FileConfig) { c.Portfolio.InitialCash = "-5" },
		"negative delay":   func(c *FileConfig) { c.Order.FillDelay = -time.Second },
		"zero history":     func(c *FileConfig) { c.Bus.HistorySize = 0 },
		"negative fan-out": func(c *FileConfig) { c.Bus.MaxConcurrency = -1 },
		"zero queue":       func(c *FileConfig) { c.Bus.QueueCapacity = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			_, err := Resolve(cfg)
			assert.ErrorIs(t, err, exception.ErrInvalidConfig)
		})
	}

	cfg := base()
	cfg.Database.Driver = "mysql"
	_, err = Resolve(cfg)
	assert.ErrorIs(t, err, exception.ErrUnsupportedDriver)
}
