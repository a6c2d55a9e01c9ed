package ops

import (
	"strings"
	"time"

	"tradesim/internal/order"
	"tradesim/internal/risk"
	"tradesim/pkg/conn"
	"tradesim/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"
)

// EnvPrefix prefixes environment overrides, e.g. TRADESIM_RISK_MAX_ORDER_VALUE.
const EnvPrefix = "TRADESIM"

// FileConfig mirrors the config file layout. Money values are strings so
// they are parsed as exact decimals.
type FileConfig struct {
	Bus       BusConfig       `mapstructure:"bus"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	StopLoss  StopLossConfig  `mapstructure:"stop_loss"`
	Order     OrderConfig     `mapstructure:"order"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

// BusConfig controls the event bus and its inbound queue.
type BusConfig struct {
	HistorySize    int `mapstructure:"history_size"`
	MaxConcurrency int `mapstructure:"max_concurrency"`
	QueueCapacity  int `mapstructure:"queue_capacity"`
}

// RiskConfig holds the pre-trade limits.
type RiskConfig struct {
	MaxOrderValue   string `mapstructure:"max_order_value"`
	MaxPositionSize string `mapstructure:"max_position_size"`
	MaxDrawdown     string `mapstructure:"max_drawdown"`
	DefaultPrice    string `mapstructure:"default_price"`
}

// PortfolioConfig holds the starting balance.
type PortfolioConfig struct {
	InitialCash string `mapstructure:"initial_cash"`
}

// StopLossConfig holds the stop distance as a fraction of entry price.
type StopLossConfig struct {
	Pct string `mapstructure:"pct"`
}

// OrderConfig controls fill simulation.
type OrderConfig struct {
	Slippage  string        `mapstructure:"slippage"`
	FillDelay time.Duration `mapstructure:"fill_delay"`
}

// DatabaseConfig enables persistence when Driver is set.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Bus         BusConfig
	Risk        risk.Config
	Order       order.Config
	InitialCash decimal.Decimal
	StopLossPct decimal.Decimal
	// Database is nil when persistence is disabled.
	Database *conn.Option
}

var defaults = map[string]any{
	"bus.history_size":           1000,
	"bus.max_concurrency":        0,
	"bus.queue_capacity":         4096,
	"risk.max_order_value":       "5000",
	"risk.max_position_size":     "10000",
	"risk.max_drawdown":          "0.05",
	"risk.default_price":         "100",
	"portfolio.initial_cash":     "100000",
	"stop_loss.pct":              "0.02",
	"order.slippage":             "0.0001",
	"order.fill_delay":           "10ms",
	"database.driver":            "",
	"database.dsn":               "",
	"database.host":              "",
	"database.port":              0,
	"database.user":              "",
	"database.password":          "",
	"database.name":              "",
	"database.path":              "",
	"database.max_open_conns":    0,
	"database.conn_max_lifetime": "0s",
}

// Load reads the config file at path, if any, applies TRADESIM_ environment
// overrides over the defaults and resolves the result.
func Load(path string) (Loaded, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config")
	}
	return Resolve(cfg)
}

// Resolve parses and validates a file config.
func Resolve(cfg FileConfig) (Loaded, error) {
	var (
		out Loaded
		err error
	)
	p := parser{}

	out.Bus = cfg.Bus
	out.Risk = risk.Config{
		MaxOrderValue:   p.positive("risk.max_order_value", cfg.Risk.MaxOrderValue),
		MaxPositionSize: p.positive("risk.max_position_size", cfg.Risk.MaxPositionSize),
		MaxDrawdown:     p.fraction("risk.max_drawdown", cfg.Risk.MaxDrawdown),
		DefaultPrice:    p.positive("risk.default_price", cfg.Risk.DefaultPrice),
	}
	out.InitialCash = p.positive("portfolio.initial_cash", cfg.Portfolio.InitialCash)
	out.StopLossPct = p.fraction("stop_loss.pct", cfg.StopLoss.Pct)
	out.Order = order.Config{
		Slippage:     p.fraction("order.slippage", cfg.Order.Slippage),
		FillDelay:    cfg.Order.FillDelay,
		DefaultPrice: out.Risk.DefaultPrice,
	}
	if p.err != nil {
		return Loaded{}, p.err
	}

	if cfg.Bus.HistorySize <= 0 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "bus.history_size must be > 0, got %d", cfg.Bus.HistorySize)
	}
	if cfg.Bus.MaxConcurrency < 0 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "bus.max_concurrency must be >= 0, got %d", cfg.Bus.MaxConcurrency)
	}
	if cfg.Bus.QueueCapacity <= 0 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "bus.queue_capacity must be > 0, got %d", cfg.Bus.QueueCapacity)
	}
	if cfg.Order.FillDelay < 0 {
		return Loaded{}, errors.Wrapf(exception.ErrInvalidConfig, "order.fill_delay must be >= 0, got %s", cfg.Order.FillDelay)
	}

	out.Database, err = resolveDatabase(cfg.Database)
	if err != nil {
		return Loaded{}, err
	}
	return out, nil
}

func resolveDatabase(cfg DatabaseConfig) (*conn.Option, error) {
	if cfg.Driver == "" {
		return nil, nil
	}
	opt := &conn.Option{
		Driver:          conn.Driver(cfg.Driver),
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Name,
		Path:            cfg.Path,
		ConnString:      cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	switch opt.Driver {
	case conn.DriverPostgres, conn.DriverSQLite:
	default:
		return nil, errors.Wrapf(exception.ErrUnsupportedDriver, "database.driver: %s", cfg.Driver)
	}
	return opt, nil
}

// parser keeps the first error so every field can be parsed in one pass.
type parser struct {
	err error
}

func (p *parser) parse(key, raw string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		p.err = errors.Wrapf(exception.ErrInvalidConfig, "%s: %q is not a decimal", key, raw)
		return decimal.Zero
	}
	return d
}

func (p *parser) positive(key, raw string) decimal.Decimal {
	d := p.parse(key, raw)
	if p.err == nil && !d.IsPositive() {
		p.err = errors.Wrapf(exception.ErrInvalidConfig, "%s must be > 0, got %s", key, d)
	}
	return d
}

// fraction accepts values in [0, 1).
func (p *parser) fraction(key, raw string) decimal.Decimal {
	d := p.parse(key, raw)
	if p.err == nil && (d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		p.err = errors.Wrapf(exception.ErrInvalidConfig, "%s must be in [0, 1), got %s", key, d)
	}
	return d
}
