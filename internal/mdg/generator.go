package mdg

import (
	"math"
	"math/rand/v2"
	"time"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	DefaultVolatility = 0.001
	DefaultSpread     = 0.0005
	minPrice          = 0.01
)

// Config tunes the random walk.
type Config struct {
	// BasePrices seeds the walk per symbol. Missing symbols start uniformly in [100, 500).
	BasePrices map[string]float64
	// Volatility is the standard deviation of the per-tick relative move.
	Volatility float64
	// Spread is the half spread as a fraction of price.
	Spread float64
	Seed   uint64
}

// Generator creates synthetic ticks by a geometric random walk, round-robin across symbols.
// It is not safe for concurrent use.
type Generator struct {
	symbols    []string
	prices     []float64
	volatility float64
	spread     float64
	rng        *rand.Rand
	index      int
}

// NewGenerator creates a generator for symbols.
func NewGenerator(symbols []string, cfg Config) (*Generator, error) {
	if len(symbols) == 0 {
		return nil, exception.ErrNoSymbols
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = DefaultVolatility
	}
	if cfg.Spread <= 0 {
		cfg.Spread = DefaultSpread
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	g := &Generator{
		symbols:    make([]string, 0, len(symbols)),
		prices:     make([]float64, 0, len(symbols)),
		volatility: cfg.Volatility,
		spread:     cfg.Spread,
		rng:        rng,
	}
	for _, s := range symbols {
		if s == "" {
			return nil, errors.Wrap(exception.ErrInvalidArgument, "empty symbol")
		}
		price, ok := cfg.BasePrices[s]
		if !ok || price <= 0 {
			price = 100 + rng.Float64()*400
		}
		g.symbols = append(g.symbols, s)
		g.prices = append(g.prices, price)
	}
	return g, nil
}

// Symbols returns the symbols in emission order.
func (g *Generator) Symbols() []string {
	return append([]string(nil), g.symbols...)
}

// NextRaw advances the walk of the next symbol.
func (g *Generator) NextRaw(now time.Time) RawTick {
	i := g.index
	g.index = (g.index + 1) % len(g.symbols)

	price := g.prices[i]
	price = math.Max(price+price*g.rng.NormFloat64()*g.volatility, minPrice)
	g.prices[i] = price

	half := price * g.spread
	return RawTick{
		Symbol:  g.symbols[i],
		Price:   price,
		Bid:     math.Max(price-half, 0),
		Ask:     price + half,
		Volume:  100 + g.rng.Int64N(9901),
		TsEvent: now.UnixNano(),
	}
}

// Next returns the next normalized tick.
func (g *Generator) Next(now time.Time) (schema.Tick, error) {
	return Normalize(g.NextRaw(now))
}

// Round produces one tick for every symbol.
func (g *Generator) Round(now time.Time) ([]schema.Tick, error) {
	out := make([]schema.Tick, 0, len(g.symbols))
	for range g.symbols {
		tick, err := g.Next(now)
		if err != nil {
			return nil, err
		}
		out = append(out, tick)
	}
	return out, nil
}
