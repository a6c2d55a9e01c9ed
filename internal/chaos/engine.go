package chaos

import (
	"math/rand/v2"
	"time"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
)

// Config controls chaos injection behavior.
type Config struct {
	Seed          uint64
	DropRate      float64
	DuplicateRate float64
	ReorderWindow int
	MaxDelay      time.Duration
}

// Engine perturbs a stream of tape rows to exercise the engine against
// lost, repeated, reordered and late input.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []schema.Payload
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UTC().UnixNano())
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed>>1)),
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return errors.Wrapf(exception.ErrInvalidConfig, "drop rate must be in [0, 1], got %v", c.DropRate)
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return errors.Wrapf(exception.ErrInvalidConfig, "duplicate rate must be in [0, 1], got %v", c.DuplicateRate)
	}
	if c.ReorderWindow <= 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "reorder window must be >= 1, got %d", c.ReorderWindow)
	}
	if c.MaxDelay < 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "max delay must be >= 0, got %s", c.MaxDelay)
	}
	return nil
}

// Process applies chaos to a single row and returns any output rows.
func (e *Engine) Process(p schema.Payload) []schema.Payload {
	if e == nil {
		return []schema.Payload{p}
	}
	if e.shouldDrop() {
		return nil
	}
	p = e.applyDelay(p)
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(p)
	}
	e.pending = append(e.pending, p)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	return e.applyDuplicate(e.take())
}

// Flush returns any buffered rows after processing completes.
func (e *Engine) Flush() []schema.Payload {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]schema.Payload, 0, len(e.pending))
	for len(e.pending) > 0 {
		out = append(out, e.applyDuplicate(e.take())...)
	}
	return out
}

func (e *Engine) take() schema.Payload {
	idx := e.rng.IntN(len(e.pending))
	p := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return p
}

func (e *Engine) shouldDrop() bool {
	return e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate
}

func (e *Engine) applyDuplicate(p schema.Payload) []schema.Payload {
	out := []schema.Payload{p}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, p)
	}
	return out
}

// applyDelay pushes the row timestamp later; rows without a timestamp are left alone.
func (e *Engine) applyDelay(p schema.Payload) schema.Payload {
	if e.cfg.MaxDelay <= 0 {
		return p
	}
	delay := time.Duration(e.rng.Int64N(e.cfg.MaxDelay.Nanoseconds() + 1))
	if delay == 0 {
		return p
	}
	switch v := p.(type) {
	case schema.Tick:
		if !v.Timestamp.IsZero() {
			v.Timestamp = v.Timestamp.Add(delay)
		}
		return v
	case schema.Signal:
		if !v.Timestamp.IsZero() {
			v.Timestamp = v.Timestamp.Add(delay)
		}
		return v
	default:
		return p
	}
}
