package tape

import (
	"context"
	"io"
	"os"
	"time"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Clock allows deterministic pacing in tests.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PlayerConfig controls tape playback.
type PlayerConfig struct {
	Path string
	// Speed scales the gaps between row timestamps. 1 is real time, 0 disables pacing.
	Speed float64
	// Interval is a fixed gap between rows, used when Speed is 0.
	Interval time.Duration
}

// Validate checks if the config is usable.
func (c PlayerConfig) Validate() error {
	if c.Path == "" {
		return errors.Wrap(exception.ErrInvalidConfig, "tape path is empty")
	}
	if c.Speed < 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "tape speed must be >= 0, got %v", c.Speed)
	}
	if c.Interval < 0 {
		return errors.Wrapf(exception.ErrInvalidConfig, "tape interval must be >= 0, got %s", c.Interval)
	}
	return nil
}

// Player replays a tape file row by row.
type Player struct {
	cfg   PlayerConfig
	clock Clock
}

// NewPlayer validates the config and creates a player.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Player{cfg: cfg, clock: realClock{}}, nil
}

// WithClock swaps the clock implementation.
func (p *Player) WithClock(clock Clock) *Player {
	if clock != nil {
		p.clock = clock
	}
	return p
}

// Run calls emit for every row until the tape ends, ctx is done or emit fails.
// It returns the number of rows emitted.
func (p *Player) Run(ctx context.Context, emit func(context.Context, schema.Payload) error) (int, error) {
	if emit == nil {
		return 0, errors.Wrap(exception.ErrNilInstance, "tape emit func")
	}
	file, err := os.Open(p.cfg.Path)
	if err != nil {
		return 0, errors.Wrapf(err, "open tape %s", p.cfg.Path)
	}
	defer file.Close()

	reader := NewReader(file)
	var (
		count  int
		prevTS time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return count, ctx.Err()
		default:
		}

		payload, err := reader.Next()
		if err == io.EOF {
			logs.Infof("tape finished, path: %s, rows: %d", p.cfg.Path, count)
			return count, nil
		}
		if err != nil {
			return count, errors.Wrapf(err, "read %s", p.cfg.Path)
		}

		if count > 0 {
			if err := p.pace(ctx, timestampOf(payload), &prevTS); err != nil {
				return count, err
			}
		} else {
			prevTS = timestampOf(payload)
		}
		if err := emit(ctx, payload); err != nil {
			return count, errors.Wrapf(err, "emit line %d", reader.Line())
		}
		count++
	}
}

func (p *Player) pace(ctx context.Context, ts time.Time, prevTS *time.Time) error {
	if p.cfg.Speed <= 0 {
		return p.clock.Sleep(ctx, p.cfg.Interval)
	}
	if ts.IsZero() {
		return nil
	}
	if !prevTS.IsZero() {
		if delta := ts.Sub(*prevTS); delta > 0 {
			if err := p.clock.Sleep(ctx, time.Duration(float64(delta)/p.cfg.Speed)); err != nil {
				return err
			}
		}
	}
	*prevTS = ts
	return nil
}

func timestampOf(p schema.Payload) time.Time {
	switch v := p.(type) {
	case schema.Tick:
		return v.Timestamp
	case schema.Signal:
		return v.Timestamp
	default:
		return time.Time{}
	}
}
