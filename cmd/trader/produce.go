package main

import (
	"context"
	stderrors "errors"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/mdg"
	"tradesim/internal/schema"
	"tradesim/internal/tape"
	"tradesim/pkg/exception"

	"github.com/yanun0323/logs"
)

const queueRetryDelay = time.Millisecond

func produce(ctx context.Context, q *bus.Queue, opt options) error {
	if opt.tapePath != "" {
		return playTape(ctx, q, opt)
	}
	return streamSynthetic(ctx, q, opt)
}

func playTape(ctx context.Context, q *bus.Queue, opt options) error {
	player, err := tape.NewPlayer(tape.PlayerConfig{
		Path:     opt.tapePath,
		Speed:    opt.tapeSpeed,
		Interval: opt.tickInterval,
	})
	if err != nil {
		return err
	}
	_, err = player.Run(ctx, func(ctx context.Context, p schema.Payload) error {
		return enqueueBlocking(ctx, q, p)
	})
	return err
}

func streamSynthetic(ctx context.Context, q *bus.Queue, opt options) error {
	gen, err := mdg.NewGenerator(opt.symbols, mdg.Config{Seed: opt.seed})
	if err != nil {
		return err
	}
	logs.Infof("synthetic ticks started, symbols: %v, interval: %s", gen.Symbols(), opt.tickInterval)

	interval := opt.tickInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			ticks, err := gen.Round(now)
			if err != nil {
				return err
			}
			for _, tk := range ticks {
				if err := q.TryPublish(schema.NewEvent(tk)); err != nil {
					if stderrors.Is(err, exception.ErrQueueClosed) {
						return nil
					}
					logs.Warnf("drop synthetic tick, symbol: %s, err: %+v", tk.Symbol, err)
				}
			}
		}
	}
}

// enqueueBlocking retries while the queue is full so a tape is never truncated.
func enqueueBlocking(ctx context.Context, q *bus.Queue, p schema.Payload) error {
	ev := schema.NewEvent(p)
	for {
		err := q.TryPublish(ev)
		if !stderrors.Is(err, exception.ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(queueRetryDelay):
		}
	}
}
