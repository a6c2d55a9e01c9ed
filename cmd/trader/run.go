package main

import (
	"context"
	stderrors "errors"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/obs"
	"tradesim/internal/ops"
	"tradesim/internal/order"
	"tradesim/internal/persist"
	"tradesim/internal/risk"
	"tradesim/internal/state"
	"tradesim/internal/stoploss"
	"tradesim/pkg/conn"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

type engine struct {
	bus      *bus.Bus
	queue    *bus.Queue
	metrics  *obs.Metrics
	tracker  *state.Tracker
	risk     *risk.Manager
	orders   *order.Manager
	stops    *stoploss.Manager
	recorder *persist.Subscriber
	db       *conn.Client
}

func run(ctx context.Context, loaded ops.Loaded, opt options) error {
	stopProfiler, err := startProfiler(opt.pyroscopeAddr)
	if err != nil {
		return err
	}
	defer stopProfiler()

	e, err := buildEngine(ctx, loaded, opt)
	if err != nil {
		return err
	}
	defer e.close()

	stopMetrics, err := serveMetrics(opt.metricsAddr, e.metrics)
	if err != nil {
		return err
	}
	defer stopMetrics()

	produced := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.queue.Pump(gctx, e.bus)
		return nil
	})
	g.Go(func() error {
		defer close(produced)
		defer e.queue.Close()
		return produce(gctx, e.queue, opt)
	})
	if opt.snapshotInterval > 0 {
		g.Go(func() error {
			e.snapshotLoop(gctx, produced, opt)
			return nil
		})
	}

	runErr := g.Wait()
	if stderrors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	e.stop()
	e.saveSnapshot(context.Background(), opt.snapshotPath)
	e.logSummary()
	return runErr
}

func buildEngine(ctx context.Context, loaded ops.Loaded, opt options) (*engine, error) {
	metrics := obs.NewMetrics()
	b := bus.New(bus.Options{
		HistorySize:    loaded.Bus.HistorySize,
		MaxConcurrency: loaded.Bus.MaxConcurrency,
		Metrics:        metrics,
	})

	e := &engine{
		bus:     b,
		queue:   bus.NewQueue(loaded.Bus.QueueCapacity, metrics),
		metrics: metrics,
		tracker: state.NewTracker(b, loaded.InitialCash),
	}

	if opt.restore {
		snap, err := state.ReadSnapshot(opt.snapshotPath)
		if err != nil {
			return nil, errors.Wrap(err, "restore portfolio")
		}
		if err := e.tracker.Restore(snap); err != nil {
			return nil, errors.Wrap(err, "restore portfolio")
		}
		logs.Infof("portfolio restored, path: %s, positions: %d, cash: %s", opt.snapshotPath, len(snap.Positions), snap.Cash)
	}

	e.risk = risk.NewManager(b, e.tracker, loaded.Risk, metrics)
	e.orders = order.NewManager(b, e.risk, loaded.Order, metrics)
	e.stops = stoploss.NewManager(b, e.tracker, loaded.StopLossPct, metrics)

	if loaded.Database != nil {
		client, err := conn.New(*loaded.Database)
		if err != nil {
			return nil, errors.Wrap(err, "open database")
		}
		repo := persist.NewRepository(client.DB())
		if err := repo.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		e.db = client
		e.recorder = persist.NewSubscriber(b, repo)
		e.recorder.Start()
	}

	e.tracker.Start()
	e.risk.Start()
	e.orders.Start()
	e.stops.Start()
	logs.Infof("engine started, initial cash: %s, stop pct: %s, persistence: %v",
		loaded.InitialCash, loaded.StopLossPct, e.recorder != nil)
	return e, nil
}

func (e *engine) stop() {
	stoppers := []struct {
		name string
		stop func() error
	}{
		{"stop loss", e.stops.Stop},
		{"order", e.orders.Stop},
		{"risk", e.risk.Stop},
		{"tracker", e.tracker.Stop},
	}
	for _, s := range stoppers {
		if err := s.stop(); err != nil {
			logs.Warnf("stop %s manager, err: %+v", s.name, err)
		}
	}
	if e.recorder != nil {
		if err := e.recorder.Stop(); err != nil {
			logs.Warnf("stop persistence subscriber, err: %+v", err)
		}
	}
}

func (e *engine) close() {
	e.bus.Close()
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			logs.Warnf("close database, err: %+v", err)
		}
	}
}

func (e *engine) snapshotLoop(ctx context.Context, done <-chan struct{}, opt options) {
	ticker := time.NewTicker(opt.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			e.saveSnapshot(ctx, opt.snapshotPath)
		}
	}
}

func (e *engine) saveSnapshot(ctx context.Context, path string) {
	snap := e.tracker.Snapshot()
	if e.recorder != nil {
		if err := e.recorder.RecordSnapshot(ctx, snap); err != nil {
			logs.Errorf("persist snapshot, err: %+v", err)
		}
	}
	if path == "" {
		return
	}
	if err := state.WriteSnapshot(path, snap); err != nil {
		logs.Errorf("write snapshot, err: %+v", err)
		return
	}
	logs.Infof("snapshot saved, path: %s, equity: %s, cash: %s", path, snap.TotalEquity, snap.Cash)
}

func (e *engine) logSummary() {
	snap := e.tracker.Snapshot()
	for _, pos := range e.tracker.Positions() {
		logs.Infof("position, symbol: %s, qty: %d, avg: %s, unrealized: %s, realized: %s",
			pos.Symbol, pos.Quantity, pos.AvgEntryPrice, pos.UnrealizedPnL, pos.RealizedPnL)
	}
	logs.Infof("portfolio, equity: %s, cash: %s, unrealized: %s, realized: %s, orders: %d",
		snap.TotalEquity, snap.Cash, snap.TotalUnrealizedPnL, snap.TotalRealizedPnL, len(e.orders.Orders()))

	m := e.metrics.Snapshot()
	logs.Infof("metrics: events=%v faults=%v risk_reasons=%v fills=%d stops=%d drops=%d closed=%d risk_eval=%+v order_to_fill=%+v",
		m.EventCounts, m.HandlerFaults, m.RiskReasonCounts, m.Fills, m.StopTriggers, m.QueueDrops, m.QueueClosed,
		m.RiskEvalLatency, m.OrderToFillLatency)
}
