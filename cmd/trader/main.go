package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"tradesim/internal/ops"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

type options struct {
	tapePath         string
	tapeSpeed        float64
	symbols          []string
	tickInterval     time.Duration
	seed             uint64
	snapshotPath     string
	snapshotInterval time.Duration
	restore          bool
	metricsAddr      string
	pyroscopeAddr    string
}

func main() {
	configPath := flag.String("config", "", "Path to YAML/JSON config (TRADESIM_* env vars override)")
	tapePath := flag.String("tape", "", "JSON-lines tape of ticks and signals (default: synthetic ticks)")
	tapeSpeed := flag.Float64("tape-speed", 0, "Tape playback speed (1=real-time, 0=use --tick-interval)")
	symbols := flag.String("symbols", "AAPL,MSFT,GOOGL", "Comma separated symbols for synthetic ticks")
	tickInterval := flag.Duration("tick-interval", 500*time.Millisecond, "Delay between synthetic tick rounds or tape rows")
	seed := flag.Uint64("seed", 0, "Random walk seed (0=time based)")
	snapshotPath := flag.String("snapshot-path", "portfolio.json", "Portfolio snapshot file (empty=disable)")
	snapshotInterval := flag.Duration("snapshot-interval", time.Minute, "Periodic snapshot interval (0=only on exit)")
	restore := flag.Bool("restore", false, "Restore the portfolio from --snapshot-path before starting")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address, e.g. :9100 (empty=disable)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config, err: %+v", err)
		os.Exit(1)
	}

	opt := options{
		tapePath:         *tapePath,
		tapeSpeed:        *tapeSpeed,
		symbols:          splitSymbols(*symbols),
		tickInterval:     *tickInterval,
		seed:             *seed,
		snapshotPath:     *snapshotPath,
		snapshotInterval: *snapshotInterval,
		restore:          *restore,
		metricsAddr:      *metricsAddr,
		pyroscopeAddr:    *pyroscopeAddr,
	}
	if opt.seed == 0 {
		opt.seed = uint64(time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown signal received")
		cancel()
	}()

	if err := run(ctx, loaded, opt); err != nil {
		logs.Errorf("trader stopped, err: %+v", err)
		os.Exit(1)
	}
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
