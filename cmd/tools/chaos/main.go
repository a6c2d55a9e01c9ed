package main

import (
	"flag"
	"io"
	"os"

	"tradesim/internal/chaos"
	"tradesim/internal/schema"
	"tradesim/internal/tape"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	input := flag.String("input", "", "Input tape")
	output := flag.String("output", "", "Output tape")
	seed := flag.Uint64("seed", 0, "RNG seed (0=now)")
	dropRate := flag.Float64("drop-rate", 0, "Drop probability [0-1]")
	dupRate := flag.Float64("dup-rate", 0, "Duplicate probability [0-1]")
	reorderWindow := flag.Int("reorder-window", 1, "Reorder window (>=1)")
	maxDelay := flag.Duration("max-delay", 0, "Max timestamp delay")
	flag.Parse()

	engine, err := chaos.NewEngine(chaos.Config{
		Seed:          *seed,
		DropRate:      *dropRate,
		DuplicateRate: *dupRate,
		ReorderWindow: *reorderWindow,
		MaxDelay:      *maxDelay,
	})
	if err != nil {
		logs.Errorf("chaos config invalid, err: %+v", err)
		os.Exit(1)
	}

	in, out, err := perturb(*input, *output, engine)
	if err != nil {
		logs.Errorf("chaos failed, err: %+v", err)
		os.Exit(1)
	}
	logs.Infof("chaos done, input rows: %d, output rows: %d, output: %s", in, out, *output)
}

func perturb(inputPath, outputPath string, engine *chaos.Engine) (int, int, error) {
	if inputPath == "" || outputPath == "" {
		return 0, 0, errors.New("input and output are required")
	}
	src, err := os.Open(inputPath)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "open %s", inputPath)
	}
	defer src.Close()

	dst, err := os.Create(outputPath)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "create %s", outputPath)
	}
	defer dst.Close()

	reader := tape.NewReader(src)
	writer := tape.NewWriter(dst)
	var read, written int
	emit := func(rows []schema.Payload) error {
		for _, p := range rows {
			if err := writer.Write(p); err != nil {
				return err
			}
			written++
		}
		return nil
	}

	for {
		p, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return read, written, err
		}
		read++
		if err := emit(engine.Process(p)); err != nil {
			return read, written, err
		}
	}
	if err := emit(engine.Flush()); err != nil {
		return read, written, err
	}
	if err := writer.Flush(); err != nil {
		return read, written, errors.Wrap(err, "flush")
	}
	return read, written, nil
}
