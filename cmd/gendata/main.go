// Command gendata writes a synthetic tick CSV, optionally with injected
// liquidity gaps and spread spikes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"microstructure-lab/internal/config"
	"microstructure-lab/internal/ingestion"
	"microstructure-lab/internal/synthetic"
)

func main() {
	def := synthetic.DefaultConfig()

	output := flag.String("output", "ticks.csv", "Output CSV path")
	rows := flag.Int("rows", def.Rows, "Number of rows")
	seed := flag.Int64("seed", def.Seed, "Random seed")
	start := flag.String("start", def.Start.Format(time.RFC3339), "First timestamp (RFC3339)")
	interval := flag.Duration("interval", def.Interval, "Time between rows")
	price := flag.Float64("price", def.StartPrice, "Starting mid price")
	gapAt := flag.Int("gap-at", -1, "First row of an injected liquidity gap (-1 disables)")
	gapRows := flag.Int("gap-rows", 10, "Length of the liquidity gap in rows")
	gapFactor := flag.Float64("gap-factor", 0.05, "Volume multiplier inside the gap")
	spikeAt := flag.Int("spike-at", -1, "First row of an injected spread spike (-1 disables)")
	spikeRows := flag.Int("spike-rows", 5, "Length of the spread spike in rows")
	spikeWiden := flag.Float64("spike-widen", 0.5, "Amount added to the spread, split across both sides")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := config.NewLogger(config.LoggingConfig{Level: *logLevel, Format: "text"}, os.Stderr).With("cmd", "gendata")

	startTime, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		logger.Error("invalid --start", "error", err)
		os.Exit(2)
	}

	cfg := def
	cfg.Rows = *rows
	cfg.Seed = *seed
	cfg.Start = startTime.UTC()
	cfg.Interval = *interval
	cfg.StartPrice = *price

	ticks := synthetic.Generate(cfg)
	if *gapAt >= 0 {
		synthetic.InjectLiquidityGap(ticks, *gapAt, *gapAt+*gapRows, *gapFactor)
	}
	if *spikeAt >= 0 {
		synthetic.InjectSpreadSpike(ticks, *spikeAt, *spikeAt+*spikeRows, *spikeWiden)
	}

	f, err := os.Create(*output)
	if err != nil {
		logger.Error("create output", "error", err)
		os.Exit(1)
	}
	w := bufio.NewWriter(f)
	if err := ingestion.WriteTicksCSV(w, ticks); err != nil {
		f.Close()
		logger.Error("write ticks", "error", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		logger.Error("flush output", "error", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		logger.Error("close output", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d ticks to %s\n", len(ticks), *output)
}
