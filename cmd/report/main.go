// Command report renders REPORT.md (and optionally an xlsx workbook) from the
// runs stored for a dataset.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"microstructure-lab/internal/config"
	"microstructure-lab/internal/reporting"
	"microstructure-lab/internal/storage"
	"microstructure-lab/internal/storage/stores"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file (ignored when missing)")
	datasetID := flag.String("dataset", "", "Dataset ID to report on (required)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides output.dir)")
	recent := flag.Int("recent-alerts", reporting.DefaultRecentAlerts, "Number of alerts listed")
	xlsx := flag.Bool("xlsx", false, "Also write report.xlsx")
	flag.Parse()

	cfg, err := config.Load(config.LoadOptions{File: *configPath, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logging, os.Stderr).With("cmd", "report")

	if *datasetID == "" {
		logger.Error("--dataset is required")
		os.Exit(2)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	ctx := context.Background()

	set, err := stores.Open(ctx, cfg.Storage, stores.Options{})
	if err != nil {
		logger.Error("open stores", "error", err)
		os.Exit(1)
	}
	defer set.Close()
	if set.Ticks == nil || set.Runs == nil || set.Alerts == nil {
		logger.Error("report needs storage.postgres_dsn and storage.clickhouse_dsn")
		os.Exit(2)
	}

	gen := reporting.NewGenerator(set.Ticks, set.Runs, set.Alerts).WithRecentAlerts(*recent)
	report, err := gen.Generate(ctx, *datasetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Error("no runs stored for dataset", "dataset_id", *datasetID)
			os.Exit(1)
		}
		logger.Error("generate report", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		logger.Error("create output dir", "error", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(cfg.Output.Dir, "REPORT.md")
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0644); err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}
	written := []string{mdPath}

	if *xlsx || cfg.Output.XLSX {
		path, err := writeXLSX(cfg.Output.Dir, report)
		if err != nil {
			logger.Error("write xlsx", "error", err)
			os.Exit(1)
		}
		written = append(written, path)
	}

	fmt.Println("Report generated:")
	for _, p := range written {
		fmt.Printf("  - %s\n", p)
	}
}

func writeXLSX(dir string, report *reporting.Report) (string, error) {
	path := filepath.Join(dir, "report.xlsx")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := reporting.WriteXLSX(f, report, report.RecentAlerts); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
