// price-ingest - Load archived yearly price tables into ClickHouse
//
// Each year replaces its own partition of ercot.spp_raw, so re-running a
// year never duplicates rows.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/price-ingest ./cmd/price-ingest

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/archiver"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/chstore"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	years := flag.String("years", "", "Years to load (e.g. 2024 or 2020-2025)")
	pricesDir := flag.String("prices-dir", cfg.PricesDir(), "Directory holding ercot_rtm_<year>.parquet")
	chHost := flag.String("ch-host", cfg.ClickHouseHost, "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	batchSize := flag.Int("batch", chstore.DefaultBatchSize, "Rows per INSERT block")
	createTable := flag.Bool("create-table", true, "Create the table if it does not exist")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	progress := flag.Duration("progress", 30*time.Second, "Progress report interval (0 disables)")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "price-ingest v%s - Price Table Loader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -years 2024 [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Loads ercot_rtm_<year>.parquet into %s.%s using the native protocol.\n\n", cfg.ClickHouseDatabase, chstore.PricesTable)
		flag.PrintDefaults()
	}

	flag.Parse()

	logger := common.NewLogger(*logLevel)
	defer logger.Sync()
	runID := common.NewRunID()
	log := logger.Sugar().With("run", runID[:8])

	if *years == "" {
		flag.Usage()
		os.Exit(2)
	}
	yearList, err := common.ParseYears(*years)
	if err != nil {
		log.Errorf("Invalid -years: %v", err)
		os.Exit(2)
	}

	common.Banner(log, fmt.Sprintf("Price Ingest v%s", Version))
	log.Infof("Source: %s", *pricesDir)
	log.Infof("Years:  %v", yearList)

	ctx, cancel := common.SignalContext(log)
	defer cancel()

	opts := chstore.OptionsFromConfig(cfg)
	opts.Addr, opts.Database = *chHost, *chDB

	log.Infof("Connecting to ClickHouse at %s...", opts.Addr)
	loader, err := chstore.DialPrices(ctx, opts, logger)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer loader.Close()
	loader.BatchSize = *batchSize
	log.Infof("Table:  %s", loader.Table())

	if *createTable {
		if err := loader.EnsureSchema(ctx); err != nil {
			log.Errorf("Create table: %v", err)
			os.Exit(1)
		}
	}

	stats := common.NewStats()
	if *progress > 0 {
		stats.StartReporter(log, *progress)
	}
	for _, year := range yearList {
		if ctx.Err() != nil {
			break
		}

		path := archiver.Path(*pricesDir, year)
		if !common.FileExists(path) {
			log.Warnf("[%d] %s not found, skipped", year, path)
			stats.Skipped()
			continue
		}

		tbl, err := table.ReadPricesIn(path, cfg.Location())
		if err != nil {
			log.Errorf("[%d] Read error: %v", year, err)
			stats.Failed()
			continue
		}
		if tbl.Dropped > 0 {
			log.Warnf("[%d] %d rows without a usable timestamp dropped", year, tbl.Dropped)
		}

		n, err := loader.Load(ctx, year, tbl.Rows)
		stats.AddRows(n)
		if err != nil {
			log.Errorf("[%d] Insert error after %d rows: %v", year, n, err)
			stats.Failed()
			continue
		}
		log.Infof("[%d] Inserted %d rows", year, n)
		stats.Completed()
	}

	os.Exit(common.Finish(log, stats, "Ingest Summary", "price-ingest", runID, *metricsFile))
}
