// price-hubs - Split archived yearly price tables into per-hub series
//
// Input:  <data-dir>/prices/ercot_rtm_<year>.parquet
// Output: <data-dir>/prices/ercot_<year>_hubs.json  {"HB_NORTH": [...], ...}
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/price-hubs ./cmd/price-hubs

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/extract"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	years := flag.String("years", "2010-2025", "Years to process")
	pricesDir := flag.String("prices-dir", cfg.PricesDir(), "Directory holding ercot_rtm_<year>.parquet")
	outDir := flag.String("out", "", "Output directory (default: -prices-dir)")
	hubsFile := flag.String("hubs-file", cfg.HubsFile, "YAML hub definitions (default: built-in ERCOT hubs)")
	deriveAvg := flag.Bool("derive-hubavg", false, "Derive HB_HUBAVG from the core hubs when the table has none")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "price-hubs v%s - Hub Price Extractor\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Writes one JSON map of hub -> price series per year.\n")
		fmt.Fprintf(os.Stderr, "Missing years are skipped; missing prices are written as null.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	logger := common.NewLogger(*logLevel)
	defer logger.Sync()
	runID := common.NewRunID()
	log := logger.Sugar().With("run", runID[:8])

	yearList, err := common.ParseYears(*years)
	if err != nil {
		log.Errorf("Invalid -years: %v", err)
		os.Exit(2)
	}
	hubs, err := hub.Load(*hubsFile)
	if err != nil {
		log.Errorf("Hubs: %v", err)
		os.Exit(2)
	}

	common.Banner(log, fmt.Sprintf("Price Hubs v%s", Version))
	log.Infof("Source: %s", *pricesDir)
	log.Infof("Hubs:   %v", hubs.IDs())
	log.Infof("Years:  %v", yearList)
	if *deriveAvg {
		log.Infof("HB_HUBAVG: derived when absent")
	}

	ctx, cancel := common.SignalContext(log)
	defer cancel()

	stats := common.NewStats()
	e := &extract.Extractor{
		PricesDir:    *pricesDir,
		OutDir:       *outDir,
		Hubs:         hubs,
		DeriveHubAvg: *deriveAvg,
		Log:          log,
		Stats:        stats,
	}
	if err := e.Run(ctx, yearList); err != nil {
		log.Debugf("Failures: %v", err)
	}

	os.Exit(common.Finish(log, stats, "Extract Summary", "price-hubs", runID, *metricsFile))
}
