// price-archive - Archive a calendar year of ERCOT real-time settlement
// point prices per file
//
// Providers:
//   - gridstatus: GridStatus hosted API (GRIDSTATUS_API_KEY)
//   - ercot-archive: manually downloaded ERCOT MIS reports in <dir>/RTM_<year>/
//
// Output: <data-dir>/prices/ercot_rtm_<year>.parquet
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/price-archive ./cmd/price-archive

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/archiver"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/market"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	years := flag.String("years", "2020-2025", "Years to archive (e.g. 2020-2025 or 2021,2023)")
	provider := flag.String("provider", "gridstatus", "Price source: gridstatus or ercot-archive")
	archiveDir := flag.String("archive-dir", "ercot_spp_downloads", "ERCOT MIS report directory (ercot-archive provider)")
	dataset := flag.String("dataset", market.DefaultGridStatusDataset, "GridStatus dataset (gridstatus provider)")
	outDir := flag.String("out", cfg.PricesDir(), "Output directory")
	delay := flag.Duration("delay", cfg.RequestDelay, "Minimum delay between provider requests")
	timeout := flag.Duration("timeout", cfg.HTTPTimeout, "HTTP timeout per request")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	progress := flag.Duration("progress", 30*time.Second, "Progress report interval (0 disables)")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "price-archive v%s - Settlement Price Archiver\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Fetches each year once and writes ercot_rtm_<year>.parquet.\n")
		fmt.Fprintf(os.Stderr, "A failed year is logged and skipped; the exit status is 1 if any year failed.\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  GRIDSTATUS_API_KEY     API key for the gridstatus provider\n")
		fmt.Fprintf(os.Stderr, "  GRIDLAB_DATA_DIR       Base data directory (default public/data)\n")
		fmt.Fprintf(os.Stderr, "  GRIDLAB_TIMEZONE       Zone for the time_central column (default America/Chicago)\n")
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

	var src market.Provider
	switch *provider {
	case "gridstatus":
		if cfg.GridStatusAPIKey == "" {
			log.Warn("GRIDSTATUS_API_KEY is not set; requests will likely be rejected")
		}
		src = market.NewGridStatus(nil, market.GridStatusOptions{
			Dataset: *dataset,
			APIKey:  cfg.GridStatusAPIKey,
			Delay:   *delay,
			Timeout: *timeout,
		})
	case "ercot-archive":
		src = &market.ArchiveProvider{Dir: *archiveDir, Location: cfg.Location()}
	default:
		log.Errorf("Unknown -provider %q (want gridstatus or ercot-archive)", *provider)
		os.Exit(2)
	}

	common.Banner(log, fmt.Sprintf("Price Archive v%s", Version))
	log.Infof("Provider:    %s", src.Name())
	log.Infof("Years:       %v", yearList)
	log.Infof("Destination: %s", *outDir)
	log.Infof("Timezone:    %s", cfg.Location())

	ctx, cancel := common.SignalContext(log)
	defer cancel()

	stats := common.NewStats()
	if *progress > 0 {
		stats.StartReporter(log, *progress)
	}
	a := &archiver.Archiver{
		Provider: src,
		OutDir:   *outDir,
		Location: cfg.Location(),
		Log:      log,
		Stats:    stats,
	}

	if err := a.Prepare(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	if err := a.Run(ctx, yearList); err != nil {
		log.Debugf("Failures: %v", err)
	}

	os.Exit(common.Finish(log, stats, "Archive Summary", "price-archive", runID, *metricsFile))
}
