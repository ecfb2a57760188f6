// tmy-generate - Average yearly capacity-factor profiles into typical-year
// (TMY) profiles per technology and hub
//
// Input:  <data-dir>/profiles/<Tech>_<hub>_<year>.json
// Output: <data-dir>/profiles/<Tech>_<hub>_TMY.json (8760 values, 4 decimals)
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/tmy-generate ./cmd/tmy-generate

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/tmy"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	years := flag.String("years", "2020-2025", "Years eligible for averaging")
	dir := flag.String("dir", cfg.ProfilesDir(), "Profile directory")
	outDir := flag.String("out", "", "Output directory (default: -dir)")
	hubsFile := flag.String("hubs-file", cfg.HubsFile, "YAML hub definitions (default: built-in ERCOT hubs)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tmy-generate v%s - Typical Year Aggregator\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Years shorter than 8760 hours are excluded; longer ones are cut to 8760.\n\n")
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

	common.Banner(log, fmt.Sprintf("TMY Generate v%s", Version))
	log.Infof("Profiles: %s", *dir)
	log.Infof("Years:    %v", yearList)

	ctx, cancel := common.SignalContext(log)
	defer cancel()

	stats := common.NewStats()
	a := &tmy.Aggregator{
		Dir:    *dir,
		OutDir: *outDir,
		Years:  yearList,
		Log:    log,
		Stats:  stats,
	}
	if err := a.Run(ctx, hubs.Located()); err != nil {
		log.Debugf("Failures: %v", err)
	}

	os.Exit(common.Finish(log, stats, "TMY Summary", "tmy-generate", runID, *metricsFile))
}
