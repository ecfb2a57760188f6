// weather-profiles - Build hourly solar and wind capacity-factor profiles
// for each hub from Open-Meteo historical weather
//
// Output: <data-dir>/profiles/Solar_<hub>_<year>.json, Wind_<hub>_<year>.json
// Optional raw tables: <data-dir>/weather/weather_<hub>_<year>.parquet
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/weather-profiles ./cmd/weather-profiles

package main

import (
	"flag"
	"fmt"
	"os"
	"time"
	"strings"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/weather"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	years := flag.String("years", "2020-2025", "Years to process")
	hubNames := flag.String("hubs", "", "Comma-separated hubs by region or code (default: all located hubs)")
	hubsFile := flag.String("hubs-file", cfg.HubsFile, "YAML hub definitions (default: built-in ERCOT hubs)")
	outDir := flag.String("out", cfg.ProfilesDir(), "Profile output directory")
	rawDir := flag.String("raw-dir", cfg.WeatherDir(), "Raw weather table directory")
	keepRaw := flag.Bool("keep-raw", false, "Also write the fetched observations as parquet")
	fromRaw := flag.Bool("from-raw", false, "Rebuild profiles from -raw-dir instead of calling the API")
	baseURL := flag.String("url", weather.DefaultArchiveURL, "Open-Meteo archive endpoint")
	delay := flag.Duration("delay", cfg.RequestDelay, "Minimum delay between API requests")
	timeout := flag.Duration("timeout", cfg.HTTPTimeout, "HTTP timeout per request")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	progress := flag.Duration("progress", 30*time.Second, "Progress report interval (0 disables)")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "weather-profiles v%s - Renewable Profile Generator\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Models:\n")
		fmt.Fprintf(os.Stderr, "  Solar: clip(irradiance/1000 * 0.85, 0, 1)\n")
		fmt.Fprintf(os.Stderr, "  Wind:  cut-in 3 m/s, rated 12 m/s, cut-out 25 m/s, cubic ramp\n\n")
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
	all, err := hub.Load(*hubsFile)
	if err != nil {
		log.Errorf("Hubs: %v", err)
		os.Exit(2)
	}

	var names []string
	for _, n := range strings.Split(*hubNames, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	selected, err := all.Select(names)
	if err != nil {
		log.Errorf("Invalid -hubs: %v", err)
		os.Exit(2)
	}
	hubs := selected.Located()
	if len(names) > 0 {
		hubs = selected.All()
	}

	source := "Open-Meteo " + *baseURL
	if *fromRaw {
		source = "raw tables in " + *rawDir
	}

	common.Banner(log, fmt.Sprintf("Weather Profiles v%s", Version))
	log.Infof("Source:      %s", source)
	log.Infof("Years:       %v", yearList)
	log.Infof("Hubs:        %d", len(hubs))
	log.Infof("Destination: %s", *outDir)
	if !*fromRaw {
		log.Infof("Delay:       %v", *delay)
	}

	ctx, cancel := common.SignalContext(log)
	defer cancel()

	stats := common.NewStats()
	if *progress > 0 {
		stats.StartReporter(log, *progress)
	}
	n := &weather.Normalizer{
		Provider: weather.NewOpenMeteo(nil, weather.OpenMeteoOptions{
			BaseURL: *baseURL,
			Delay:   *delay,
			Timeout: *timeout,
		}),
		OutDir:  *outDir,
		RawDir:  *rawDir,
		KeepRaw: *keepRaw && !*fromRaw,
		FromRaw: *fromRaw,
		Log:     log,
		Stats:   stats,
	}
	if err := n.Run(ctx, hubs, yearList); err != nil {
		log.Debugf("Failures: %v", err)
	}

	os.Exit(common.Finish(log, stats, "Profile Summary", "weather-profiles", runID, *metricsFile))
}
