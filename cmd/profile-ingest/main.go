// profile-ingest - Load capacity-factor profiles into ClickHouse
//
// Reads <Tech>_<hub>_<year>.json (and, with -tmy, <Tech>_<hub>_TMY.json)
// from the profile directory into ercot.capacity_factors. Typical-year
// rows are stored with year 0.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/profile-ingest ./cmd/profile-ingest

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/chstore"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/profile"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	dir := flag.String("dir", cfg.ProfilesDir(), "Profile directory")
	includeTMY := flag.Bool("tmy", false, "Also load typical-year profiles")
	onlyTMY := flag.Bool("tmy-only", false, "Load only typical-year profiles")
	chHost := flag.String("ch-host", cfg.ClickHouseHost, "ClickHouse address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	createTable := flag.Bool("create-table", true, "Create the table if it does not exist")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "profile-ingest v%s - Capacity Factor Loader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Loads profile JSON files into %s.%s.\n\n", cfg.ClickHouseDatabase, chstore.ProfilesTable)
		flag.PrintDefaults()
	}

	flag.Parse()

	logger := common.NewLogger(*logLevel)
	defer logger.Sync()
	runID := common.NewRunID()
	log := logger.Sugar().With("run", runID[:8])

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(*dir, "*.json"))
		if err != nil {
			log.Errorf("Cannot list %s: %v", *dir, err)
			os.Exit(1)
		}
		files = matches
	}
	sort.Strings(files)

	type job struct {
		path string
		name profile.Name
	}
	var jobs []job
	for _, f := range files {
		name, ok := profile.ParseFileName(f)
		if !ok {
			continue
		}
		switch {
		case *onlyTMY && !name.TMY():
			continue
		case !*onlyTMY && !*includeTMY && name.TMY():
			continue
		}
		jobs = append(jobs, job{path: f, name: name})
	}

	common.Banner(log, fmt.Sprintf("Profile Ingest v%s", Version))
	log.Infof("Source:   %s", *dir)
	log.Infof("Profiles: %d", len(jobs))

	if len(jobs) == 0 {
		log.Warn("No profile files to load")
		return
	}

	ctx, cancel := common.SignalContext(log)
	defer cancel()

	opts := chstore.OptionsFromConfig(cfg)
	opts.Addr, opts.Database = *chHost, *chDB

	log.Infof("Connecting to ClickHouse at %s...", opts.Addr)
	w, err := chstore.OpenProfiles(ctx, opts)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	defer w.Close()
	log.Infof("Table:    %s", w.Table())

	if *createTable {
		if err := w.EnsureSchema(ctx); err != nil {
			log.Errorf("Create table: %v", err)
			os.Exit(1)
		}
	}

	stats := common.NewStats()
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}

		values, err := profile.Load(j.path)
		if err != nil {
			log.Errorf("[%s] Read error: %v", filepath.Base(j.path), err)
			stats.Failed()
			continue
		}

		n, err := w.Write(ctx, chstore.ProfileRecord{
			Technology: j.name.Technology,
			Hub:        j.name.Hub,
			Year:       j.name.Year,
			Values:     values,
		})
		if err != nil {
			log.Errorf("[%s] Insert error: %v", filepath.Base(j.path), err)
			stats.Failed()
			continue
		}
		stats.AddRows(n)
		stats.Completed()
		log.Debugf("[%s] Inserted %d hours", filepath.Base(j.path), n)
	}

	os.Exit(common.Finish(log, stats, "Ingest Summary", "profile-ingest", runID, *metricsFile))
}
