// price-query - Read-only access to archived yearly price tables
//
// CLI mode prints exactly one JSON document to stdout:
//
//	{"data": [[time, price], ...], "columns": ["time_central", "price"]}
//	{"error": "..."}
//
// Server mode (-serve) exposes the same queries over HTTP.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/price-query ./cmd/price-query

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/query"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	pricesDir := flag.String("prices-dir", cfg.PricesDir(), "Directory holding ercot_rtm_<year>.parquet")
	hubsFile := flag.String("hubs-file", cfg.HubsFile, "YAML hub definitions used to resolve region names")
	locations := flag.Bool("locations", false, "List the settlement points available for <year>")
	serve := flag.String("serve", "", "Serve HTTP on this address (e.g. :8080) instead of answering once")
	logLevel := flag.String("log-level", "", "Log level for stderr (default: warn, info with -serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "price-query v%s - Price Archive Query\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <year> [location]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -locations <year>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -serve :8080\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Routes (server mode):\n")
		fmt.Fprintf(os.Stderr, "  GET /prices/history?year=2024&location=HB_NORTH\n")
		fmt.Fprintf(os.Stderr, "  GET /prices/locations?year=2024\n")
		fmt.Fprintf(os.Stderr, "  GET /health\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	level := *logLevel
	if level == "" {
		level = "warn"
		if *serve != "" {
			level = "info"
		}
	}
	logger := common.NewLogger(level)
	defer logger.Sync()
	log := logger.Sugar()

	hubs, err := hub.Load(*hubsFile)
	if err != nil {
		log.Warnf("Hubs: %v; region aliases disabled", err)
		hubs = nil
	}
	svc := &query.Service{Dir: *pricesDir, Hubs: hubs, Location: cfg.Location()}

	if *serve != "" {
		os.Exit(runServer(*serve, svc, log))
	}

	os.Exit(answer(svc, flag.Args(), *locations))
}

// answer prints one JSON document for a CLI query and returns the exit code.
func answer(svc *query.Service, args []string, listLocations bool) (code int) {
	enc := json.NewEncoder(os.Stdout)
	defer func() {
		if p := recover(); p != nil {
			_ = enc.Encode(map[string]string{"error": fmt.Sprint(p)})
			code = 1
		}
	}()

	if len(args) < 1 {
		_ = enc.Encode(map[string]string{"error": "Year required"})
		return 1
	}
	year, err := strconv.Atoi(args[0])
	if err != nil {
		_ = enc.Encode(map[string]string{"error": fmt.Sprintf("invalid year %q", args[0])})
		return 1
	}

	if listLocations {
		locs, err := svc.Locations(year)
		if err != nil {
			_ = enc.Encode(query.Result{Err: err})
			return 0
		}
		_ = enc.Encode(map[string]any{"year": year, "locations": locs})
		return 0
	}

	location := ""
	if len(args) > 1 {
		location = args[1]
	}
	_ = enc.Encode(svc.Query(year, location))
	return 0
}

func runServer(addr string, svc *query.Service, log *zap.SugaredLogger) int {
	ctx, cancel := common.SignalContext(log)
	defer cancel()

	router := query.NewRouter(svc)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stderr, router)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("price-query v%s listening on %s (prices: %s)", Version, addr, svc.Dir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server: %v", err)
		return 1
	}
	return 0
}
