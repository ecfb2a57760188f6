package query

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// NewRouter exposes the service over HTTP.
//
//	GET /health
//	GET /prices/history?year=2024&location=HB_NORTH
//	GET /prices/locations?year=2024
func NewRouter(s *Service) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/prices/history", s.historyHandler).Methods(http.MethodGet)
	r.HandleFunc("/prices/locations", s.locationsHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) historyHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	res := s.Query(year, r.URL.Query().Get("location"))
	writeJSON(w, statusFor(res.Err), res)
}

func (s *Service) locationsHandler(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}

	locs, err := s.Locations(year)
	switch {
	case errors.Is(err, ErrNotFound):
		locs = []string{}
	case err != nil:
		writeJSON(w, statusFor(err), Result{Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "locations": locs})
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Year parameter required"})
		return 0, false
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year " + strconv.Quote(raw)})
		return 0, false
	}
	return year, true
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoLocationColumn):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
