// Package hub holds the settlement-hub reference data shared by the price
// and weather pipelines. Hubs are defined once, either from the built-in
// ERCOT defaults or from a YAML file, and never mutated afterwards.
package hub

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// HubAverage is the provider-supplied average-of-hubs settlement point.
const HubAverage = "HB_HUBAVG"

// Hub is a named pricing or geographic reference point.
type Hub struct {
	ID     string   `yaml:"id"`             // settlement point code, e.g. HB_NORTH
	Region string   `yaml:"region"`         // descriptive region name, e.g. North
	Site   string   `yaml:"site,omitempty"` // representative weather site
	Lat    *float64 `yaml:"lat,omitempty"`  // weather latitude
	Lon    *float64 `yaml:"lon,omitempty"`  // weather longitude
	Core   bool     `yaml:"core,omitempty"` // contributes to a derived hub average
}

// HasLocation reports whether the hub can be used for weather processing.
func (h Hub) HasLocation() bool {
	return h.Lat != nil && h.Lon != nil
}

// Set is an ordered, immutable collection of hubs.
type Set struct {
	hubs []Hub
}

type fileFormat struct {
	Hubs []Hub `yaml:"hubs"`
}

func ptr(v float64) *float64 { return &v }

// Defaults returns the ERCOT trading hubs with their weather sites.
func Defaults() *Set {
	return &Set{hubs: []Hub{
		{ID: "HB_NORTH", Region: "North", Site: "Waxahachie", Lat: ptr(32.3865), Lon: ptr(-96.8475), Core: true},
		{ID: "HB_SOUTH", Region: "South", Site: "Zapata", Lat: ptr(26.9070), Lon: ptr(-99.2715), Core: true},
		{ID: "HB_WEST", Region: "West", Site: "Roscoe", Lat: ptr(32.4518), Lon: ptr(-100.5371), Core: true},
		{ID: "HB_HOUSTON", Region: "Houston", Site: "Galveston", Lat: ptr(29.3013), Lon: ptr(-94.7977), Core: true},
		{ID: "HB_PAN", Region: "Panhandle", Site: "Amarillo", Lat: ptr(35.2220), Lon: ptr(-101.8313)},
	}}
}

// New validates hubs and returns them as a Set.
func New(hubs []Hub) (*Set, error) {
	if len(hubs) == 0 {
		return nil, fmt.Errorf("no hubs defined")
	}

	seen := make(map[string]struct{}, len(hubs)*2)
	out := make([]Hub, 0, len(hubs))
	for i, h := range hubs {
		h.ID = strings.TrimSpace(h.ID)
		h.Region = strings.TrimSpace(h.Region)
		if h.ID == "" {
			return nil, fmt.Errorf("hub %d: missing id", i)
		}
		if (h.Lat == nil) != (h.Lon == nil) {
			return nil, fmt.Errorf("hub %s: lat and lon must be set together", h.ID)
		}
		if h.HasLocation() && (*h.Lat < -90 || *h.Lat > 90 || *h.Lon < -180 || *h.Lon > 180) {
			return nil, fmt.Errorf("hub %s: coordinates out of range", h.ID)
		}
		for _, key := range []string{h.ID, h.Region} {
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("hub %s: duplicate name %q", h.ID, key)
			}
			seen[key] = struct{}{}
		}
		out = append(out, h)
	}
	return &Set{hubs: out}, nil
}

// Load reads a YAML hub file. An empty path returns the defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hubs file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse hubs file %s: %w", path, err)
	}
	return New(f.Hubs)
}

// All returns a copy of the hubs in configuration order.
func (s *Set) All() []Hub {
	out := make([]Hub, len(s.hubs))
	copy(out, s.hubs)
	return out
}

// IDs returns the settlement point codes in configuration order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.hubs))
	for i, h := range s.hubs {
		ids[i] = h.ID
	}
	return ids
}

// Core returns the hubs flagged as contributors to a derived hub average.
func (s *Set) Core() []Hub {
	var out []Hub
	for _, h := range s.hubs {
		if h.Core {
			out = append(out, h)
		}
	}
	return out
}

// Located returns the hubs that carry weather coordinates.
func (s *Set) Located() []Hub {
	var out []Hub
	for _, h := range s.hubs {
		if h.HasLocation() {
			out = append(out, h)
		}
	}
	return out
}

// Resolve maps a settlement code or region name (case-insensitive) to its hub.
func (s *Set) Resolve(name string) (Hub, bool) {
	name = strings.TrimSpace(name)
	for _, h := range s.hubs {
		if strings.EqualFold(h.ID, name) || (h.Region != "" && strings.EqualFold(h.Region, name)) {
			return h, true
		}
	}
	return Hub{}, false
}

// Select filters the set to the named hubs, keeping configuration order.
// An empty selection returns the full set.
func (s *Set) Select(names []string) (*Set, error) {
	if len(names) == 0 {
		return s, nil
	}

	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		h, ok := s.Resolve(n)
		if !ok {
			return nil, fmt.Errorf("unknown hub %q", n)
		}
		want[h.ID] = struct{}{}
	}

	var out []Hub
	for _, h := range s.hubs {
		if _, ok := want[h.ID]; ok {
			out = append(out, h)
		}
	}
	return &Set{hubs: out}, nil
}

// Key is the name used in profile file names: the region when set, else the ID.
func (h Hub) Key() string {
	if h.Region != "" {
		return h.Region
	}
	return h.ID
}
