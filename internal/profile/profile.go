// Package profile stores hourly capacity-factor profiles as JSON arrays.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
)

// HoursPerTypicalYear is the length every aggregated profile is cut to.
const HoursPerTypicalYear = 8760

// Technology is a generation type with a capacity-factor model.
type Technology string

const (
	Solar Technology = "Solar"
	Wind  Technology = "Wind"
)

// Technologies lists every supported technology in output order.
var Technologies = []Technology{Solar, Wind}

// ParseTechnology accepts any casing of a technology name.
func ParseTechnology(s string) (Technology, error) {
	for _, t := range Technologies {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown technology %q", s)
}

// Profile is one capacity factor per hour, each in [0, 1].
type Profile []float64

// FileName returns <Tech>_<hub>_<year>.json.
func FileName(tech Technology, hubKey string, year int) string {
	return fmt.Sprintf("%s_%s_%d.json", tech, hubKey, year)
}

// TMYFileName returns <Tech>_<hub>_TMY.json.
func TMYFileName(tech Technology, hubKey string) string {
	return fmt.Sprintf("%s_%s_TMY.json", tech, hubKey)
}

// Name identifies a profile file. Year is 0 for a typical year.
type Name struct {
	Technology Technology
	Hub        string
	Year       int
}

// TMY reports whether the name is a typical-year profile.
func (n Name) TMY() bool { return n.Year == 0 }

// ParseFileName reverses FileName and TMYFileName. Hub keys may contain
// underscores; the technology is the first field and the year or "TMY" the last.
func ParseFileName(name string) (Name, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".json")
	if base == filepath.Base(name) {
		return Name{}, false
	}
	first := strings.IndexByte(base, '_')
	last := strings.LastIndexByte(base, '_')
	if first <= 0 || last <= first+1 || last == len(base)-1 {
		return Name{}, false
	}

	tech, err := ParseTechnology(base[:first])
	if err != nil {
		return Name{}, false
	}
	n := Name{Technology: tech, Hub: base[first+1 : last]}

	suffix := base[last+1:]
	if suffix == "TMY" {
		return n, true
	}
	year, err := strconv.Atoi(suffix)
	if err != nil || year < 1900 || year > 2100 {
		return Name{}, false
	}
	n.Year = year
	return n, true
}

// Load reads a profile file.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Save writes a profile atomically and returns the bytes written.
func Save(path string, p Profile) (int64, error) {
	if p == nil {
		p = Profile{}
	}
	return common.WriteJSONAtomic(path, p)
}

// Truncate returns the first HoursPerTypicalYear values. In a leap year this
// drops Dec 31 rather than Feb 29.
func Truncate(p Profile) Profile {
	if len(p) <= HoursPerTypicalYear {
		return p
	}
	return p[:HoursPerTypicalYear]
}

// Clamp bounds v to [0, 1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
