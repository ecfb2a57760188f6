package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseYears parses a year selection such as "2020-2025", "2021,2023" or a
// mix of both ("2010-2012,2020"). The result is sorted and de-duplicated.
func ParseYears(sel string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi := part, part
		if i := strings.Index(part, "-"); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}

		start, err := parseYear(lo)
		if err != nil {
			return nil, err
		}
		end, err := parseYear(hi)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("invalid year range %q", part)
		}
		for y := start; y <= end; y++ {
			seen[y] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("no years in %q", sel)
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1900 || y > 2100 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}

// HoursInYear returns 8784 for leap years and 8760 otherwise.
func HoursInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 8784
	}
	return 8760
}
