package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe converts a compact timeframe such as "30m", "2h" or "7d"
// into a duration. Bare numbers are interpreted as minutes.
func ParseTimeframe(value string) (time.Duration, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return 0, fmt.Errorf("empty timeframe")
	}

	unit := time.Minute
	switch v[len(v)-1] {
	case 'm':
		v = v[:len(v)-1]
	case 'h':
		unit = time.Hour
		v = v[:len(v)-1]
	case 'd':
		unit = 24 * time.Hour
		v = v[:len(v)-1]
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", value)
	}
	return time.Duration(n) * unit, nil
}
