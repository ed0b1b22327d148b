package helpers

import (
	"math"
	"strconv"
	"strings"
)

// IsNumeric reports whether s is a non-empty run of ASCII digits
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// HoursToMinutes parses a playtime such as "1,234.5" or "12.3 hrs on record"
// and returns whole minutes. Unparseable input yields 0.
func HoursToMinutes(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil || hours < 0 {
		return 0
	}
	return int(math.Round(hours * 60))
}

