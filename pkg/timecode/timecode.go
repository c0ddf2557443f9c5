// Package timecode converts between seconds and the "m:ss" text used for
// clip durations and extend offsets.
package timecode

import (
	"fmt"
	"math"
	"strings"
)

// Format renders seconds as "m:ss". Fractions are dropped and negative
// values render as "0:00".
func Format(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Parse reads "m:ss" text into seconds. The first component is minutes and
// the second seconds, each read up to its first non-digit. Missing or
// malformed components count as zero, so Parse never fails.
func Parse(text string) int {
	parts := strings.Split(strings.TrimSpace(text), ":")
	minutes := leadingInt(parts[0])
	var seconds int
	if len(parts) > 1 {
		seconds = leadingInt(parts[1])
	}
	total := minutes*60 + seconds
	if total < 0 {
		return 0
	}
	return total
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	sign := 1
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > math.MaxInt32 {
			break
		}
	}
	return sign * n
}
