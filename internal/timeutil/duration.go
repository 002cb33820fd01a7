package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseClockMinutes converts "hh:mm:ss" or "mm:ss" into minutes.
func ParseClockMinutes(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	nums := make([]float64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("invalid clock value %q", value)
		}
		nums = append(nums, n)
	}

	switch len(nums) {
	case 3:
		return nums[0]*60 + nums[1] + nums[2]/60, nil
	case 2:
		return nums[0] + nums[1]/60, nil
	default:
		return 0, fmt.Errorf("invalid clock value %q: want hh:mm:ss or mm:ss", value)
	}
}

// ParsePace converts "mm:ss" into minutes per kilometre.
func ParsePace(value string) (float64, error) {
	if strings.Count(value, ":") != 1 {
		return 0, fmt.Errorf("invalid pace %q: want mm:ss", value)
	}
	return ParseClockMinutes(value)
}

// FormatClock renders minutes as h:mm:ss, or mm:ss below an hour.
func FormatClock(minutes float64) string {
	total := int(math.Round(minutes * 60))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatPace renders minutes per kilometre as m:ss.
func FormatPace(minutes float64) string {
	total := int(math.Round(minutes * 60))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
