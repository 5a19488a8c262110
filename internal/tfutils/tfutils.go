package tfutils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRange is the look-back used when the caller names none.
const DefaultRange = "1Y"

var ErrUnsupportedRange = errors.New("unsupported range")

// ParseRange normalizes a look-back range string (e.g. "1y", " 6M ") to its
// canonical form. An empty string yields DefaultRange.
func ParseRange(rng string) (string, error) {
	rng = strings.ToUpper(strings.TrimSpace(rng))
	if rng == "" {
		return DefaultRange, nil
	}
	if !IsValidRange(rng) {
		return "", fmt.Errorf("%q: %w", rng, ErrUnsupportedRange)
	}
	return rng, nil
}

// GetRangeDuration returns the approximate span of a canonical range.
func GetRangeDuration(rng string) time.Duration {
	const day = 24 * time.Hour
	switch rng {
	case "1M":
		return 30 * day
	case "3M":
		return 91 * day
	case "6M":
		return 182 * day
	case "1Y":
		return 365 * day
	case "5Y":
		return 5 * 365 * day
	default:
		return 0
	}
}

// RangeTradingDays is the number of daily candles a range roughly holds.
func RangeTradingDays(rng string) int {
	switch rng {
	case "1M":
		return 21
	case "3M":
		return 63
	case "6M":
		return 126
	case "1Y":
		return 252
	case "5Y":
		return 5 * 252
	default:
		return 0
	}
}

// GetSupportedRanges returns all supported look-back ranges, shortest first.
func GetSupportedRanges() []string {
	return []string{"1M", "3M", "6M", "1Y", "5Y"}
}

// IsValidRange checks if a canonical range is supported
func IsValidRange(rng string) bool {
	return GetRangeDuration(rng) > 0
}
