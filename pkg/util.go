package filededup

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseHumanSize parses human-readable size strings such as "2M", "512k",
// "1G" into a byte count.
func ParseHumanSize(sizeStr string) (int, error) {
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	var numPart string
	var suffix string
	for i, char := range sizeStr {
		if char >= '0' && char <= '9' || char == '.' {
			numPart += string(char)
		} else {
			suffix = sizeStr[i:]
			break
		}
	}

	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier int64 = 1
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1024
	case "M", "MB":
		multiplier = 1024 * 1024
	case "G", "GB":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	result := int64(num * float64(multiplier))
	if result <= 0 {
		return 0, fmt.Errorf("size must be positive: %s", sizeStr)
	}
	if result > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("size too large: %s", sizeStr)
	}

	return int(result), nil
}

// byteScale is one binary-prefix step in the pretty-printing ladder.
type byteScale struct {
	suffix string
	scale  float64
}

var byteScales = []byteScale{
	{"Ti", 1024 * 1024 * 1024 * 1024},
	{"Gi", 1024 * 1024 * 1024},
	{"Mi", 1024 * 1024},
	{"Ki", 1024},
}

// FormatBytes renders a byte count using binary prefixes (Ki/Mi/Gi/Ti),
// switching scale once abs(bytes) exceeds it, with one decimal place.
// Values with abs(bytes) of at most 1024 are rendered as a bare integer
// with a "B" suffix.
func FormatBytes(bytes int64) string {
	abs := float64(bytes)
	if abs < 0 {
		abs = -abs
	}

	for _, s := range byteScales {
		if abs > s.scale {
			return fmt.Sprintf("%.1f%s", float64(bytes)/s.scale, s.suffix)
		}
	}
	return fmt.Sprintf("%dB", bytes)
}
