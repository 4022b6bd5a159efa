package utils

import (
	"fmt"
	"strings"
)

const byteUnitBase = 1024

var byteUnits = []string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize converts a byte length into a human-readable lower-case unit
// string such as "512b", "1.5kb" or "10mb".
func FormatFileSize(bytes int64) string {
	if bytes < byteUnitBase {
		if bytes < 0 {
			bytes = 0
		}
		return fmt.Sprintf("%d%s", bytes, byteUnits[0])
	}
	value := float64(bytes)
	unitIndex := 0
	for value >= byteUnitBase && unitIndex < len(byteUnits)-1 {
		value /= byteUnitBase
		unitIndex++
	}
	if value >= 10 {
		return fmt.Sprintf("%.0f%s", value, byteUnits[unitIndex])
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", value), ".0") + byteUnits[unitIndex]
}
