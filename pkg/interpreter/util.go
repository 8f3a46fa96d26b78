package interpreter

import (
	"os"
	"strconv"
	"strings"
)

// parsePercentPoint parses a "50%, 15%" point string. ok is false for any
// format the drivers' own tap-on-point parsing wouldn't recognize as a
// percentage either (e.g. absolute "120, 340"), in which case validation is
// skipped and the driver is left to interpret the value.
func parsePercentPoint(point string) (x, y float64, ok bool) {
	point = strings.ReplaceAll(point, " ", "")
	if !strings.Contains(point, "%") {
		return 0, 0, false
	}
	parts := strings.Split(point, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	xv, errX := strconv.ParseFloat(strings.TrimSuffix(parts[0], "%"), 64)
	yv, errY := strconv.ParseFloat(strings.TrimSuffix(parts[1], "%"), 64)
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return xv, yv, true
}

// readScriptFile loads a runScript command's external script body.
func readScriptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
