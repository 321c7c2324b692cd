// Package utils provides small shared helpers.
package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// SafeFloat converts a raw provider field to float64. Percent signs, plus
// signs, thousands separators and surrounding whitespace are stripped.
// Anything unparseable yields 0.0; provider rows never abort a detection
// sweep because of one bad field.
func SafeFloat(value string) float64 {
	cleaned := strings.NewReplacer("%", "", "+", "", ",", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return 0.0
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0.0
	}
	return f
}

// SafeInt converts a raw provider field to int, tolerating decimal forms
// of integers ("3.0"). Unparseable input yields 0.
func SafeInt(value string) int {
	return int(SafeFloat(value))
}

var percentPattern = regexp.MustCompile(`([+-]?\d+\.?\d*)%`)

// ExtractPercent pulls the first percentage figure out of free text, for
// disclosure records like 业绩预告 forecast content. Returns the value and
// whether one was found.
func ExtractPercent(text string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ExtractAllPercents pulls every percentage figure out of free text.
func ExtractAllPercents(text string) []float64 {
	var out []float64
	for _, m := range percentPattern.FindAllStringSubmatch(text, -1) {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}
