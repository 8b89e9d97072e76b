package xlsx

import (
	"strconv"
	"strings"
	"time"

	"github.com/tabshift/tabshift/pkg/models"
)

// errorLiterals are the spreadsheet error values as excelize renders them.
var errorLiterals = map[string]bool{
	"#NULL!":  true,
	"#DIV/0!": true,
	"#VALUE!": true,
	"#REF!":   true,
	"#NAME?":  true,
	"#NUM!":   true,
	"#N/A":    true,
}

// dateLayouts are the rendered date forms recognized during classification,
// most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
	"01-02-06",
}

// classify maps one rendered cell string back to a tagged cell value.
func classify(raw string) models.Cell {
	if raw == "" {
		return models.EmptyCell()
	}
	if errorLiterals[raw] {
		return models.ErrorCell(raw)
	}
	switch raw {
	case "TRUE":
		return models.BoolCell(true)
	case "FALSE":
		return models.BoolCell(false)
	}

	// Rendered numeric cells never carry leading zeros; a "007" is text.
	if !hasLeadingZero(raw) {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return models.IntCell(i)
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil && isFinite(raw) {
			return models.FloatCell(f)
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.DateTimeCell(t)
		}
	}

	return models.TextCell(raw)
}

func hasLeadingZero(s string) bool {
	t := strings.TrimPrefix(s, "-")
	return len(t) > 1 && t[0] == '0' && t[1] != '.'
}

// isFinite rejects the textual forms ParseFloat accepts but a numeric cell
// never renders as ("Inf", "NaN", hex floats).
func isFinite(s string) bool {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return true
}
