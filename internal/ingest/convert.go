package ingest

// convert.go coerces raw CSV cells into the typed fields of a record.
//
// Identifiers and dates are null-aware: when a cell cannot be parsed the
// pgtype value stays invalid (absent), never zero, so a garbled buyer id can
// never collide with a real buyer 0 downstream. Numeric measures instead
// default to 0, matching how the measures are aggregated.

import (
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// parseIdentifier extracts the digits of an identifier cell ("ID-00123",
// "buyer 42") and parses them as an int64. A cell with no digits yields an
// invalid Int8.
func parseIdentifier(s string) pgtype.Int8 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return pgtype.Int8{}
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

// parseDate parses a date cell against the configured layout, truncated to
// midnight UTC. Empty or unparseable cells yield an invalid Date.
func parseDate(s, layout string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return pgtype.Date{}
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return pgtype.Date{Time: t, Valid: true}
}

// parseMoney parses a monetary cell, tolerating currency symbols, thousands
// separators, and accounting-style negatives "(123.45)". Unparseable cells
// yield 0.
func parseMoney(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if negative {
		v = -v
	}
	return v
}

// parseCount parses an integer quantity cell. Exports sometimes render counts
// as decimals ("3.0"), so a float parse backs the integer one. Unparseable
// cells yield 0.
func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return int64(parseMoney(s))
}
