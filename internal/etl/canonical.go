package etl

// canonical.go implements deterministic normalization of dimension attribute
// values: trim, collapse internal whitespace runs, title-case. The transform
// is idempotent, so re-running the pipeline over already-clean data changes
// nothing.

import (
	"strings"

	"github.com/salesmart/etl/internal/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonicalizer normalizes raw attribute values per the configured toggles.
// Disabled attributes pass through unchanged.
type Canonicalizer struct {
	cfg   config.CanonicalizeConfig
	title cases.Caser
}

// NewCanonicalizer creates a canonicalizer from the configured toggles.
func NewCanonicalizer(cfg config.CanonicalizeConfig) *Canonicalizer {
	return &Canonicalizer{
		cfg:   cfg,
		title: cases.Title(language.English),
	}
}

// Value normalizes a single attribute value: leading/trailing whitespace is
// trimmed, internal whitespace runs collapse to a single space, and each word
// is title-cased.
func (c *Canonicalizer) Value(s string) string {
	// Fields both trims and collapses runs of whitespace.
	s = strings.Join(strings.Fields(s), " ")
	return c.title.String(s)
}

// Records returns a copy of records with the enabled item attributes
// canonicalized. The input slice is never mutated.
func (c *Canonicalizer) Records(records []RawRecord) []RawRecord {
	out := make([]RawRecord, len(records))
	for i, r := range records {
		if c.cfg.ItemName {
			r.ItemName = c.Value(r.ItemName)
		}
		if c.cfg.Category {
			r.Category = c.Value(r.Category)
		}
		if c.cfg.Version {
			r.Version = c.Value(r.Version)
		}
		out[i] = r
	}
	return out
}
