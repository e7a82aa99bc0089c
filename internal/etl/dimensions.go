package etl

// dimensions.go derives the date, item and buyer dimension candidate sets
// from canonicalized raw records. Item attribute conflicts are resolved by a
// pluggable strategy; rows without a usable natural or attribute key are
// dropped with reported counts.

import (
	"fmt"
	"time"

	"github.com/salesmart/etl/internal/config"
)

// Dimension identifies one of the three warehouse dimensions.
type Dimension string

const (
	DimensionDate  Dimension = "date"
	DimensionItem  Dimension = "item"
	DimensionBuyer Dimension = "buyer"
)

// Table returns the warehouse relation backing the dimension.
func (d Dimension) Table() (string, error) {
	switch d {
	case DimensionDate:
		return "dim_date", nil
	case DimensionItem:
		return "dim_item", nil
	case DimensionBuyer:
		return "dim_buyer", nil
	}
	return "", &UnsupportedDimensionError{Kind: string(d)}
}

// NaturalKey returns the column used to detect whether a dimension row
// already exists in the warehouse.
func (d Dimension) NaturalKey() (string, error) {
	switch d {
	case DimensionDate:
		return "full_date", nil
	case DimensionItem:
		return "item_code", nil
	case DimensionBuyer:
		return "buyer_id", nil
	}
	return "", &UnsupportedDimensionError{Kind: string(d)}
}

// BuildDateDimension computes one row per calendar day in the inclusive
// range spanned by the observed dates, with no gaps. column names the raw
// date column for the error message when no record carries a valid date.
func BuildDateDimension(records []RawRecord, column string) ([]DateRow, error) {
	var min, max time.Time
	seen := false
	for _, r := range records {
		if !r.Date.Valid {
			continue
		}
		d := truncateToDay(r.Date.Time)
		if !seen {
			min, max = d, d
			seen = true
			continue
		}
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	if !seen {
		return nil, &NoValidDatesError{Column: column}
	}

	var rows []DateRow
	for d := min; !d.After(max); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		rows = append(rows, DateRow{
			FullDate:  d,
			Year:      d.Year(),
			Quarter:   (int(d.Month())-1)/3 + 1,
			Month:     int(d.Month()),
			Day:       d.Day(),
			IsWeekend: wd == time.Saturday || wd == time.Sunday,
		})
	}
	return rows, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ItemStrategy resolves possibly-conflicting item attribute observations
// into one canonical row per item_code. dropped reports how many rows or
// groups were discarded for a null item_id.
type ItemStrategy interface {
	Resolve(records []RawRecord) (rows []ItemRow, dropped int)
}

// ItemStrategyFor maps a configured strategy name to its implementation.
func ItemStrategyFor(name string) (ItemStrategy, error) {
	switch name {
	case config.StrategyFirstOccurrence:
		return FirstOccurrence{}, nil
	case config.StrategyMode:
		return Mode{}, nil
	}
	return nil, fmt.Errorf("unsupported item canonicalization strategy %q", name)
}

// FirstOccurrence deduplicates exactly: the first occurrence of each
// distinct attribute set wins, rows with a null item_id are dropped.
type FirstOccurrence struct{}

// Resolve implements ItemStrategy.
func (FirstOccurrence) Resolve(records []RawRecord) ([]ItemRow, int) {
	var rows []ItemRow
	seen := make(map[ItemRow]bool)
	dropped := 0
	for _, r := range records {
		if !r.ItemID.Valid {
			dropped++
			continue
		}
		row := ItemRow{
			ItemCode: r.ItemCode,
			ItemID:   r.ItemID.Int64,
			ItemName: r.ItemName,
			Category: r.Category,
			Version:  r.Version,
		}
		if seen[row] {
			continue
		}
		seen[row] = true
		rows = append(rows, row)
	}
	return rows, dropped
}

// Mode groups rows by item_code and selects the most frequent value
// independently for item_name, category and version, tolerating inconsistent
// upstream labeling by voting across observations. Ties go to the value
// first encountered in input order. item_id is taken from the first row of
// the group; groups whose item_id is null are dropped.
type Mode struct{}

// Resolve implements ItemStrategy.
func (Mode) Resolve(records []RawRecord) ([]ItemRow, int) {
	type group struct {
		first    RawRecord
		names    []string
		cats     []string
		versions []string
	}
	var order []string
	groups := make(map[string]*group)
	for _, r := range records {
		g, ok := groups[r.ItemCode]
		if !ok {
			g = &group{first: r}
			groups[r.ItemCode] = g
			order = append(order, r.ItemCode)
		}
		g.names = append(g.names, r.ItemName)
		g.cats = append(g.cats, r.Category)
		g.versions = append(g.versions, r.Version)
	}

	var rows []ItemRow
	dropped := 0
	for _, code := range order {
		g := groups[code]
		if !g.first.ItemID.Valid {
			dropped++
			continue
		}
		rows = append(rows, ItemRow{
			ItemCode: code,
			ItemID:   g.first.ItemID.Int64,
			ItemName: modeValue(g.names),
			Category: modeValue(g.cats),
			Version:  modeValue(g.versions),
		})
	}
	return rows, dropped
}

// modeValue returns the most frequent value; on ties, the value first
// encountered in input order.
func modeValue(values []string) string {
	type stat struct {
		count int
		first int
	}
	stats := make(map[string]*stat, len(values))
	for i, v := range values {
		if s, ok := stats[v]; ok {
			s.count++
		} else {
			stats[v] = &stat{count: 1, first: i}
		}
	}

	best := ""
	bestCount := 0
	for i, v := range values {
		s := stats[v]
		if s.first != i {
			continue // only consider each value once, in first-seen order
		}
		if s.count > bestCount {
			best, bestCount = v, s.count
		}
	}
	return best
}

// BuildItemDimension derives the item dimension using the given strategy and
// reports dropped rows or groups through the reporter.
func BuildItemDimension(records []RawRecord, strategy ItemStrategy, rep Reporter) []ItemRow {
	rows, dropped := strategy.Resolve(records)
	if dropped > 0 {
		rep.Warn("dropped item dimension entries with null item_id", "count", dropped)
	}
	return rows
}

// BuildBuyerDimension derives the distinct buyer dimension, dropping records
// whose buyer_id is absent. The dropped count is reported, never fatal.
func BuildBuyerDimension(records []RawRecord, rep Reporter) []BuyerRow {
	var rows []BuyerRow
	seen := make(map[int64]bool)
	dropped := 0
	for _, r := range records {
		if !r.BuyerID.Valid {
			dropped++
			continue
		}
		if seen[r.BuyerID.Int64] {
			continue
		}
		seen[r.BuyerID.Int64] = true
		rows = append(rows, BuyerRow{BuyerID: r.BuyerID.Int64})
	}
	if dropped > 0 {
		rep.Warn("dropped buyer rows with null buyer_id", "count", dropped)
	}
	return rows
}
