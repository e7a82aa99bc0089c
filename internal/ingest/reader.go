// Package ingest loads the raw transactional CSV export and coerces it into
// typed records for the pipeline. The reader streams through sanitizing
// wrappers (BOM removal, UTF-8 cleanup) and maps raw column headers to
// logical fields via the configured column map.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/salesmart/etl/internal/config"
	"github.com/salesmart/etl/internal/etl"
)

// ctxCheckInterval is how many rows to read between context checks.
const ctxCheckInterval = 4096

// CSVSource reads the configured raw export file. It implements
// etl.RecordSource.
type CSVSource struct {
	cfg *config.Config
}

// NewCSVSource builds a source over the export named in the configuration.
func NewCSVSource(cfg *config.Config) *CSVSource {
	return &CSVSource{cfg: cfg}
}

// Load reads the whole export into a typed RecordSet.
func (s *CSVSource) Load(ctx context.Context) (*etl.RecordSet, error) {
	path := s.cfg.DataSource.CSVPath
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raw export: %w", err)
	}
	defer f.Close()

	set, err := s.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("reading raw export %s: %w", path, err)
	}
	return set, nil
}

func (s *CSVSource) read(ctx context.Context, r io.Reader) (*etl.RecordSet, error) {
	cr := csv.NewReader(wrapReader(r))
	if d := s.cfg.DataSource.Delimiter; d != "" {
		cr.Comma = []rune(d)[0]
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("export file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx, err := resolveColumns(header, s.cfg.Columns)
	if err != nil {
		return nil, err
	}

	set := &etl.RecordSet{Header: header}
	for line := 2; ; line++ {
		if line%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		set.Records = append(set.Records, s.record(row, idx, line))
	}
	return set, nil
}

// record coerces one raw row. Identifier and date cells that fail to parse
// stay null; measure cells default to 0.
func (s *CSVSource) record(row []string, idx columnIndex, line int) etl.RawRecord {
	raw := make([]string, len(row))
	copy(raw, row)

	return etl.RawRecord{
		TransactionID: parseIdentifier(row[idx.transactionID]),
		BuyerID:       parseIdentifier(row[idx.buyerID]),
		ItemID:        parseIdentifier(row[idx.itemID]),
		ItemCode:      strings.TrimSpace(row[idx.itemCode]),
		ItemName:      strings.TrimSpace(row[idx.itemName]),
		Category:      strings.TrimSpace(row[idx.category]),
		Version:       strings.TrimSpace(row[idx.version]),
		Date:          parseDate(row[idx.date], s.cfg.DataSource.DateLayout),

		FinalQuantity:      parseCount(row[idx.finalQuantity]),
		TotalRevenue:       parseMoney(row[idx.totalRevenue]),
		PriceReductions:    parseMoney(row[idx.priceReductions]),
		Refunds:            parseMoney(row[idx.refunds]),
		FinalRevenue:       parseMoney(row[idx.finalRevenue]),
		SalesTax:           parseMoney(row[idx.salesTax]),
		OverallRevenue:     parseMoney(row[idx.overallRevenue]),
		RefundedItemCount:  parseCount(row[idx.refundedItemCount]),
		PurchasedItemCount: parseCount(row[idx.purchasedItemCount]),

		Line: line,
		Raw:  raw,
	}
}

// columnIndex holds the resolved position of every mapped column.
type columnIndex struct {
	date               int
	itemCode           int
	itemID             int
	itemName           int
	category           int
	version            int
	buyerID            int
	transactionID      int
	finalQuantity      int
	totalRevenue       int
	priceReductions    int
	refunds            int
	finalRevenue       int
	salesTax           int
	overallRevenue     int
	refundedItemCount  int
	purchasedItemCount int
}

// resolveColumns matches the configured column map against the header row.
// Header matching is case-insensitive and whitespace-tolerant. All mapped
// columns must be present; the error lists every missing one at once.
func resolveColumns(header []string, cols config.ColumnMap) (columnIndex, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			missing = append(missing, name)
			return 0
		}
		return i
	}

	idx := columnIndex{
		date:               lookup(cols.Date),
		itemCode:           lookup(cols.ItemCode),
		itemID:             lookup(cols.ItemID),
		itemName:           lookup(cols.ItemName),
		category:           lookup(cols.Category),
		version:            lookup(cols.Version),
		buyerID:            lookup(cols.BuyerID),
		transactionID:      lookup(cols.TransactionID),
		finalQuantity:      lookup(cols.FinalQuantity),
		totalRevenue:       lookup(cols.TotalRevenue),
		priceReductions:    lookup(cols.PriceReductions),
		refunds:            lookup(cols.Refunds),
		finalRevenue:       lookup(cols.FinalRevenue),
		salesTax:           lookup(cols.SalesTax),
		overallRevenue:     lookup(cols.OverallRevenue),
		refundedItemCount:  lookup(cols.RefundedItemCount),
		purchasedItemCount: lookup(cols.PurchasedItemCount),
	}
	if len(missing) > 0 {
		return columnIndex{}, fmt.Errorf("export is missing mapped columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}
