// Package artifacts writes the intermediate CSV outputs of a run to the
// configured processed directory: the cleaned records, the three dimension
// candidate sets, the validated fact candidates, and (when any exist) the
// rejected rows in their original, unmodified columns.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/salesmart/etl/internal/etl"
)

// Artifact file names, matching the warehouse table or stage they mirror.
const (
	cleanedFile   = "orders_cleaned.csv"
	validatedFile = "validated_fact_data.csv"
	rejectedFile  = "rejected_rows.csv"
)

// recordHeader is the column layout used for cleaned and validated record
// artifacts.
var recordHeader = []string{
	"transaction_id", "buyer_id", "item_id",
	"item_code", "item_name", "category", "version", "full_date",
	"final_quantity", "total_revenue", "price_reductions", "refunds",
	"final_revenue", "sales_tax", "overall_revenue",
	"refunded_item_count", "purchased_item_count",
}

// Writer persists run artifacts under a single directory. It implements
// etl.ArtifactSink.
type Writer struct {
	dir string
}

// NewWriter returns a writer rooted at dir. The directory is created on the
// first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// SaveCleaned writes the canonicalized records.
func (w *Writer) SaveCleaned(records []etl.RawRecord) error {
	return w.write(cleanedFile, recordHeader, recordRows(records))
}

// SaveValidated writes the records that passed validation.
func (w *Writer) SaveValidated(records []etl.RawRecord) error {
	return w.write(validatedFile, recordHeader, recordRows(records))
}

// SaveRejected writes the rows dropped by validation, verbatim in the raw
// export's own columns so they can be inspected or replayed as-is.
func (w *Writer) SaveRejected(header []string, records []etl.RawRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Raw)
	}
	return w.write(rejectedFile, header, rows)
}

// SaveDateDimension writes the date dimension candidates.
func (w *Writer) SaveDateDimension(rows []etl.DateRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.FullDate.Format("2006-01-02"),
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Quarter),
			strconv.Itoa(r.Month),
			strconv.Itoa(r.Day),
			strconv.FormatBool(r.IsWeekend),
		})
	}
	return w.writeDimension(etl.DimensionDate,
		[]string{"full_date", "year", "quarter", "month", "day", "is_weekend"}, out)
}

// SaveItemDimension writes the item dimension candidates.
func (w *Writer) SaveItemDimension(rows []etl.ItemRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.ItemCode,
			strconv.FormatInt(r.ItemID, 10),
			r.ItemName,
			r.Category,
			r.Version,
		})
	}
	return w.writeDimension(etl.DimensionItem,
		[]string{"item_code", "item_id", "item_name", "category", "version"}, out)
}

// SaveBuyerDimension writes the buyer dimension candidates.
func (w *Writer) SaveBuyerDimension(rows []etl.BuyerRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{strconv.FormatInt(r.BuyerID, 10)})
	}
	return w.writeDimension(etl.DimensionBuyer, []string{"buyer_id"}, out)
}

func (w *Writer) writeDimension(dim etl.Dimension, header []string, rows [][]string) error {
	table, err := dim.Table()
	if err != nil {
		return err
	}
	return w.write(table+".csv", header, rows)
}

func (w *Writer) write(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating artifact %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing artifact %s: %w", name, err)
	}
	return f.Close()
}

func recordRows(records []etl.RawRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			formatID(r.TransactionID),
			formatID(r.BuyerID),
			formatID(r.ItemID),
			r.ItemCode,
			r.ItemName,
			r.Category,
			r.Version,
			formatDate(r.Date),
			strconv.FormatInt(r.FinalQuantity, 10),
			formatMoney(r.TotalRevenue),
			formatMoney(r.PriceReductions),
			formatMoney(r.Refunds),
			formatMoney(r.FinalRevenue),
			formatMoney(r.SalesTax),
			formatMoney(r.OverallRevenue),
			strconv.FormatInt(r.RefundedItemCount, 10),
			strconv.FormatInt(r.PurchasedItemCount, 10),
		})
	}
	return rows
}

// Null identifiers and dates render as empty cells.
func formatID(v pgtype.Int8) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func formatDate(v pgtype.Date) string {
	if !v.Valid {
		return ""
	}
	return v.Time.Format("2006-01-02")
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
